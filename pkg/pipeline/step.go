package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/pkg/pipeline/model"
)

// Emitter is the output side handed to a stage added with AddStepFromChan.
//
// Emit must be called from a single goroutine. Report can be called from any goroutine as long
// as the stage function waits for those goroutines before returning.
type Emitter[O any] struct {
	pipe   *Pipeline
	parent *model.StepInfo
	step   *model.Step[O]
	errC   chan<- error
	last   time.Time
}

// Emit sends out to the next step. It blocks until the next step accepts it, which is how
// backpressure travels upstream, or until ctx is done.
func (e *Emitter[O]) Emit(ctx context.Context, out O) error {
	computation := time.Since(e.last)

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "unable to emit")
	case e.step.Output <- out:
	}

	iteration := time.Since(e.last)
	e.last = time.Now()

	for _, opt := range e.pipe.opts {
		err := opt.OnStepOutput(e.parent, e.step.Details, iteration, computation)
		if err != nil {
			e.Report(ctx, errors.Wrap(err, "unable to run step output option"))
		}
	}

	return nil
}

// Report raises err on the pipeline error channel without stopping the stage. The pipeline
// options decide whether the error stops the whole pipeline.
func (e *Emitter[O]) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}

	select {
	case <-ctx.Done():
	case e.errC <- err:
	}
}

func prepareStep[I, O any](pipe *Pipeline, name string, input *model.Step[I], opts ...StepOption) (*model.Step[O], error) {
	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type: model.StageStepType,
			Name: name,
		},
		Output: make(chan O),
	}

	for _, opt := range opts {
		opt(step.Details)
	}

	for _, opt := range pipe.opts {
		err := opt.PrepareStep(input.Details, step.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare step function")
		}
	}

	return step, nil
}

// AddStepFromChan adds a stage that owns its read loop: stepFn drains input and pushes
// results through the emitter. It may emit zero, one or many elements per input, and it reads
// the next input only when it is ready for it.
//
// The output channel is closed when stepFn returns.
func AddStepFromChan[I, O any](
	pipe *Pipeline,
	name string,
	input *model.Step[I],
	stepFn func(ctx context.Context, input <-chan I, emit *Emitter[O]) error,
	opts ...StepOption,
) (*model.Step[O], error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}

	if input == nil {
		return nil, ErrInputMustBeSet
	}

	if stepFn == nil {
		return nil, ErrStepFnMustBeSet
	}

	if input.Details == nil {
		input.Details = model.StartStep.Details
	}

	step, err := prepareStep[I, O](pipe, name, input, opts...)
	if err != nil {
		return nil, err
	}

	errC := make(chan error, 1)
	decoratedError := newErrorChan(step.Details, errC)
	emitter := &Emitter[O]{
		pipe:   pipe,
		parent: input.Details,
		step:   step,
		errC:   errC,
		last:   time.Now(),
	}

	go func() {
		defer func() {
			close(step.Output)
			close(errC)
		}()

		err := stepFn(pipe.ctx, input.Output, emitter)
		if err != nil {
			errC <- err
		}
	}()
	pipe.errcList.add(decoratedError)

	return step, nil
}
