package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/pkg/pipeline/model"
)

// AddSink adds the last step of the pipeline. sinkFn is called once per element, in order.
// An error returned by sinkFn is raised on the pipeline error channel and the sink moves on to
// the next element.
func AddSink[I any](pipe *Pipeline, name string, input *model.Step[I], sinkFn func(ctx context.Context, input I) error) error {
	if pipe == nil {
		return ErrPipelineMustBeSet
	}

	if input == nil {
		return ErrInputMustBeSet
	}

	if input.Details == nil {
		input.Details = model.StartStep.Details
	}

	step := &model.Step[I]{
		Details: &model.StepInfo{
			Type: model.SinkStepType,
			Name: name,
		},
	}

	for _, opt := range pipe.opts {
		err := opt.PrepareSink(input.Details, step.Details)
		if err != nil {
			return errors.Wrap(err, "unable to run prepare sink function")
		}
	}

	errC := make(chan error, 1)
	decoratedError := newErrorChan(step.Details, errC)

	report := func(err error) {
		select {
		case <-pipe.ctx.Done():
		case errC <- err:
		}
	}

	go func() {
		defer close(errC)

	outer:
		for {
			startIter := time.Now()
			select {
			case <-pipe.ctx.Done():
				errC <- pipe.ctx.Err()

				break outer
			case in, ok := <-input.Output:
				if !ok {
					break outer
				}

				startFn := time.Now()

				err := sinkFn(pipe.ctx, in)
				if err != nil {
					report(err)
				}

				endFn := time.Since(startFn)
				for _, opt := range pipe.opts {
					err := opt.OnSinkOutput(input.Details, step.Details, time.Since(startIter), endFn)
					if err != nil {
						report(errors.Wrap(err, "unable to run sink output option"))
					}
				}
			}
		}

		for _, opt := range pipe.opts {
			err := opt.AfterSink(step.Details, time.Since(pipe.startTime))
			if err != nil {
				report(errors.Wrap(err, "unable to run after sink option"))
			}
		}
	}()
	pipe.errcList.add(decoratedError)

	return nil
}
