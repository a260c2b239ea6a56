package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/pkg/pipeline/model"
)

// Pipeline is a pipeline of steps.
type Pipeline struct {
	ctx       context.Context //nolint:containedctx // steps start as soon as they are added
	cancel    context.CancelFunc
	errcList  *errorChans
	opts      []model.PipelineOption
	startTime time.Time
}

// New creates a new pipeline. Steps added to the pipeline run with a context derived from ctx,
// which is cancelled when Run returns.
func New(ctx context.Context, opts ...model.PipelineOption) (*Pipeline, error) {
	dCtx, cancel := context.WithCancel(ctx)
	pipe := &Pipeline{
		ctx:       dCtx,
		cancel:    cancel,
		errcList:  &errorChans{},
		startTime: time.Now(),
		opts:      opts,
	}

	for _, opt := range opts {
		err := opt.New()
		if err != nil {
			cancel()

			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return pipe, nil
}

// handleError runs err through the OnError hook of every option. A nil result means an
// option absorbed the error.
func (p *Pipeline) handleError(stepErr stepError) error {
	err := stepErr.err
	for _, opt := range p.opts {
		err = opt.OnError(stepErr.step, err)
		if err == nil {
			return nil
		}
	}

	return err
}

// waitForPipeline waits for results from all error channels.
// It returns early on the first error no option absorbed.
func (p *Pipeline) waitForPipeline(errs ...*errorChan) error {
	errc := mergeErrors(errs...)
	for stepErr := range errc {
		err := p.handleError(stepErr)
		if err != nil {
			// keep draining so that the steps unblock once the context is cancelled
			go func() {
				for range errc {
				}
			}()

			return err
		}
	}

	return nil
}

// Run waits for every step to finish. It returns the first error raised by a step, unless a
// pipeline option absorbed it.
func (p *Pipeline) Run() error {
	defer p.cancel()

	err := p.waitForPipeline(p.errcList.list...)
	if err != nil {
		return err
	}

	return p.finishRun()
}

func (p *Pipeline) finishRun() error {
	for _, opt := range p.opts {
		err := opt.Finish()
		if err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return nil
}
