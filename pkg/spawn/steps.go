package spawn

import (
	"context"

	"github.com/askiada/go-spawn/pkg/item"
	"github.com/askiada/go-spawn/pkg/pipeline"
	"github.com/askiada/go-spawn/pkg/pipeline/model"
)

type stage interface {
	Run(ctx context.Context, input <-chan *item.Item, emit Emitter) error
}

func addStage(pipe *pipeline.Pipeline, name string, input *model.Step[*item.Item], st stage, opts Options) (*model.Step[*item.Item], error) {
	return pipeline.AddStepFromChan(pipe, name, input,
		func(ctx context.Context, in <-chan *item.Item, emit *pipeline.Emitter[*item.Item]) error {
			return st.Run(ctx, in, emit)
		},
		pipeline.StepLabel(commandLine(opts.Cmd, opts.Args)),
	)
}

// AddStream adds a Stream stage to pipe.
func AddStream(pipe *pipeline.Pipeline, name string, input *model.Step[*item.Item], opts Options) (*model.Step[*item.Item], error) {
	st, err := NewStream(opts)
	if err != nil {
		return nil, err
	}

	return addStage(pipe, name, input, st, opts)
}

// AddOnce adds a Once stage to pipe.
func AddOnce(pipe *pipeline.Pipeline, name string, input *model.Step[*item.Item], opts Options) (*model.Step[*item.Item], error) {
	st, err := NewOnce(opts)
	if err != nil {
		return nil, err
	}

	return addStage(pipe, name, input, st, opts)
}

// AddEach adds an Each stage to pipe.
func AddEach(pipe *pipeline.Pipeline, name string, input *model.Step[*item.Item], opts Options) (*model.Step[*item.Item], error) {
	st, err := NewEach(opts)
	if err != nil {
		return nil, err
	}

	return addStage(pipe, name, input, st, opts)
}
