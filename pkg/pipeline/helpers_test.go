package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-spawn/pkg/pipeline"
	"github.com/askiada/go-spawn/pkg/pipeline/model"
)

func addIntRoot(t *testing.T, pipe *pipeline.Pipeline, total int, opts ...pipeline.StepOption) *model.Step[int] {
	t.Helper()

	root, err := pipeline.AddRootStep(pipe, "root", func(ctx context.Context, rootChan chan<- int) error {
		for i := range total {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- i:
			}
		}

		return nil
	}, opts...)
	require.NoError(t, err)

	return root
}

// intSink collects what reaches the sink.
type intSink struct {
	mu  sync.Mutex
	got []int
}

func (s *intSink) add(_ context.Context, in int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, in)

	return nil
}

func (s *intSink) values() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]int(nil), s.got...)
}

// forward returns a stage function sending every input through fn.
func forward(fn func(ctx context.Context, in int, emit *pipeline.Emitter[int]) error) func(ctx context.Context, input <-chan int, emit *pipeline.Emitter[int]) error {
	return func(ctx context.Context, input <-chan int, emit *pipeline.Emitter[int]) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case in, ok := <-input:
				if !ok {
					return nil
				}

				err := fn(ctx, in, emit)
				if err != nil {
					return err
				}
			}
		}
	}
}
