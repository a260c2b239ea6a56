package spawn

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/pkg/item"
)

// Emitter is the output side of a stage: Emit forwards an item downstream and Report raises
// an error on the pipeline error channel without stopping the stage.
type Emitter interface {
	Emit(ctx context.Context, it *item.Item) error
	Report(ctx context.Context, err error)
}

// Stream replaces the payload of every item with the output of a subprocess fed with it.
type Stream struct {
	opts   Options
	spec   Spec
	logger *slog.Logger
}

// NewStream validates opts and returns the stage.
func NewStream(opts Options) (*Stream, error) {
	err := opts.validate()
	if err != nil {
		return nil, err
	}

	return &Stream{
		opts:   opts,
		spec:   opts.spec(),
		logger: opts.logger(),
	}, nil
}

// Run processes input one item at a time: the next item is read only once the previous one
// was emitted or dropped. It returns when input is closed or ctx is done.
func (s *Stream) Run(ctx context.Context, input <-chan *item.Item, emit Emitter) error {
	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "stream stage stopped")
		case it, ok := <-input:
			if !ok {
				return nil
			}

			out, err := s.Process(ctx, it)
			if err != nil {
				s.logger.Warn("item dropped", slog.String("path", it.Path), slog.Any("error", err))
				emit.Report(ctx, err)

				continue
			}

			err = emit.Emit(ctx, out)
			if err != nil {
				return err
			}
		}
	}
}

// Process runs the command for a single item and returns it with its new payload.
//
// For a bytes item the command has exited when Process returns. For a stream item the command
// runs while the new stream is read, and its failure is returned by Read in place of io.EOF.
func (s *Stream) Process(ctx context.Context, it *item.Item) (*item.Item, error) {
	if it.IsEmpty() {
		return it, nil
	}

	if s.opts.Filename != nil {
		it.Rename(s.opts.Filename)
	}

	proc, err := Start(ctx, s.spec, Piped)
	if err != nil {
		return nil, err
	}

	diag := collectDiagnostics(proc.Stderr)

	if it.Kind() == item.Stream {
		err = it.SetStream(spliceStream(proc, it.Stream(), diag))
		if err != nil {
			return nil, err
		}

		return it, nil
	}

	out, transportErr := transportBytes(ctx, proc, it.Bytes())

	err = diag.settle(proc)
	if err != nil {
		return nil, err
	}

	if transportErr != nil {
		return nil, transportErr
	}

	err = it.SetBytes(out)
	if err != nil {
		return nil, err
	}

	return it, nil
}
