package spawn

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/pkg/item"
)

// Once forwards every item untouched and runs the command once the input is exhausted.
type Once struct {
	spec   Spec
	logger *slog.Logger
}

// NewOnce validates opts and returns the stage.
func NewOnce(opts Options) (*Once, error) {
	err := opts.validate()
	if err != nil {
		return nil, err
	}

	return &Once{
		spec:   opts.spec(),
		logger: opts.logger(),
	}, nil
}

// Run forwards input and then runs the command with the host standard streams. A failure of
// the command is reported after every item was forwarded.
func (o *Once) Run(ctx context.Context, input <-chan *item.Item, emit Emitter) error {
	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "once stage stopped")
		case it, ok := <-input:
			if !ok {
				o.logger.Debug("input exhausted, running command", slog.String("command", o.spec.String()))
				err := o.exec(ctx)
				if err != nil {
					emit.Report(ctx, err)
				}

				return nil
			}

			err := emit.Emit(ctx, it)
			if err != nil {
				return err
			}
		}
	}
}

func (o *Once) exec(ctx context.Context) error {
	proc, err := Start(ctx, o.spec, Inherited)
	if err != nil {
		return err
	}

	_, err = proc.Wait()

	return err
}
