package spawn

import (
	"context"
	"log/slog"
	"sync"
	"text/template"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/internal/metrics"
	"github.com/askiada/go-spawn/pkg/item"
)

// Each runs a command for every item, with arguments and working directory rendered from the
// item. Items are forwarded before their command runs.
type Each struct {
	spec   Spec
	args   []*template.Template
	cwd    *template.Template
	logger *slog.Logger
}

// NewEach validates opts and parses the argument templates.
func NewEach(opts Options) (*Each, error) {
	err := opts.validate()
	if err != nil {
		return nil, err
	}

	args, err := parseArgs(opts.Args)
	if err != nil {
		return nil, err
	}

	stage := &Each{
		spec:   opts.spec(),
		args:   args,
		logger: opts.logger(),
	}

	if opts.Cwd != "" {
		stage.cwd, err = parseTemplate("cwd", opts.Cwd)
		if err != nil {
			return nil, err
		}
	}

	return stage, nil
}

// Spec renders the invocation for it.
func (e *Each) Spec(it *item.Item) (Spec, error) {
	spec := e.spec

	args, err := renderAll(e.args, it)
	if err != nil {
		return spec, newPipelineError(KindTemplate, spec, -1, err.Error())
	}
	spec.Args = args

	if e.cwd != nil {
		spec.Dir, err = render(e.cwd, it)
		if err != nil {
			return spec, newPipelineError(KindTemplate, spec, -1, err.Error())
		}
	}

	return spec, nil
}

// Run forwards every item and launches its command. Commands run concurrently; Run returns once
// input is closed and every command exited.
func (e *Each) Run(ctx context.Context, input <-chan *item.Item, emit Emitter) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "each stage stopped")
		case it, ok := <-input:
			if !ok {
				return nil
			}

			err := emit.Emit(ctx, it)
			if err != nil {
				return err
			}

			if it.IsEmpty() {
				continue
			}

			spec, err := e.Spec(it)
			if err != nil {
				metrics.ProcessFailed(e.spec.Command, KindTemplate.String())
				e.logger.Warn("unable to render command", slog.String("path", it.Path), slog.Any("error", err))
				emit.Report(ctx, err)

				continue
			}

			proc, err := Start(ctx, spec, Inherited)
			if err != nil {
				return err
			}

			wg.Add(1)

			go func() {
				defer wg.Done()

				_, err := proc.Wait()
				if err != nil {
					emit.Report(ctx, err)
				}
			}()
		}
	}
}
