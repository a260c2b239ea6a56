// Package tolerate provides a pipeline option that keeps the pipeline running when a step raises
// an error. The errors are logged and collected instead.
package tolerate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/askiada/go-spawn/pkg/pipeline/model"
)

// Tolerator absorbs step errors. Use Errors once the pipeline returned.
type Tolerator struct {
	logger *slog.Logger
	max    int

	mu     sync.Mutex
	errors []error
}

// Option configures a Tolerator.
type Option func(t *Tolerator)

// WithLogger sets the logger used to report absorbed errors.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tolerator) {
		t.logger = logger
	}
}

// WithMaxErrors stops the pipeline once more than max errors were absorbed. Zero means no limit.
func WithMaxErrors(max int) Option {
	return func(t *Tolerator) {
		t.max = max
	}
}

// New creates a Tolerator. Pass it to pipeline.New.
func New(opts ...Option) *Tolerator {
	tol := &Tolerator{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(tol)
	}

	return tol
}

// Errors returns the absorbed errors, in the order they were raised.
func (t *Tolerator) Errors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()

	errs := make([]error, len(t.errors))
	copy(errs, t.errors)

	return errs
}

// OnError records err and lets the pipeline go on, until more than the maximum number of
// errors were recorded. Past that limit err is returned and the pipeline stops.
func (t *Tolerator) OnError(step *model.StepInfo, err error) error {
	t.mu.Lock()
	t.errors = append(t.errors, err)
	total := len(t.errors)
	t.mu.Unlock()

	if t.max > 0 && total > t.max {
		return err
	}

	t.logger.Warn("step error", "step", step.Name, "error", err)

	return nil
}

// New is a no-op.
func (t *Tolerator) New() error { return nil }

// Finish is a no-op. The absorbed errors stay available through Errors.
func (t *Tolerator) Finish() error { return nil }

// PrepareStep is a no-op.
func (t *Tolerator) PrepareStep(_, _ *model.StepInfo) error { return nil }

// OnStepOutput is a no-op.
func (t *Tolerator) OnStepOutput(_, _ *model.StepInfo, _, _ time.Duration) error { return nil }

// PrepareSink is a no-op.
func (t *Tolerator) PrepareSink(_, _ *model.StepInfo) error { return nil }

// OnSinkOutput is a no-op.
func (t *Tolerator) OnSinkOutput(_, _ *model.StepInfo, _, _ time.Duration) error { return nil }

// AfterSink is a no-op.
func (t *Tolerator) AfterSink(_ *model.StepInfo, _ time.Duration) error { return nil }

var _ model.PipelineOption = (*Tolerator)(nil)
