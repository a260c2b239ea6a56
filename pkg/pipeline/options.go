package pipeline

import "github.com/askiada/go-spawn/pkg/pipeline/model"

// StepOption configures the details of a step.
type StepOption func(details *model.StepInfo)

// StepLabel attaches a human readable label to a step, for instance the command it runs.
func StepLabel(label string) StepOption {
	return func(details *model.StepInfo) {
		details.Label = label
	}
}
