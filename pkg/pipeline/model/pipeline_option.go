package model

import "time"

// PipelineOption defines the interface for pipeline options.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error

	pipelineStepOption
	pipelineSinkOption
	pipelineErrorOption

	// Finish runs after the pipeline is finished.
	Finish() error
}

// pipelineStepOption defines the interface for step options at the pipeline level.
type pipelineStepOption interface {
	// PrepareStep runs when a root step or a stage is added to the pipeline.
	PrepareStep(parentStep, step *StepInfo) error
	// OnStepOutput runs everytime something is pushed to the output of the step.
	OnStepOutput(parentStep, step *StepInfo, iterationDuration, computationDuration time.Duration) error
}

// pipelineSinkOption defines the interface for sink options at the pipeline level.
type pipelineSinkOption interface {
	// PrepareSink runs when the sink is added to the pipeline.
	PrepareSink(parentStep, step *StepInfo) error
	// OnSinkOutput runs everytime the sink consumed an element.
	OnSinkOutput(parentStep, step *StepInfo, iterationDuration, computationDuration time.Duration) error
	// AfterSink runs once the sink input is exhausted.
	AfterSink(step *StepInfo, totalDuration time.Duration) error
}

// pipelineErrorOption lets an option decide what happens to an error raised by a step.
type pipelineErrorOption interface {
	// OnError receives every error raised by a step. The returned error is passed to the
	// next option; if it is still non nil after the last option the pipeline stops with it.
	// Returning nil keeps the pipeline running.
	OnError(step *StepInfo, err error) error
}
