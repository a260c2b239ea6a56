package model

type stepType string

const (
	RootStepType  stepType = "root"
	StageStepType stepType = "stage"
	SinkStepType  stepType = "sink"
)

// StepInfo describes a step of the pipeline to the pipeline options.
type StepInfo struct {
	Type stepType
	Name string
	// Label is an optional human readable description, for instance the command line run by a stage.
	Label string
}

var (
	StartStep = &Step[any]{Details: &StepInfo{Name: "start"}}
	EndStep   = &Step[any]{Details: &StepInfo{Name: "end"}}
)

// Step is the output side of a step: the channel the next step reads from.
type Step[O any] struct {
	Output  chan O
	Details *StepInfo
}
