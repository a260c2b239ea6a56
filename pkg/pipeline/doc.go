// Package pipeline provides a pipeline for processing data.
//
// The pipeline package offers a convenient way to process data using a series of steps. A root step feeds the
// pipeline, stages transform what they receive and a sink consumes the result. Each step runs in its own goroutine
// and steps are connected with unbuffered channels, so a slow step throttles the steps before it.
//
// A stage added with AddStepFromChan owns its read loop. It decides when it is ready for the next element, which
// makes strict one-at-a-time processing explicit, and it reports errors through its Emitter without stopping.
//
// By default the pipeline stops on the first error raised by any step and cancels the context shared by the steps.
// Pipeline options can absorb errors instead (see the tolerate package), in which case the run continues and the
// failing elements are simply not forwarded.
package pipeline
