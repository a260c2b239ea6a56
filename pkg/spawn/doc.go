// Package spawn routes the payload of pipeline items through external subprocesses.
//
// Four stage variants share one process invocation and exit checking contract:
//
//   - Stream replaces the payload of every item with the output of a subprocess fed with it.
//     Items are processed one at a time, in order.
//   - Once forwards every item untouched and runs a single command once the input is exhausted.
//   - Each forwards every item and runs a command whose arguments are rendered from the item.
//   - Run executes a command synchronously, outside of any pipeline.
//
// A subprocess fails when it cannot be launched, when it exits with a non-zero code or when it
// writes anything to its standard error. A failing item is dropped and its *PipelineError is
// reported on the pipeline error channel; the stage keeps going.
package spawn
