package drawer_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-spawn/pkg/pipeline"
	"github.com/askiada/go-spawn/pkg/pipeline/drawer"
	"github.com/askiada/go-spawn/pkg/pipeline/measure"
)

func TestDOTDrawer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d := drawer.NewDOTDrawerTo(&buf)

	require.NoError(t, d.AddStep("a", `tr "a-z"`))
	require.NoError(t, d.AddStep("b", ""))
	require.NoError(t, d.AddLink("a", "b"))
	require.Error(t, d.AddLink("b", "a"), "cycles are rejected")
	require.NoError(t, d.SetTotalTime("b", time.Now()))
	require.NoError(t, d.Draw())

	out := buf.String()
	assert.Contains(t, out, "strict digraph")
	assert.Contains(t, out, `"a" -> "b"`)
	assert.Contains(t, out, `tooltip="tr \"a-z\""`)
	assert.Contains(t, out, `rankdir="LR"`)
}

func TestDOTDrawerToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "graph.dot")
	d := drawer.NewDOTDrawer(path)
	require.NoError(t, d.AddStep("only", ""))
	require.NoError(t, d.Draw())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"only"`)
}

func TestPipelineDrawer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	msr := measure.NewDefaultMeasure()

	pipe, err := pipeline.New(context.Background(),
		measure.PipelineMeasure(msr),
		drawer.PipelineDrawer(drawer.NewDOTDrawerTo(&buf), msr),
	)
	require.NoError(t, err)

	root, err := pipeline.AddRootStep(pipe, "numbers", func(ctx context.Context, rootChan chan<- int) error {
		for i := range 5 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- i:
			}
		}

		return nil
	})
	require.NoError(t, err)

	step, err := pipeline.AddStepFromChan(pipe, "slow", root, func(ctx context.Context, input <-chan int, emit *pipeline.Emitter[int]) error {
		for in := range input {
			time.Sleep(2 * time.Millisecond)

			err := emit.Emit(ctx, in)
			if err != nil {
				return err
			}
		}

		return nil
	}, pipeline.StepLabel("sleep 2ms"))
	require.NoError(t, err)

	require.NoError(t, pipeline.AddSink(pipe, "sink", step, func(context.Context, int) error { return nil }))
	require.NoError(t, pipe.Run())

	out := buf.String()
	assert.Contains(t, out, `"start" -> "numbers"`)
	assert.Contains(t, out, `"numbers" -> "slow"`)
	assert.Contains(t, out, `"slow" -> "sink"`)
	assert.Contains(t, out, `"sink" -> "end"`)
	assert.Contains(t, out, "5 items")
	assert.Contains(t, out, `tooltip="sleep 2ms"`)
}
