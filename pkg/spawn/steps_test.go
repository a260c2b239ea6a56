package spawn_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-spawn/pkg/item"
	"github.com/askiada/go-spawn/pkg/pipeline"
	"github.com/askiada/go-spawn/pkg/pipeline/model"
	"github.com/askiada/go-spawn/pkg/pipeline/tolerate"
	"github.com/askiada/go-spawn/pkg/spawn"
)

func rootItems(t *testing.T, pipe *pipeline.Pipeline, items ...*item.Item) *model.Step[*item.Item] {
	t.Helper()

	root, err := pipeline.AddRootStep(pipe, "files", func(ctx context.Context, rootChan chan<- *item.Item) error {
		for _, it := range items {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- it:
			}
		}

		return nil
	})
	require.NoError(t, err)

	return root
}

type collector struct {
	mu    sync.Mutex
	items map[string]string
}

func (c *collector) sink(_ context.Context, it *item.Item) error {
	payload, err := it.ReadAll()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[it.Path] = string(payload)

	return nil
}

func TestAddStreamInPipeline(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	root := rootItems(t, pipe,
		item.NewBytes("a.txt", []byte("hello")),
		item.NewStream("b.txt", readCloser("world")),
		item.NewEmpty("c.txt"),
	)

	upper, err := spawn.AddStream(pipe, "upper", root, spawn.Options{
		Cmd:  "tr",
		Args: []string{"a-z", "A-Z"},
		Filename: func(base, ext string) string {
			return base + ".up" + ext
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `tr "a-z" "A-Z"`, upper.Details.Label)

	coll := &collector{items: map[string]string{}}
	require.NoError(t, pipeline.AddSink(pipe, "collect", upper, coll.sink))

	require.NoError(t, pipe.Run())
	assert.Equal(t, map[string]string{
		"a.up.txt": "HELLO",
		"b.up.txt": "WORLD",
		"c.txt":    "",
	}, coll.items)
}

func TestAddStreamStopsOnFirstFailure(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	root := rootItems(t, pipe, item.NewBytes("a.txt", []byte("x")))
	failing, err := spawn.AddStream(pipe, "failing", root, spawn.Options{Cmd: "sh", Args: []string{"-c", "exit 6"}})
	require.NoError(t, err)

	coll := &collector{items: map[string]string{}}
	require.NoError(t, pipeline.AddSink(pipe, "collect", failing, coll.sink))

	err = pipe.Run()

	var pErr *spawn.PipelineError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 6, pErr.ExitCode)
	assert.Contains(t, err.Error(), "failing")
}

func TestAddEachTolerated(t *testing.T) {
	t.Parallel()

	tol := tolerate.New()
	pipe, err := pipeline.New(context.Background(), tol)
	require.NoError(t, err)

	root := rootItems(t, pipe, item.NewBytes("good", nil), item.NewBytes("bad", nil), item.NewBytes("good2", nil))
	each, err := spawn.AddEach(pipe, "check", root, spawn.Options{
		Cmd:  "sh",
		Args: []string{"-c", `test "$1" != bad`, "sh", "{{ .Item.Path }}"},
	})
	require.NoError(t, err)

	coll := &collector{items: map[string]string{}}
	require.NoError(t, pipeline.AddSink(pipe, "collect", each, coll.sink))

	require.NoError(t, pipe.Run())
	assert.Len(t, coll.items, 3)
	require.Len(t, tol.Errors(), 1)

	var pErr *spawn.PipelineError
	require.True(t, errors.As(tol.Errors()[0], &pErr))
	assert.Equal(t, spawn.KindExit, pErr.Kind)
	assert.Equal(t, []string{"-c", `test "$1" != bad`, "sh", "bad"}, pErr.Args)
}

func TestAddOnceInPipeline(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	root := rootItems(t, pipe, item.NewEmpty("a"), item.NewEmpty("b"))
	once, err := spawn.AddOnce(pipe, "notify", root, spawn.Options{Cmd: "echo", Args: []string{"-n", "finished"}, Stdout: out})
	require.NoError(t, err)

	coll := &collector{items: map[string]string{}}
	require.NoError(t, pipeline.AddSink(pipe, "collect", once, coll.sink))

	require.NoError(t, pipe.Run())
	assert.Len(t, coll.items, 2)
	assert.Equal(t, "finished", out.String())
}

func TestAddStepsRejectInvalidOptions(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	root := rootItems(t, pipe)

	_, err = spawn.AddStream(pipe, "stream", root, spawn.Options{})
	require.ErrorIs(t, err, spawn.ErrConfig)

	_, err = spawn.AddOnce(pipe, "once", root, spawn.Options{})
	require.ErrorIs(t, err, spawn.ErrConfig)

	_, err = spawn.AddEach(pipe, "each", root, spawn.Options{Cmd: "echo", Args: []string{"{{"}})
	require.ErrorIs(t, err, spawn.ErrConfig)
}
