package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-spawn/internal/config"
	"github.com/askiada/go-spawn/internal/logging"
	"github.com/askiada/go-spawn/pkg/spawn"
)

// syncBuffer is shared by the sink and the subprocesses writing to the host streams.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	out := &syncBuffer{}
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return dir
}

func TestStreamModeStdin(t *testing.T) {
	out, err := execute(t, "hello", "--cmd", "tr", "--args", "a-z", "--args", "A-Z")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
}

func TestStreamModeStdinStreamed(t *testing.T) {
	out, err := execute(t, "hello", "--stream", "--cmd", "tr", "--args", "a-z", "--args", "A-Z")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
}

func TestStreamModeFilesToDir(t *testing.T) {
	src := writeFiles(t, map[string]string{"a.txt": "abc", "nested/b.txt": "def"})
	dest := t.TempDir()

	for _, stream := range []bool{false, true} {
		args := []string{
			"--cmd", "tr", "--args", "a-z", "--args", "A-Z",
			"--rename", "{{ .Base }}.up{{ .Ext }}",
			"--out", dest,
			filepath.Join(src, "a.txt"), filepath.Join(src, "nested", "b.txt"),
		}
		if stream {
			args = append(args, "--stream")
		}

		_, err := execute(t, "", args...)
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(dest, "a.up.txt"))
		require.NoError(t, err)
		assert.Equal(t, "ABC", string(got))

		got, err = os.ReadFile(filepath.Join(dest, "b.up.txt"))
		require.NoError(t, err)
		assert.Equal(t, "DEF", string(got))
	}
}

func TestStreamModeFailure(t *testing.T) {
	src := writeFiles(t, map[string]string{"a.txt": "abc"})

	_, err := execute(t, "", "--cmd", "sh", "--args", "-c", "--args", "exit 3", filepath.Join(src, "a.txt"))

	var pErr *spawn.PipelineError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 3, pErr.ExitCode)
}

func TestContinueOnError(t *testing.T) {
	src := writeFiles(t, map[string]string{"good.txt": "ok", "bad.txt": "fail"})

	out, err := execute(t, "",
		"--continue-on-error",
		"--cmd", "sh", "--args", "-c", "--args", `x=$(cat); test "$x" = ok && printf %s "$x"`,
		filepath.Join(src, "good.txt"), filepath.Join(src, "bad.txt"),
	)
	require.ErrorIs(t, err, errItemsFailed)
	assert.Equal(t, "ok", out)
}

func TestEachMode(t *testing.T) {
	src := writeFiles(t, map[string]string{"a.txt": "", "b.txt": ""})

	out, err := execute(t, "",
		"--mode", "each",
		"--cmd", "echo", "--args", "--name", "--args", "{{ base .Item.Path }}",
		filepath.Join(src, "a.txt"), filepath.Join(src, "b.txt"),
	)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"--name a.txt", "--name b.txt"}, strings.Split(strings.TrimSpace(out), "\n"))
}

func TestOnceMode(t *testing.T) {
	src := writeFiles(t, map[string]string{"a.txt": "abc"})
	dest := t.TempDir()

	out, err := execute(t, "", "--mode", "once", "--cmd", "echo", "--args", "done", "--out", dest, filepath.Join(src, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "done\n", out)

	got, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRunMode(t *testing.T) {
	out, err := execute(t, "", "--mode", "run", "--cmd", "echo", "--args", "ran")
	require.NoError(t, err)
	assert.Equal(t, "ran\n", out)

	_, err = execute(t, "", "--mode", "run", "--cmd", "sh", "--args", "-c", "--args", "exit 2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Command: sh "-c" "exit 2"`)
}

func TestInvalidSettings(t *testing.T) {
	tcs := map[string]struct {
		args   []string
		wantIs error
	}{
		"missing cmd":    {args: []string{"--mode", "stream"}, wantIs: spawn.ErrConfig},
		"unknown mode":   {args: []string{"--mode", "sideways", "--cmd", "cat"}, wantIs: errUnknownMode},
		"bad template":   {args: []string{"--mode", "each", "--cmd", "echo", "--args", "{{"}, wantIs: spawn.ErrConfig},
		"bad rename":     {args: []string{"--cmd", "cat", "--rename", "{{"}},
		"bad log level":  {args: []string{"--cmd", "cat", "--log-level", "loud"}},
		"missing config": {args: []string{"--cmd", "cat", "--config", "/does/not/exist.toml"}},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, "", tc.args...)
			require.Error(t, err)

			if tc.wantIs != nil {
				require.ErrorIs(t, err, tc.wantIs)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"spawnpipe.toml": "[command]\ncmd = \"tr\"\nargs = [\"a-z\", \"A-Z\"]\n",
	})

	out, err := execute(t, "config", "--config", filepath.Join(dir, "spawnpipe.toml"))
	require.NoError(t, err)
	assert.Equal(t, "CONFIG", out)
}

func TestDraw(t *testing.T) {
	src := writeFiles(t, map[string]string{"a.txt": "abc"})
	graphPath := filepath.Join(t.TempDir(), "graph.dot")

	_, err := execute(t, "", "--cmd", "cat", "--draw", graphPath, filepath.Join(src, "a.txt"))
	require.NoError(t, err)

	got, err := os.ReadFile(graphPath)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"read" -> "stream"`)
	assert.Contains(t, string(got), `"stream" -> "write"`)
}

func TestDestination(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		path string
		want string
	}{
		"relative": {path: "src/a.txt", want: "out/src/a.txt"},
		"absolute": {path: "/tmp/a.txt", want: "out/a.txt"},
		"parent":   {path: "../a.txt", want: "out/a.txt"},
		"stdin":    {path: stdinPath, want: "out/stdin"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, destination("out", tc.path))
		})
	}
}

func TestRenameFunc(t *testing.T) {
	t.Parallel()

	rename, err := renameFunc("{{ .Base | upper }}{{ .Ext }}")
	require.NoError(t, err)
	assert.Equal(t, "APP.js", rename("app", ".js"))

	empty, err := renameFunc("{{ if false }}x{{ end }}")
	require.NoError(t, err)
	assert.Equal(t, "app.js", empty("app", ".js"))
}

func TestServeMetrics(t *testing.T) {
	t.Parallel()

	addr, stop, err := serveMetrics("127.0.0.1:0", logging.New("test"))
	require.NoError(t, err)
	defer stop()

	require.NoError(t, spawn.Run(context.Background(), spawn.Options{Cmd: "true"}, nil))

	resp, err := http.Get("http://" + addr + "/metrics") //nolint:noctx // test
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "spawn_process_started_total")
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	mode, err := cmd.Flags().GetString("mode")
	require.NoError(t, err)
	assert.Equal(t, config.Default().Mode, mode)
}
