package spawn

import (
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/internal/logging"
)

// Options configures a stage.
type Options struct {
	// Cmd is the executable to run. It is required.
	Cmd string
	// Args are the command arguments. Each renders them as templates.
	Args []string
	// Cwd is the working directory. Each renders it as a template.
	Cwd string
	// Env is appended to the environment of the host.
	Env []string
	// Timeout bounds a single subprocess. Zero means no limit.
	Timeout time.Duration
	// Filename rewrites the file name of every item handled by Stream. It receives the base
	// name and the extension and returns the new file name.
	Filename func(base, ext string) string
	// Stdout and Stderr receive the output of subprocesses sharing the host streams. They
	// default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func (o Options) validate() error {
	if o.Cmd == "" {
		return errors.Wrap(ErrConfig, "cmd is mandatory")
	}

	if o.Timeout < 0 {
		return errors.Wrapf(ErrConfig, "negative timeout %s", o.Timeout)
	}

	return nil
}

func (o Options) spec() Spec {
	return Spec{
		Command: o.Cmd,
		Args:    o.Args,
		Dir:     o.Cwd,
		Env:     o.Env,
		Timeout: o.Timeout,
		Stdout:  o.Stdout,
		Stderr:  o.Stderr,
		Logger:  o.logger(),
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return logging.New("spawn")
}
