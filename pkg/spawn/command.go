package spawn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/internal/logging"
	"github.com/askiada/go-spawn/internal/metrics"
)

// killGrace is how long Wait keeps waiting for the standard streams once a killed process is gone.
const killGrace = 2 * time.Second

// Profile selects how the standard streams of a subprocess are wired.
type Profile int

const (
	// Piped gives the caller the write end of stdin and the read ends of stdout and stderr.
	Piped Profile = iota
	// Inherited shares the standard streams of the host.
	Inherited
)

func (p Profile) String() string {
	if p == Inherited {
		return "inherited"
	}

	return "piped"
}

// Spec describes one subprocess invocation.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
	// Stdout and Stderr override the host streams of the Inherited profile.
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func (s Spec) String() string {
	return commandLine(s.Command, s.Args)
}

// Process is a running subprocess.
//
// With the Piped profile the caller must read Stdout and Stderr until EOF before calling Wait.
type Process struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	spec    Spec
	profile Profile
	logger  *slog.Logger
	cmd     *exec.Cmd
	ctx     context.Context //nolint:containedctx // bound to the lifetime of the process
	cancel  context.CancelFunc
	started time.Time

	once sync.Once
	done chan struct{}
	code int
	err  error
}

// Start launches spec. It only fails when spec is invalid: a process that cannot be launched
// is returned with its streams at EOF and Wait reports a KindSpawn error with exit code -1.
//
// The process is killed when ctx is done or when spec.Timeout elapses.
func Start(ctx context.Context, spec Spec, profile Profile) (*Process, error) {
	if spec.Command == "" {
		return nil, errors.Wrap(ErrConfig, "command is mandatory")
	}

	if spec.Logger == nil {
		spec.Logger = logging.New("spawn")
	}

	var (
		pCtx   context.Context
		cancel context.CancelFunc
	)
	if spec.Timeout > 0 {
		pCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	} else {
		pCtx, cancel = context.WithCancel(ctx)
	}

	cmd := exec.CommandContext(pCtx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.WaitDelay = killGrace

	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	proc := &Process{
		spec:    spec,
		profile: profile,
		logger:  spec.Logger,
		cmd:     cmd,
		ctx:     pCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	err := proc.wire()
	if err == nil {
		proc.started = time.Now()
		err = cmd.Start()
	}

	metrics.ProcessStarted(spec.Command, profile.String())

	if err != nil {
		proc.failLaunch(err)

		return proc, nil
	}

	proc.logger.Debug("process started",
		slog.String("command", spec.String()),
		slog.Int("pid", cmd.Process.Pid),
		slog.String("profile", profile.String()))

	if profile == Inherited {
		go proc.Wait() //nolint:errcheck // the result is kept for the callers of Wait
	}

	return proc, nil
}

func (p *Process) wire() error {
	if p.profile == Inherited {
		p.cmd.Stdin = os.Stdin
		p.cmd.Stdout = os.Stdout
		p.cmd.Stderr = os.Stderr

		if p.spec.Stdout != nil {
			p.cmd.Stdout = p.spec.Stdout
		}

		if p.spec.Stderr != nil {
			p.cmd.Stderr = p.spec.Stderr
		}

		return nil
	}

	var err error

	p.Stdin, err = p.cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "unable to create stdin pipe")
	}

	p.Stdout, err = p.cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "unable to create stdout pipe")
	}

	p.Stderr, err = p.cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "unable to create stderr pipe")
	}

	return nil
}

// failLaunch turns p into a process that already exited with code -1.
func (p *Process) failLaunch(cause error) {
	if p.profile == Piped {
		p.Stdin = nopWriteCloser{io.Discard}
		p.Stdout = io.NopCloser(strings.NewReader(""))
		p.Stderr = io.NopCloser(strings.NewReader(""))
	}

	p.once.Do(func() {
		p.cancel()
		p.code = -1
		p.err = newPipelineError(KindSpawn, p.spec, -1,
			fmt.Sprintf("Unable to start command: %v\nCommand: %s", cause, p.spec))
		metrics.ProcessFailed(p.spec.Command, KindSpawn.String())
		p.logger.Warn("process failed to start", slog.String("command", p.spec.String()), slog.Any("error", cause))
		close(p.done)
	})
}

// Done is closed once the exit status is known.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Kill stops the process. Wait still has to be called.
func (p *Process) Kill() {
	p.cancel()
}

// Wait blocks until the process exited and returns its exit code. The error is a
// *PipelineError when the code is not zero. Wait can be called several times.
func (p *Process) Wait() (int, error) {
	p.once.Do(p.wait)

	<-p.done

	return p.code, p.err
}

func (p *Process) wait() {
	defer close(p.done)

	err := p.cmd.Wait()
	ctxErr := p.ctx.Err()
	p.cancel()

	elapsed := time.Since(p.started)
	metrics.ProcessExited(p.spec.Command, elapsed)

	p.code = exitCodeFromError(err)
	p.logger.Debug("process exited",
		slog.String("command", p.spec.String()),
		slog.Int("code", p.code),
		slog.Duration("elapsed", elapsed))

	if err == nil {
		return
	}

	if p.code == 0 {
		p.code = -1
	}

	p.err = exitError(p.spec, p.code)
	if ctxErr != nil {
		p.err = newPipelineError(KindExit, p.spec, p.code,
			fmt.Sprintf("Command terminated: %v\nCommand: %s", ctxErr, p.spec))
	}

	metrics.ProcessFailed(p.spec.Command, KindExit.String())
}

// exitCodeFromError extracts the exit code from the error returned by exec.Cmd.Wait.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
