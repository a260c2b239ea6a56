package spawn

import (
	"bytes"
	"context"
	"io"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-spawn/internal/metrics"
)

// copyBufferSize is the chunk size used to feed a streamed payload to a process.
const copyBufferSize = 32 * 1024

// isBrokenPipe reports whether err comes from writing to a process that stopped reading.
// The exit status and stderr of the process decide whether that is a failure.
func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe)
}

// transportBytes writes payload to the stdin of proc and returns everything it wrote to stdout.
func transportBytes(ctx context.Context, proc *Process, payload []byte) ([]byte, error) {
	var out bytes.Buffer

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := proc.Stdin.Write(payload)
		metrics.BytesIn(proc.spec.Command, int64(n))

		closeErr := proc.Stdin.Close()
		if err != nil && !isBrokenPipe(err) {
			return errors.Wrap(err, "unable to write stdin")
		}

		if closeErr != nil && !isBrokenPipe(closeErr) {
			return errors.Wrap(closeErr, "unable to close stdin")
		}

		return nil
	})

	g.Go(func() error {
		n, err := io.Copy(&out, proc.Stdout)
		metrics.BytesOut(proc.spec.Command, n)

		return errors.Wrap(err, "unable to read stdout")
	})

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// spliceStream feeds src to the stdin of proc and returns the stdout of proc as a stream.
//
// Reading the returned stream to its end reports the failure of the process in place of io.EOF.
// Closing it early kills the process. Once the process exited, src is closed and no longer fed.
func spliceStream(proc *Process, src io.ReadCloser, diag *diagnostics) io.ReadCloser {
	spliced := &splicedStream{
		proc:   proc,
		diag:   diag,
		src:    src,
		stdout: proc.Stdout,
		fed:    make(chan struct{}),
	}

	go spliced.feed()

	return spliced
}

type splicedStream struct {
	proc   *Process
	diag   *diagnostics
	src    io.ReadCloser
	stdout io.Reader

	fed     chan struct{}
	feedErr error

	feedMu  sync.Mutex
	copied  bool
	stopped bool
	srcOnce sync.Once

	once   sync.Once
	err    error
	closed bool
}

func (s *splicedStream) closeSrc() {
	s.srcOnce.Do(func() {
		_ = s.src.Close()
	})
}

func (s *splicedStream) feed() {
	defer close(s.fed)

	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(s.proc.Stdin, s.src, buf)
	metrics.BytesIn(s.proc.spec.Command, n)

	s.feedMu.Lock()
	s.copied = true
	stopped := s.stopped
	s.feedMu.Unlock()

	s.closeSrc()
	closeErr := s.proc.Stdin.Close()

	if stopped {
		return
	}

	switch {
	case err != nil && !isBrokenPipe(err):
		s.feedErr = errors.Wrap(err, "unable to feed stdin")
	case closeErr != nil && !isBrokenPipe(closeErr):
		s.feedErr = errors.Wrap(closeErr, "unable to close stdin")
	}
}

// stopFeed is called once the process exited. It reports whether the feeder got to the end of
// src on its own. Otherwise src is closed to release a feeder blocked on an idle source.
func (s *splicedStream) stopFeed() bool {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	if s.copied {
		return true
	}

	s.stopped = true
	s.closeSrc()

	return false
}

// finish waits for stderr and the process, then stops the feeder. It runs once.
func (s *splicedStream) finish() error {
	s.once.Do(func() {
		s.err = s.diag.settle(s.proc)

		if !s.stopFeed() {
			return
		}

		<-s.fed

		if s.err == nil {
			s.err = s.feedErr
		}
	})

	return s.err
}

func (s *splicedStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, errors.New("read on closed stream")
	}

	n, err := s.stdout.Read(p)
	metrics.BytesOut(s.proc.spec.Command, int64(n))

	if errors.Is(err, io.EOF) {
		finishErr := s.finish()
		if finishErr != nil {
			return n, finishErr
		}
	}

	return n, err //nolint:wrapcheck // io.EOF must reach the caller untouched
}

// Close releases the process. A process still running is killed and its failure is ignored.
func (s *splicedStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	select {
	case <-s.proc.Done():
		return s.finish()
	default:
	}

	s.proc.Kill()
	_ = s.finish()

	return nil
}
