package spawn

import (
	"bytes"
	"io"
)

// diagnostics accumulates everything a process writes to its standard error.
type diagnostics struct {
	buf  bytes.Buffer
	done chan struct{}
}

// collectDiagnostics starts draining stderr. It must be called right after the process started.
func collectDiagnostics(stderr io.Reader) *diagnostics {
	diag := &diagnostics{done: make(chan struct{})}

	go func() {
		defer close(diag.done)
		// a read error only means the pipe went away with the process
		_, _ = io.Copy(&diag.buf, stderr)
	}()

	return diag
}

// text blocks until stderr reached EOF and returns what was written to it.
func (d *diagnostics) text() string {
	<-d.done

	return d.buf.String()
}

// settle waits for stderr and for the exit of proc, in that order. Anything written to stderr is
// a failure whatever the exit code; it takes precedence over the exit error.
func (d *diagnostics) settle(proc *Process) error {
	text := d.text()

	code, err := proc.Wait()
	if text != "" {
		return stderrError(proc.spec, code, text)
	}

	return err
}
