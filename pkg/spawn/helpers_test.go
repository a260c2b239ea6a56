package spawn_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/askiada/go-spawn/pkg/item"
)

type event struct {
	kind string
	path string
	err  error
	at   time.Time
}

// recorder is an Emitter keeping track of what a stage emitted and reported.
type recorder struct {
	mu      sync.Mutex
	events  []event
	onEmit  func(it *item.Item)
	release chan struct{}
}

func (r *recorder) Emit(ctx context.Context, it *item.Item) error {
	if r.release != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.release:
		}
	}

	if r.onEmit != nil {
		r.onEmit(it)
	}

	r.record(event{kind: "emit", path: it.Path, at: time.Now()})

	return nil
}

func (r *recorder) Report(_ context.Context, err error) {
	r.record(event{kind: "report", err: err, at: time.Now()})
}

func (r *recorder) record(ev event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]event(nil), r.events...)
}

func (r *recorder) emitted() []string {
	var paths []string

	for _, ev := range r.all() {
		if ev.kind == "emit" {
			paths = append(paths, ev.path)
		}
	}

	return paths
}

func (r *recorder) errors() []error {
	var errs []error

	for _, ev := range r.all() {
		if ev.kind == "report" {
			errs = append(errs, ev.err)
		}
	}

	return errs
}

// feed returns a closed channel holding items.
func feed(items ...*item.Item) <-chan *item.Item {
	input := make(chan *item.Item, len(items))
	for _, it := range items {
		input <- it
	}
	close(input)

	return input
}

// syncBuffer is a bytes.Buffer safe for the copy goroutines of os/exec.
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

func readCloser(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}
