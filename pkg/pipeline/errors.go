package pipeline

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/pkg/pipeline/model"
)

var (
	ErrPipelineMustBeSet = errors.New("p must be set")
	ErrInputMustBeSet    = errors.New("input must be set")
	ErrStepFnMustBeSet   = errors.New("step function must be set")
)

type errorChans struct {
	mu   sync.Mutex
	list []*errorChan
}

func (ec *errorChans) add(errChan *errorChan) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.list = append(ec.list, errChan)
}

type errorChan struct {
	c    <-chan error
	step *model.StepInfo
}

func newErrorChan(step *model.StepInfo, c <-chan error) *errorChan {
	return &errorChan{
		c:    c,
		step: step,
	}
}

type stepError struct {
	step *model.StepInfo
	err  error
}

// mergeErrors merges multiple channels of errors.
// Based on https://blog.golang.org/pipelines.
func mergeErrors(cs ...*errorChan) <-chan stepError {
	var wg sync.WaitGroup
	// The output channel holds as many errors as there are error channels, so that a
	// waiter returning early does not block the first error of every step.
	out := make(chan stepError, len(cs))

	output := func(c *errorChan) {
		defer wg.Done()
		if c.c == nil {
			return
		}
		for n := range c.c {
			out <- stepError{step: c.step, err: errors.Wrap(n, c.step.Name)}
		}
	}
	wg.Add(len(cs))
	for _, c := range cs {
		go output(c)
	}

	// Close out once all the output goroutines are done. This must start after the wg.Add call.
	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
