package spawn

import (
	"context"
)

// Run executes the command of opts with the host standard streams and blocks until it exits.
// done is called only when the command succeeded.
func Run(ctx context.Context, opts Options, done func()) error {
	err := opts.validate()
	if err != nil {
		return err
	}

	proc, err := Start(ctx, opts.spec(), Inherited)
	if err != nil {
		return err
	}

	_, err = proc.Wait()
	if err != nil {
		return err
	}

	if done != nil {
		done()
	}

	return nil
}
