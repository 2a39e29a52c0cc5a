package zoneio

import "context"

// chanCompletion implements [Completion] with a single-slot channel,
// resolved exactly once, by the worker that performed the operation or
// by the submitter when the submission is rejected outright.
type chanCompletion struct {
	done chan error
	err  error
	set  bool
}

func newCompletion() *chanCompletion {
	return &chanCompletion{done: make(chan error, 1)}
}

func (c *chanCompletion) resolve(err error) {
	c.done <- err
}

func (c *chanCompletion) Wait(ctx context.Context) error {
	if c.set {
		return c.err
	}

	select {
	case err := <-c.done:
		c.err = err
		c.set = true

		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
