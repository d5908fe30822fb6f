package vegesgd

import "context"

// IterStopper stops an SGD after a fixed number of steps.
type IterStopper struct {
	SGD   *SGD
	Limit int
}

// Done reports whether the SGD has taken Limit steps.
func (i *IterStopper) Done() bool {
	return i.SGD.NumIterations >= i.Limit
}

// ContextStopper stops once its context is done.
type ContextStopper struct {
	Context context.Context
}

// Done returns true if the context was canceled.
func (c ContextStopper) Done() bool {
	return c.Context.Err() != nil
}

// AnyStopper stops when any of its Stoppers does.
type AnyStopper []Stopper

// Done checks every Stopper.
func (a AnyStopper) Done() bool {
	for _, s := range a {
		if s.Done() {
			return true
		}
	}
	return false
}
