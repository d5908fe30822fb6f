package vegesgd

import "github.com/unixpickle/anydiff"

// A Transformer transforms gradients, for example to
// apply adaptive step sizes.
//
// After its first call, a Transformer expects gradients
// over the same variables.
// It may modify its input and return it, but it must not
// retain a reference to it.
// The output is valid until the next call.
type Transformer interface {
	Transform(g anydiff.Grad) anydiff.Grad
}

// A Batch is a materialized mini-batch, produced by a
// Fetcher and consumed by a Gradienter.
type Batch interface{}

// A Fetcher builds Batches from SampleLists.
type Fetcher interface {
	Fetch(s SampleList) (Batch, error)
}

// A Gradienter computes the gradient of a Batch.
//
// The same gradient instance may be reused by successive
// calls.
type Gradienter interface {
	Gradient(b Batch) anydiff.Grad
}

// A Coster computes a single-component differentiable
// cost for a Batch.
type Coster interface {
	TotalCost(b Batch) anydiff.Res
}

// A Rater determines the learning rate given the epoch.
// Epochs may be fractional.
type Rater interface {
	Rate(epoch float64) float64
}

// A SampleList is a list of training samples.
type SampleList interface {
	Len() int
	Swap(i, j int)

	// Slice returns a shallow copy of a range of the list.
	Slice(i, j int) SampleList
}

// A Stopper decides when SGD should stop.
type Stopper interface {
	Done() bool
}
