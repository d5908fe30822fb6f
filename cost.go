package vegecast

import "github.com/unixpickle/anydiff"

// A Cost measures how far a batch of network outputs is
// from the desired outputs.
//
// Like a Layer, a Cost is batched: it produces one cost
// per packed output.
type Cost interface {
	Cost(desired, actual anydiff.Res, n int) anydiff.Res
}

// MSE is the mean squared error over the components of
// each output, the reconstruction loss of an autoencoder.
type MSE struct{}

// Cost computes one mean squared error per output.
func (m MSE) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	neg := anydiff.Scale(actual, actual.Output().Creator().MakeNumeric(-1))
	sq := anydiff.Square(anydiff.Add(desired, neg))
	numComps := sq.Output().Len() / n
	sum := anydiff.SumCols(&anydiff.Matrix{
		Data: sq,
		Rows: n,
		Cols: numComps,
	})
	return anydiff.Scale(sum, sum.Output().Creator().MakeNumeric(1/float64(numComps)))
}

// MeanCost averages the per-sample costs of a batch into
// a single-component result.
func MeanCost(c Cost, desired, actual anydiff.Res, n int) anydiff.Res {
	costs := c.Cost(desired, actual, n)
	return anydiff.Scale(anydiff.Sum(costs), costs.Output().Creator().MakeNumeric(1/float64(n)))
}
