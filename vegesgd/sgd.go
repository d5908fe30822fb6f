// Package vegesgd provides the stochastic gradient
// descent loop used to fit the autoencoder.
package vegesgd

import (
	"errors"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
)

// SGD performs stochastic gradient descent.
type SGD struct {
	// Fetcher turns a mini-batch of samples into a Batch
	// for the Gradienter.
	Fetcher Fetcher

	// Gradienter computes the raw gradient of a Batch.
	Gradienter Gradienter

	// Transformer, if non-nil, transforms every gradient
	// before the step.
	Transformer Transformer

	// Samples is the training set.
	// It is shuffled in place at the start of every epoch.
	Samples SampleList

	// Rater determines the learning rate for each step.
	Rater Rater

	// Rand drives the shuffling.
	// If nil, the global source is used.
	Rand *rand.Rand

	// StatusFunc, if non-nil, is called after every step
	// with the Batch it used. NumProcessed and
	// NumIterations already include that step.
	StatusFunc func(b Batch)

	// BatchSize is the mini-batch size.
	// If it is 0, every iteration uses the whole set.
	BatchSize int

	// NumProcessed counts the samples passed to the
	// Gradienter so far, for computing the epoch.
	NumProcessed int

	// NumIterations counts the steps taken so far.
	NumIterations int
}

// Run runs SGD until stopper indicates to stop.
//
// The final mini-batch of an epoch may be smaller than
// BatchSize.
func (s *SGD) Run(stopper Stopper) error {
	if s.Samples.Len() == 0 {
		return errors.New("run SGD: empty sample list")
	}
	idx := s.Samples.Len()
	for !stopper.Done() {
		remaining := s.Samples.Len() - idx
		if remaining == 0 {
			Shuffle(s.Rand, s.Samples)
			idx = 0
			remaining = s.Samples.Len()
		}
		batchSize := s.batchSize(remaining)
		batch, err := s.Fetcher.Fetch(s.Samples.Slice(idx, idx+batchSize))
		if err != nil {
			return essentials.AddCtx("run SGD", err)
		}
		idx += batchSize

		grad := s.Gradienter.Gradient(batch)
		if s.Transformer != nil {
			grad = s.Transformer.Transform(grad)
		}

		epoch := float64(s.NumProcessed) / float64(s.Samples.Len())
		scaleGrad(grad, -s.Rater.Rate(epoch))
		grad.AddToVars()

		s.NumProcessed += batchSize
		s.NumIterations++

		if s.StatusFunc != nil {
			s.StatusFunc(batch)
		}
	}
	return nil
}

// Epoch returns the number of full passes made so far.
func (s *SGD) Epoch() int {
	return s.NumProcessed / s.Samples.Len()
}

func (s *SGD) batchSize(remaining int) int {
	if s.BatchSize == 0 || s.BatchSize > remaining {
		return remaining
	}
	return s.BatchSize
}

func scaleGrad(g anydiff.Grad, s float64) {
	for _, v := range g {
		g.Scale(v.Creator().MakeNumeric(s))
		return
	}
}

func copyGrad(g anydiff.Grad) anydiff.Grad {
	res := anydiff.Grad{}
	for k, v := range g {
		res[k] = v.Copy()
	}
	return res
}

func valueOrDefault(value, def float64) float64 {
	if value == 0 {
		return def
	}
	return value
}
