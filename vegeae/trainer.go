package vegeae

import (
	"errors"
	"fmt"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegesgd"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Batch packs the images of a mini-batch.
type Batch struct {
	Inputs *anydiff.Const
	Num    int
}

// A Trainer builds batches and computes reconstruction
// gradients for an Autoencoder.
type Trainer struct {
	AE     *Autoencoder
	Cost   vegecast.Cost
	Params []*anydiff.Var

	// LastCost is the mean cost of the most recent batch
	// passed to Gradient.
	LastCost anyvec.Numeric
}

// NewTrainer creates a Trainer which minimizes the mean
// squared reconstruction error of every parameter.
func NewTrainer(ae *Autoencoder) *Trainer {
	return &Trainer{
		AE:     ae,
		Cost:   vegecast.MSE{},
		Params: ae.Parameters(),
	}
}

// Fetch produces a *Batch for a SampleList.
func (t *Trainer) Fetch(s vegesgd.SampleList) (vegesgd.Batch, error) {
	l, ok := s.(SampleList)
	if !ok {
		return nil, fmt.Errorf("fetch batch: unexpected sample list %T", s)
	}
	if l.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}
	size := t.AE.InputShape.Volume()
	for i, v := range l {
		if v.Len() != size {
			return nil, fmt.Errorf("fetch batch: sample %d has %d components, expected %d",
				i, v.Len(), size)
		}
	}
	return &Batch{
		Inputs: anydiff.NewConst(l[0].Creator().Concat(l...)),
		Num:    l.Len(),
	}, nil
}

// TotalCost computes the mean reconstruction cost of a
// *Batch.
func (t *Trainer) TotalCost(batch vegesgd.Batch) anydiff.Res {
	b := batch.(*Batch)
	out := t.AE.Apply(b.Inputs, b.Num)
	return vegecast.MeanCost(t.Cost, b.Inputs, out, b.Num)
}

// Gradient computes the gradient of the batch cost and
// stores the cost in t.LastCost.
func (t *Trainer) Gradient(b vegesgd.Batch) anydiff.Grad {
	grad, lc := vegesgd.CosterGrad(t, b, t.Params)
	t.LastCost = lc
	return grad
}
