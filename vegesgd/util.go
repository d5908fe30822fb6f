package vegesgd

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Shuffle shuffles a list of samples in place using r.
// If r is nil, the global source is used.
func Shuffle(r *rand.Rand, s SampleList) {
	intn := rand.Intn
	if r != nil {
		intn = r.Intn
	}
	for i := 0; i < s.Len(); i++ {
		j := i + intn(s.Len()-i)
		s.Swap(i, j)
	}
}

// A ConstRater is a Rater with a constant learning rate.
type ConstRater float64

// Rate returns float64(c).
func (c ConstRater) Rate(epoch float64) float64 {
	return float64(c)
}

// CosterGrad computes the gradient of the Coster's cost
// with respect to params, along with the cost itself.
func CosterGrad(c Coster, b Batch, params []*anydiff.Var) (anydiff.Grad, anyvec.Numeric) {
	grad := anydiff.NewGrad(params...)
	cost := c.TotalCost(b)
	out := cost.Output()
	ones := out.Creator().MakeVector(out.Len())
	ones.AddScalar(out.Creator().MakeNumeric(1))
	cost.Propagate(ones, grad)
	return grad, anyvec.Sum(out)
}
