// Package vegelatent projects latent codes forward in
// time.
package vegelatent

import (
	"fmt"
	"math"

	"github.com/mares1402/vegecast"
	"github.com/unixpickle/anyvec"
)

// DefaultFactor is the default extrapolation factor k.
const DefaultFactor = 0.6

// A Latent is the compressed code of one image.
type Latent struct {
	Shape  vegecast.Shape
	Vector anyvec.Vector
}

// Extrapolate projects the last two codes one step
// forward:
//
//	future = last + (last - prev) * k
//
// The codes are not modified. A non-finite k is an
// error.
func Extrapolate(codes []*Latent, k float64) (*Latent, error) {
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("extrapolate: non-finite factor %g", k)
	}
	if len(codes) < 2 {
		return nil, &vegecast.InsufficientHistoryError{Have: len(codes)}
	}
	prev, last := codes[len(codes)-2], codes[len(codes)-1]
	if prev.Shape != last.Shape || prev.Vector.Len() != last.Vector.Len() {
		return nil, &vegecast.ShapeMismatchError{
			Context:  "extrapolate",
			Expected: last.Shape,
			Actual:   prev.Shape,
		}
	}

	v := last.Vector.Copy()
	v.Sub(prev.Vector)
	v.Scale(v.Creator().MakeNumeric(k))
	v.Add(last.Vector)
	return &Latent{Shape: last.Shape, Vector: v}, nil
}

// Stats summarizes a code.
type Stats struct {
	Mean float64
	Min  float64
	Max  float64
	Norm float64
}

// Summarize computes the Stats of the code.
func (l *Latent) Summarize() Stats {
	vals := Float64s(l.Vector)
	if len(vals) == 0 {
		return Stats{}
	}
	res := Stats{Min: vals[0], Max: vals[0]}
	var sum, sqSum float64
	for _, x := range vals {
		sum += x
		sqSum += x * x
		if x < res.Min {
			res.Min = x
		}
		if x > res.Max {
			res.Max = x
		}
	}
	res.Mean = sum / float64(len(vals))
	res.Norm = math.Sqrt(sqSum)
	return res
}

// Float64s returns the components of a []float32 or
// []float64 backed vector as float64s.
func Float64s(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return data
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	default:
		panic("unsupported numeric list type")
	}
}
