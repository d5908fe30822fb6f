package vegeconv

import (
	"github.com/mares1402/vegecast"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Conver performs a convolution whose filter and input
// sizes are already fixed.
type Conver interface {
	vegecast.Layer
}

// A ConverMaker constructs a Conver for a set of layer
// parameters.
type ConverMaker func(info Conv) Conver

// MakeDefaultConver returns a Conver which processes the
// images of a batch one at a time.
func MakeDefaultConver(c Conv) Conver {
	return newRowConver(c, false)
}

// MakeParallelConver returns a Conver which processes the
// images of a batch concurrently.
//
// Per-image filter gradients are reduced in image order,
// so its outputs and gradients are bit-for-bit equal to
// those of MakeDefaultConver.
func MakeParallelConver(c Conv) Conver {
	return newRowConver(c, true)
}

// rowConver lowers each image to a row matrix (im2row),
// so that a convolution becomes one matrix product per
// image.
type rowConver struct {
	layer    Conv
	rows     *Im2Row
	parallel bool
}

func newRowConver(c Conv, parallel bool) *rowConver {
	if c.Biases == nil || c.Filters == nil {
		panic("nil parameters")
	}
	return &rowConver{
		layer: c,
		rows: &Im2Row{
			WindowWidth:  c.FilterWidth,
			WindowHeight: c.FilterHeight,
			StrideX:      c.StrideX,
			StrideY:      c.StrideY,
			InputWidth:   c.InputWidth,
			InputHeight:  c.InputHeight,
			InputDepth:   c.InputDepth,
		},
		parallel: parallel,
	}
}

func (r *rowConver) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	if in.Output().Len() != batchSize*r.rows.InputSize() {
		panic("incorrect input size")
	}
	cr := in.Output().Creator()
	if r.positions() == 0 {
		return anydiff.NewConst(cr.MakeVector(0))
	}

	filters := r.filterMatrix(r.layer.Filters.Vector)
	outputs := make([]anyvec.Vector, batchSize)
	r.eachImage(in.Output(), func(i int, img *anyvec.Matrix) {
		out := r.outputMatrix(cr.MakeVector(r.positions() * r.layer.FilterCount))
		out.Product(false, true, cr.MakeNumeric(1), img, filters, cr.MakeNumeric(0))
		outputs[i] = out.Data
	})
	joined := cr.Concat(outputs...)
	anyvec.AddRepeated(joined, r.layer.Biases.Vector)

	params := anydiff.VarSet{}
	params.Add(r.layer.Filters)
	params.Add(r.layer.Biases)
	return &rowConvRes{
		conver: r,
		in:     in,
		n:      batchSize,
		out:    joined,
		vars:   anydiff.MergeVarSets(in.Vars(), params),
	}
}

// positions is the number of output (x, y) positions.
func (r *rowConver) positions() int {
	return r.rows.NumX() * r.rows.NumY()
}

func (r *rowConver) filterMatrix(data anyvec.Vector) *anyvec.Matrix {
	return &anyvec.Matrix{
		Data: data,
		Rows: r.layer.FilterCount,
		Cols: r.layer.FilterWidth * r.layer.FilterHeight * r.layer.InputDepth,
	}
}

func (r *rowConver) outputMatrix(data anyvec.Vector) *anyvec.Matrix {
	return &anyvec.Matrix{Data: data, Rows: r.positions(), Cols: r.layer.FilterCount}
}

// eachImage calls f with the row matrix of every image
// packed in in.
func (r *rowConver) eachImage(in anyvec.Vector, f func(int, *anyvec.Matrix)) {
	if r.parallel {
		r.rows.MapParallel(in, f)
	} else {
		r.rows.MapAll(in, f)
	}
}

// eachIndex calls f for every image index with a scratch
// matrix of the row-matrix size.
func (r *rowConver) eachIndex(c anyvec.Creator, n int, f func(int, *anyvec.Matrix)) {
	if r.parallel {
		r.rows.CallParallel(c, n, f)
	} else {
		r.rows.CallAll(c, n, f)
	}
}

type rowConvRes struct {
	conver *rowConver
	in     anydiff.Res
	n      int
	out    anyvec.Vector
	vars   anydiff.VarSet
}

func (r *rowConvRes) Output() anyvec.Vector {
	return r.out
}

func (r *rowConvRes) Vars() anydiff.VarSet {
	return r.vars
}

func (r *rowConvRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	layer := &r.conver.layer
	if biasGrad, ok := g[layer.Biases]; ok {
		biasGrad.Add(anyvec.SumRows(u, layer.FilterCount))
	}
	if filterGrad, ok := g[layer.Filters]; ok {
		r.propagateFilters(u, filterGrad)
	}
	if g.Intersects(r.in.Vars()) {
		r.in.Propagate(r.inputGrad(u), g)
	}
}

// propagateFilters adds the filter gradient of every
// image to dest, summing in image order.
func (r *rowConvRes) propagateFilters(u, dest anyvec.Vector) {
	cr := u.Creator()
	outSize := u.Len() / r.n
	partials := make([]anyvec.Vector, r.n)
	r.conver.eachImage(r.in.Output(), func(i int, img *anyvec.Matrix) {
		upstream := r.conver.outputMatrix(u.Slice(outSize*i, outSize*(i+1)))
		partial := r.conver.filterMatrix(cr.MakeVector(dest.Len()))
		partial.Product(true, false, cr.MakeNumeric(1), upstream, img, cr.MakeNumeric(0))
		partials[i] = partial.Data
	})
	for _, p := range partials {
		dest.Add(p)
	}
}

// inputGrad back-projects the upstream of every image
// through the filters and the transposed im2row mapping.
func (r *rowConvRes) inputGrad(u anyvec.Vector) anyvec.Vector {
	cr := u.Creator()
	outSize := u.Len() / r.n
	filters := r.conver.filterMatrix(r.conver.layer.Filters.Vector)
	mapper := r.conver.rows.Mapper(cr)
	grads := make([]anyvec.Vector, r.n)
	r.conver.eachIndex(cr, r.n, func(i int, scratch *anyvec.Matrix) {
		upstream := r.conver.outputMatrix(u.Slice(outSize*i, outSize*(i+1)))
		scratch.Product(false, false, cr.MakeNumeric(1), upstream, filters, cr.MakeNumeric(0))
		grad := cr.MakeVector(r.conver.rows.InputSize())
		mapper.MapTranspose(scratch.Data, grad)
		grads[i] = grad
	})
	return cr.Concat(grads...)
}
