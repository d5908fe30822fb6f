package vegeconv

import "github.com/unixpickle/anyvec"

// batchMap applies m.Map to every InSize() chunk of in.
func batchMap(m anyvec.Mapper, in anyvec.Vector) anyvec.Vector {
	n := in.Len() / m.InSize()
	if n*m.InSize() != in.Len() {
		panic("input length not divisible by mapper input size")
	}
	c := in.Creator()
	outs := make([]anyvec.Vector, n)
	for i := range outs {
		out := c.MakeVector(m.OutSize())
		m.Map(in.Slice(i*m.InSize(), (i+1)*m.InSize()), out)
		outs[i] = out
	}
	return c.Concat(outs...)
}

// batchMapTranspose applies m.MapTranspose to every
// OutSize() chunk of in.
func batchMapTranspose(m anyvec.Mapper, in anyvec.Vector) anyvec.Vector {
	n := in.Len() / m.OutSize()
	if n*m.OutSize() != in.Len() {
		panic("input length not divisible by mapper output size")
	}
	c := in.Creator()
	outs := make([]anyvec.Vector, n)
	for i := range outs {
		out := c.MakeVector(m.InSize())
		m.MapTranspose(in.Slice(i*m.OutSize(), (i+1)*m.OutSize()), out)
		outs[i] = out
	}
	return c.Concat(outs...)
}
