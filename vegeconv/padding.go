package vegeconv

import (
	"sync"

	"github.com/mares1402/vegecast"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var p Padding
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializePadding)
}

// A Padding layer adds zeros to the border of input
// tensors.
type Padding struct {
	InputWidth  int
	InputHeight int
	InputDepth  int

	PaddingTop    int
	PaddingRight  int
	PaddingBottom int
	PaddingLeft   int

	mapperLock sync.Mutex
	mapper     anyvec.Mapper
}

// NewPadding creates a Padding with the same amount of
// padding on every side.
func NewPadding(in vegecast.Shape, amount int) *Padding {
	return &Padding{
		InputWidth:    in.Width,
		InputHeight:   in.Height,
		InputDepth:    in.Depth,
		PaddingTop:    amount,
		PaddingRight:  amount,
		PaddingBottom: amount,
		PaddingLeft:   amount,
	}
}

// DeserializePadding deserializes a Padding.
func DeserializePadding(d []byte) (*Padding, error) {
	var inW, inH, inD, pT, pR, pB, pL serializer.Int
	err := serializer.DeserializeAny(d, &inW, &inH, &inD, &pT, &pR, &pB, &pL)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Padding", err)
	}
	return &Padding{
		InputWidth:  int(inW),
		InputHeight: int(inH),
		InputDepth:  int(inD),

		PaddingTop:    int(pT),
		PaddingRight:  int(pR),
		PaddingBottom: int(pB),
		PaddingLeft:   int(pL),
	}, nil
}

// InputShape returns the shape of input tensors.
func (p *Padding) InputShape() vegecast.Shape {
	return vegecast.Shape{Width: p.InputWidth, Height: p.InputHeight, Depth: p.InputDepth}
}

// OutputShape returns the shape of padded tensors.
func (p *Padding) OutputShape() vegecast.Shape {
	return vegecast.Shape{
		Width:  p.InputWidth + p.PaddingLeft + p.PaddingRight,
		Height: p.InputHeight + p.PaddingTop + p.PaddingBottom,
		Depth:  p.InputDepth,
	}
}

// Apply applies the layer.
func (p *Padding) Apply(in anydiff.Res, batch int) anydiff.Res {
	mapper := p.getMapper(in.Output().Creator())
	if in.Output().Len() != batch*mapper.OutSize() {
		panic("incorrect input size")
	}
	return &paddingRes{
		In:     in,
		Mapper: mapper,
		OutVec: batchMapTranspose(mapper, in.Output()),
	}
}

// SerializerType returns the unique ID used to serialize
// a Padding with the serializer package.
func (p *Padding) SerializerType() string {
	return "github.com/mares1402/vegecast/vegeconv.Padding"
}

// Serialize serializes a Padding.
func (p *Padding) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(p.InputWidth),
		serializer.Int(p.InputHeight),
		serializer.Int(p.InputDepth),
		serializer.Int(p.PaddingTop),
		serializer.Int(p.PaddingRight),
		serializer.Int(p.PaddingBottom),
		serializer.Int(p.PaddingLeft),
	)
}

// getMapper returns a mapper from padded tensors to the
// unpadded interior.
func (p *Padding) getMapper(c anyvec.Creator) anyvec.Mapper {
	p.mapperLock.Lock()
	defer p.mapperLock.Unlock()
	if p.mapper != nil && p.mapper.Creator() == c {
		return p.mapper
	}

	out := p.OutputShape()
	table := make([]int, 0, p.InputWidth*p.InputHeight*p.InputDepth)
	for y := 0; y < p.InputHeight; y++ {
		yOffset := (y + p.PaddingTop) * out.Width * p.InputDepth
		for x := 0; x < p.InputWidth; x++ {
			xOffset := yOffset + (x+p.PaddingLeft)*p.InputDepth
			for z := 0; z < p.InputDepth; z++ {
				table = append(table, xOffset+z)
			}
		}
	}

	p.mapper = c.MakeMapper(out.Volume(), table)
	return p.mapper
}

type paddingRes struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	OutVec anyvec.Vector
}

func (p *paddingRes) Output() anyvec.Vector {
	return p.OutVec
}

func (p *paddingRes) Vars() anydiff.VarSet {
	return p.In.Vars()
}

func (p *paddingRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	p.In.Propagate(batchMap(p.Mapper, u), g)
}
