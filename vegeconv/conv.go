// Package vegeconv provides the convolutional layers used
// by the vegetation autoencoder: strided convolution, zero
// padding, and bilinear resizing.
//
// All tensors are row-major and depth-minor.
package vegeconv

import (
	"errors"
	"math"
	"math/rand"

	"github.com/mares1402/vegecast"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Conv
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConv)
}

// Conv is a convolutional layer.
type Conv struct {
	FilterCount  int
	FilterWidth  int
	FilterHeight int

	StrideX int
	StrideY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	Filters *anydiff.Var
	Biases  *anydiff.Var

	Conver Conver
}

// DeserializeConv deserializes a Conv.
//
// The Conver is set with MakeDefaultConver.
func DeserializeConv(d []byte) (*Conv, error) {
	var inW, inH, inD, fW, fH, sX, sY serializer.Int
	var f, b *anyvecsave.S
	err := serializer.DeserializeAny(d, &inW, &inH, &inD, &fW, &fH, &sX, &sY, &f, &b)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Conv", err)
	}
	filterSize := int(fW * fH * inD)
	if filterSize == 0 || f.Vector.Len()%filterSize != 0 {
		return nil, errors.New("deserialize Conv: filter data does not match dimensions")
	}
	res := Conv{
		FilterCount:  f.Vector.Len() / filterSize,
		FilterWidth:  int(fW),
		FilterHeight: int(fH),
		StrideX:      int(sX),
		StrideY:      int(sY),

		InputWidth:  int(inW),
		InputHeight: int(inH),
		InputDepth:  int(inD),

		Filters: anydiff.NewVar(f.Vector),
		Biases:  anydiff.NewVar(b.Vector),
	}
	if res.Biases.Vector.Len() != res.FilterCount {
		return nil, errors.New("deserialize Conv: bias count does not match filter count")
	}
	res.Conver = MakeDefaultConver(res)
	return &res, nil
}

// InitRand initializes the filters with scaled normal
// noise drawn from r, zeroes the biases, and sets the
// default Conver.
//
// If r is nil, the global source is used.
func (c *Conv) InitRand(cr anyvec.Creator, r *rand.Rand) {
	c.InitZero(cr)

	normalizer := 1 / math.Sqrt(float64(c.FilterWidth*c.FilterHeight*c.InputDepth))
	anyvec.Rand(c.Filters.Vector, anyvec.Normal, r)
	c.Filters.Vector.Scale(cr.MakeNumeric(normalizer))
}

// InitZero initializes the layer to zero and sets the
// default Conver.
func (c *Conv) InitZero(cr anyvec.Creator) {
	filterSize := c.FilterWidth * c.FilterHeight * c.InputDepth
	c.Filters = anydiff.NewVar(cr.MakeVector(filterSize * c.FilterCount))
	c.Biases = anydiff.NewVar(cr.MakeVector(c.FilterCount))
	c.Conver = MakeDefaultConver(*c)
}

// UseConver replaces the Conver with one built by m.
func (c *Conv) UseConver(m ConverMaker) {
	c.Conver = m(*c)
}

// OutputWidth returns the width of the output tensor.
func (c *Conv) OutputWidth() int {
	return slidingCount(c.InputWidth, c.FilterWidth, c.StrideX)
}

// OutputHeight returns the height of the output tensor.
func (c *Conv) OutputHeight() int {
	return slidingCount(c.InputHeight, c.FilterHeight, c.StrideY)
}

// OutputDepth returns the depth of the output tensor.
func (c *Conv) OutputDepth() int {
	return c.FilterCount
}

// InputShape returns the shape of input tensors.
func (c *Conv) InputShape() vegecast.Shape {
	return vegecast.Shape{Width: c.InputWidth, Height: c.InputHeight, Depth: c.InputDepth}
}

// OutputShape returns the shape of output tensors.
func (c *Conv) OutputShape() vegecast.Shape {
	return vegecast.Shape{Width: c.OutputWidth(), Height: c.OutputHeight(),
		Depth: c.OutputDepth()}
}

// Apply applies the layer to an input tensor using the
// Conver.
//
// The layer must have been initialized.
func (c *Conv) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	return c.Conver.Apply(in, batchSize)
}

// Parameters returns the filters followed by the biases.
//
// If the layer is uninitialized, the result is nil.
func (c *Conv) Parameters() []*anydiff.Var {
	if c.Filters == nil || c.Biases == nil {
		return nil
	}
	return []*anydiff.Var{c.Filters, c.Biases}
}

// SerializerType returns the unique ID used to serialize
// a Conv with the serializer package.
func (c *Conv) SerializerType() string {
	return "github.com/mares1402/vegecast/vegeconv.Conv"
}

// Serialize serializes the layer.
//
// If the layer was not yet initialized, this fails.
func (c *Conv) Serialize() ([]byte, error) {
	if c.Filters == nil || c.Biases == nil {
		return nil, errors.New("cannot serialize uninitialized Conv")
	}
	return serializer.SerializeAny(
		serializer.Int(c.InputWidth),
		serializer.Int(c.InputHeight),
		serializer.Int(c.InputDepth),
		serializer.Int(c.FilterWidth),
		serializer.Int(c.FilterHeight),
		serializer.Int(c.StrideX),
		serializer.Int(c.StrideY),
		&anyvecsave.S{Vector: c.Filters.Vector},
		&anyvecsave.S{Vector: c.Biases.Vector},
	)
}

func slidingCount(in, window, stride int) int {
	if stride <= 0 || in < window {
		return 0
	}
	return 1 + (in-window)/stride
}
