// Package vegeae implements the convolutional
// autoencoder which compresses vegetation images into
// latent codes, along with its trainer.
package vegeae

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegeconv"
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/mares1402/vegecast/vegelatent"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Autoencoder
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeAutoencoder)
}

// Arch describes an autoencoder architecture.
type Arch struct {
	Width  int
	Height int

	// Channels lists the filter counts of the encoder
	// stages. Each stage halves the width and height.
	Channels []int

	// FilterSize is the odd side length of every filter.
	FilterSize int

	// Parallel selects convolutions which process a batch
	// concurrently.
	Parallel bool
}

// DefaultArch returns the three-stage 16/32/64 channel
// architecture with 3x3 filters.
func DefaultArch(width, height int) Arch {
	return Arch{
		Width:      width,
		Height:     height,
		Channels:   []int{16, 32, 64},
		FilterSize: 3,
	}
}

// An Autoencoder pairs an encoder with a decoder whose
// output shape equals the encoder's input shape.
type Autoencoder struct {
	InputShape  vegecast.Shape
	LatentShape vegecast.Shape

	Encoder vegecast.Net
	Decoder vegecast.Net
}

// New creates a randomly initialized Autoencoder.
//
// Each encoder stage zero-pads, applies a stride-2
// convolution, and a ReLU.
// Each decoder stage upsamples by two, zero-pads, applies
// a stride-1 convolution, and a ReLU, except for the last
// stage which ends in a sigmoid.
//
// If the resolution is not divisible by 2^stages, the
// decoder cannot reproduce the input shape and New fails
// with a *vegecast.ShapeMismatchError.
func New(c anyvec.Creator, arch Arch, r *rand.Rand) (*Autoencoder, error) {
	if arch.Width <= 0 || arch.Height <= 0 {
		return nil, fmt.Errorf("new autoencoder: invalid size %dx%d", arch.Width, arch.Height)
	}
	if len(arch.Channels) == 0 {
		return nil, errors.New("new autoencoder: no encoder stages")
	}
	if arch.FilterSize <= 0 || arch.FilterSize%2 == 0 {
		return nil, fmt.Errorf("new autoencoder: filter size %d is not odd", arch.FilterSize)
	}
	pad := arch.FilterSize / 2

	var encoder vegecast.Net
	shape := vegecast.Shape{Width: arch.Width, Height: arch.Height, Depth: 1}
	for i, ch := range arch.Channels {
		if ch <= 0 {
			return nil, fmt.Errorf("new autoencoder: stage %d has %d channels", i, ch)
		}
		padding := vegeconv.NewPadding(shape, pad)
		conv := newConv(padding.OutputShape(), arch.FilterSize, 2, ch)
		if conv.OutputWidth() == 0 || conv.OutputHeight() == 0 {
			return nil, fmt.Errorf("new autoencoder: input %v too small for stage %d", shape, i)
		}
		conv.InitRand(c, r)
		encoder = append(encoder, padding, conv, vegecast.ReLU)
		shape = conv.OutputShape()
	}

	var decoder vegecast.Net
	for i := len(arch.Channels) - 1; i >= 0; i-- {
		outDepth := 1
		activation := vegecast.Sigmoid
		if i > 0 {
			outDepth = arch.Channels[i-1]
			activation = vegecast.ReLU
		}
		upsample := vegeconv.NewUpsample(shape, 2)
		padding := vegeconv.NewPadding(upsample.OutputShape(), pad)
		conv := newConv(padding.OutputShape(), arch.FilterSize, 1, outDepth)
		conv.InitRand(c, r)
		decoder = append(decoder, upsample, padding, conv, activation)
		shape = conv.OutputShape()
	}

	res, err := FromNets(encoder, decoder)
	if err != nil {
		return nil, err
	}
	res.SetParallel(arch.Parallel)
	return res, nil
}

// FromNets wraps an encoder and decoder, checking that
// their layers chain together and that the decoder
// reproduces the encoder's input shape.
func FromNets(encoder, decoder vegecast.Net) (*Autoencoder, error) {
	inShape, latentShape, err := netShapes("encoder", encoder)
	if err != nil {
		return nil, err
	}
	decIn, decOut, err := netShapes("decoder", decoder)
	if err != nil {
		return nil, err
	}
	if decIn != latentShape {
		return nil, &vegecast.ShapeMismatchError{
			Context:  "decoder input",
			Expected: latentShape,
			Actual:   decIn,
		}
	}
	if decOut != inShape {
		return nil, &vegecast.ShapeMismatchError{
			Context:  "decoder output",
			Expected: inShape,
			Actual:   decOut,
		}
	}
	return &Autoencoder{
		InputShape:  inShape,
		LatentShape: latentShape,
		Encoder:     encoder,
		Decoder:     decoder,
	}, nil
}

// DeserializeAutoencoder deserializes an Autoencoder and
// re-checks its shapes.
func DeserializeAutoencoder(d []byte) (*Autoencoder, error) {
	var encoder, decoder vegecast.Net
	if err := serializer.DeserializeAny(d, &encoder, &decoder); err != nil {
		return nil, essentials.AddCtx("deserialize Autoencoder", err)
	}
	return FromNets(encoder, decoder)
}

// Load reads an Autoencoder saved with Save.
//
// A missing file produces a *vegecast.MissingInputError.
func Load(path string) (*Autoencoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &vegecast.MissingInputError{Path: path,
				Reason: "model file does not exist; train a model first"}
		}
		return nil, err
	}
	var res *Autoencoder
	if err := serializer.DeserializeAny(data, &res); err != nil {
		return nil, essentials.AddCtx("load autoencoder", err)
	}
	return res, nil
}

// Save writes the Autoencoder to path atomically.
func (a *Autoencoder) Save(path string) error {
	data, err := serializer.SerializeAny(a)
	if err != nil {
		return essentials.AddCtx("save autoencoder", err)
	}
	return vegecast.WriteFiles(vegecast.PendingFile{Path: path, Data: data})
}

// SetParallel switches every convolution between the
// serial and parallel Convers.
func (a *Autoencoder) SetParallel(parallel bool) {
	maker := vegeconv.MakeDefaultConver
	if parallel {
		maker = vegeconv.MakeParallelConver
	}
	for _, net := range []vegecast.Net{a.Encoder, a.Decoder} {
		for _, layer := range net {
			if conv, ok := layer.(*vegeconv.Conv); ok {
				conv.UseConver(maker)
			}
		}
	}
}

// Creator returns the creator of the parameters.
func (a *Autoencoder) Creator() anyvec.Creator {
	return a.Parameters()[0].Vector.Creator()
}

// Apply reconstructs a batch of images.
func (a *Autoencoder) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	return a.Decoder.Apply(a.Encoder.Apply(in, batchSize), batchSize)
}

// Parameters returns the encoder parameters followed by
// the decoder parameters.
func (a *Autoencoder) Parameters() []*anydiff.Var {
	return append(a.Encoder.Parameters(), a.Decoder.Parameters()...)
}

// Encode compresses an image into a latent code.
func (a *Autoencoder) Encode(img *vegeimg.Image) (*vegelatent.Latent, error) {
	if img.Shape() != a.InputShape {
		return nil, &vegecast.ShapeMismatchError{
			Context:  "encode",
			Expected: a.InputShape,
			Actual:   img.Shape(),
		}
	}
	c := a.Creator()
	in := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(img.Pix)))
	return &vegelatent.Latent{
		Shape:  a.LatentShape,
		Vector: a.Encoder.Apply(in, 1).Output(),
	}, nil
}

// EncodeAll encodes every image of a sequence in order.
func (a *Autoencoder) EncodeAll(seq *vegeimg.Sequence) ([]*vegelatent.Latent, error) {
	res := make([]*vegelatent.Latent, len(seq.Images))
	for i, img := range seq.Images {
		code, err := a.Encode(img)
		if err != nil {
			return nil, essentials.AddCtx(seq.Names[i], err)
		}
		res[i] = code
	}
	return res, nil
}

// Decode reconstructs an image from a latent code.
// The intensities lie in [0, 1].
func (a *Autoencoder) Decode(l *vegelatent.Latent) (*vegeimg.Image, error) {
	if l.Shape != a.LatentShape || l.Vector.Len() != a.LatentShape.Volume() {
		return nil, &vegecast.ShapeMismatchError{
			Context:  "decode",
			Expected: a.LatentShape,
			Actual:   l.Shape,
		}
	}
	out := a.Decoder.Apply(anydiff.NewConst(l.Vector), 1).Output()
	return &vegeimg.Image{
		Width:  a.InputShape.Width,
		Height: a.InputShape.Height,
		Pix:    append([]float64{}, vegelatent.Float64s(out)...),
	}, nil
}

// SerializerType returns the unique ID used to serialize
// an Autoencoder with the serializer package.
func (a *Autoencoder) SerializerType() string {
	return "github.com/mares1402/vegecast/vegeae.Autoencoder"
}

// Serialize serializes the encoder and decoder.
func (a *Autoencoder) Serialize() ([]byte, error) {
	return serializer.SerializeAny(a.Encoder, a.Decoder)
}

func newConv(in vegecast.Shape, filterSize, stride, count int) *vegeconv.Conv {
	return &vegeconv.Conv{
		FilterCount:  count,
		FilterWidth:  filterSize,
		FilterHeight: filterSize,
		StrideX:      stride,
		StrideY:      stride,
		InputWidth:   in.Width,
		InputHeight:  in.Height,
		InputDepth:   in.Depth,
	}
}

type shapedLayer interface {
	InputShape() vegecast.Shape
	OutputShape() vegecast.Shape
}

// netShapes follows the shaped layers of a Net, treating
// other layers as element-wise.
func netShapes(name string, net vegecast.Net) (in, out vegecast.Shape, err error) {
	first := true
	for i, layer := range net {
		s, ok := layer.(shapedLayer)
		if !ok {
			continue
		}
		if first {
			in = s.InputShape()
			first = false
		} else if s.InputShape() != out {
			return in, out, &vegecast.ShapeMismatchError{
				Context:  fmt.Sprintf("%s layer %d", name, i),
				Expected: out,
				Actual:   s.InputShape(),
			}
		}
		out = s.OutputShape()
	}
	if first {
		return in, out, fmt.Errorf("%s has no shaped layers", name)
	}
	return in, out, nil
}
