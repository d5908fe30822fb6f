// Package vegecast forecasts future vegetation imagery
// from a chronological series of single-channel satellite
// snapshots.
//
// The root package holds the small neural network core
// shared by the sub-packages: layers, networks, costs,
// and the error kinds reported by every pipeline stage.
// The convolutional autoencoder lives in vegeae, the
// latent extrapolator in vegelatent, and the end-to-end
// stages in vegepipe.
package vegecast

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var n Net
	serializer.RegisterTypedDeserializer(n.SerializerType(), DeserializeNet)
}

// A Parameterizer is anything with learnable variables.
//
// The parameters must be returned in the same order on
// every call, since optimizers key their state by
// position as well as by pointer.
type Parameterizer interface {
	Parameters() []*anydiff.Var
}

// A Layer is one stage of a feed-forward network.
//
// Apply is batched: the input packs batchSize equally
// long tensors back to back.
type Layer interface {
	Apply(in anydiff.Res, batchSize int) anydiff.Res
}

// A Net evaluates a list of layers in order.
type Net []Layer

// DeserializeNet deserializes a Net.
func DeserializeNet(d []byte) (Net, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Net", err)
	}
	res := make(Net, len(slice))
	for i, x := range slice {
		layer, ok := x.(Layer)
		if !ok {
			return nil, fmt.Errorf("deserialize Net: layer %d is %T", i, x)
		}
		res[i] = layer
	}
	return res, nil
}

// Apply feeds the batch through every layer.
// An empty Net returns its input.
func (n Net) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	for _, l := range n {
		in = l.Apply(in, batchSize)
	}
	return in
}

// Parameters gathers the parameters of every layer that
// is a Parameterizer, first layer first.
func (n Net) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, x := range n {
		if p, ok := x.(Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Net with the serializer package.
func (n Net) SerializerType() string {
	return "github.com/mares1402/vegecast.Net"
}

// Serialize serializes the layers in order.
// It fails if any layer is not a serializer.Serializer.
func (n Net) Serialize() ([]byte, error) {
	slice := make([]serializer.Serializer, 0, len(n))
	for i, x := range n {
		s, ok := x.(serializer.Serializer)
		if !ok {
			return nil, fmt.Errorf("serialize Net: layer %d (%T) is not a Serializer", i, x)
		}
		slice = append(slice, s)
	}
	return serializer.SerializeSlice(slice)
}
