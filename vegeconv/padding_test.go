package vegeconv

import (
	"math/rand"
	"testing"

	"github.com/mares1402/vegecast"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestPaddingBorder(t *testing.T) {
	in := vegecast.Shape{Width: 3, Height: 2, Depth: 2}
	layer := NewPadding(in, 1)
	out := layer.OutputShape()
	if out != (vegecast.Shape{Width: 5, Height: 4, Depth: 2}) {
		t.Fatalf("unexpected shape %v", out)
	}

	data := make([]float64, in.Volume())
	for i := range data {
		data[i] = float64(i + 1)
	}
	actual := layer.Apply(anydiff.NewConst(anyvec64.MakeVectorData(data)), 1).Output().
		Data().([]float64)

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			for z := 0; z < out.Depth; z++ {
				expected := 0.0
				if x >= 1 && x <= in.Width && y >= 1 && y <= in.Height {
					expected = data[((y-1)*in.Width+x-1)*in.Depth+z]
				}
				if a := actual[(y*out.Width+x)*out.Depth+z]; a != expected {
					t.Errorf("(%d, %d, %d): expected %f but got %f", x, y, z, expected, a)
				}
			}
		}
	}
}

func TestPaddingUneven(t *testing.T) {
	layer := &Padding{
		InputWidth:    1,
		InputHeight:   1,
		InputDepth:    1,
		PaddingTop:    1,
		PaddingBottom: 0,
		PaddingLeft:   2,
		PaddingRight:  0,
	}
	actual := layer.Apply(anydiff.NewConst(anyvec64.MakeVectorData([]float64{7})), 1).
		Output().Data().([]float64)
	expected := []float64{0, 0, 0, 0, 0, 7}
	if len(actual) != len(expected) {
		t.Fatalf("expected %v but got %v", expected, actual)
	}
	for i, x := range expected {
		if actual[i] != x {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestPaddingProp(t *testing.T) {
	layer := NewPadding(vegecast.Shape{Width: 5, Height: 3, Depth: 2}, 1)
	img := anyvec64.MakeVector(5 * 3 * 2 * 3)
	anyvec.Rand(img, anyvec.Uniform, rand.New(rand.NewSource(2)))
	inVar := anydiff.NewVar(img)

	checker := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return layer.Apply(inVar, 3)
		},
		V: []*anydiff.Var{inVar},
	}
	checker.FullCheck(t)
}

func TestPaddingSerialize(t *testing.T) {
	layer := NewPadding(vegecast.Shape{Width: 5, Height: 6, Depth: 3}, 2)
	data, err := serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *Padding
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if newLayer.InputShape() != layer.InputShape() {
		t.Errorf("expected %v but got %v", layer.InputShape(), newLayer.InputShape())
	}
	if newLayer.OutputShape() != (vegecast.Shape{Width: 9, Height: 10, Depth: 3}) {
		t.Errorf("unexpected shape %v", newLayer.OutputShape())
	}
}
