package vegeae

import (
	"errors"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestNewShapes(t *testing.T) {
	ae, err := New(anyvec32.DefaultCreator{}, DefaultArch(64, 48), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if ae.InputShape != (vegecast.Shape{Width: 64, Height: 48, Depth: 1}) {
		t.Errorf("unexpected input shape %v", ae.InputShape)
	}
	if ae.LatentShape != (vegecast.Shape{Width: 8, Height: 6, Depth: 64}) {
		t.Errorf("unexpected latent shape %v", ae.LatentShape)
	}
	if len(ae.Parameters()) != 12 {
		t.Errorf("expected 12 parameters but got %d", len(ae.Parameters()))
	}
}

func TestNewShapeMismatch(t *testing.T) {
	_, err := New(anyvec32.DefaultCreator{}, DefaultArch(100, 100), nil)
	var shapeErr *vegecast.ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeMismatchError but got %v", err)
	}
	if shapeErr.Expected.Width != 100 || shapeErr.Actual.Width != 104 {
		t.Errorf("unexpected shapes %v and %v", shapeErr.Expected, shapeErr.Actual)
	}
}

func TestNewInvalidArch(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	bad := []Arch{
		{Width: 16, Height: 16, FilterSize: 3},
		{Width: 16, Height: 16, Channels: []int{4}, FilterSize: 2},
		{Width: 0, Height: 16, Channels: []int{4}, FilterSize: 3},
		{Width: 16, Height: 16, Channels: []int{0}, FilterSize: 3},
	}
	for i, arch := range bad {
		if _, err := New(c, arch, nil); err == nil {
			t.Errorf("arch %d: expected error", i)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	ae := smallAutoencoder(t, 1)
	img := randomImage(16, 16, 2)

	code1, err := ae.Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	code2, err := ae.Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(code1.Vector.Data(), code2.Vector.Data()) {
		t.Error("encoding is not deterministic")
	}
	if code1.Vector.Len() != ae.LatentShape.Volume() {
		t.Errorf("expected %d latent components but got %d", ae.LatentShape.Volume(),
			code1.Vector.Len())
	}

	out1, err := ae.Decode(code1)
	if err != nil {
		t.Fatal(err)
	}
	out2, err := ae.Decode(code1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out1, out2) {
		t.Error("decoding is not deterministic")
	}
	if out1.Width != img.Width || out1.Height != img.Height || len(out1.Pix) != len(img.Pix) {
		t.Fatalf("expected %dx%d output but got %dx%d", img.Width, img.Height,
			out1.Width, out1.Height)
	}
	for i, x := range out1.Pix {
		if x < 0 || x > 1 {
			t.Fatalf("pixel %d out of range: %f", i, x)
		}
	}
}

func TestRoundTripNonSquare(t *testing.T) {
	arch := Arch{Width: 24, Height: 16, Channels: []int{3, 5}, FilterSize: 3}
	ae, err := New(anyvec64.DefaultCreator{}, arch, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatal(err)
	}
	if ae.LatentShape != (vegecast.Shape{Width: 6, Height: 4, Depth: 5}) {
		t.Fatalf("unexpected latent shape %v", ae.LatentShape)
	}
	img := randomImage(24, 16, 3)
	code, err := ae.Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	if code.Shape != ae.LatentShape || code.Vector.Len() != ae.LatentShape.Volume() {
		t.Errorf("unexpected code shape %v with %d components", code.Shape, code.Vector.Len())
	}
	out, err := ae.Decode(code)
	if err != nil {
		t.Fatal(err)
	}
	if out.Width != 24 || out.Height != 16 || len(out.Pix) != 24*16 {
		t.Errorf("expected 24x16 output but got %dx%d", out.Width, out.Height)
	}
	if _, err := ae.Encode(randomImage(16, 24, 3)); err == nil {
		t.Error("expected error for transposed image")
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	ae := smallAutoencoder(t, 3)
	img := randomImage(16, 16, 4)
	code, err := ae.Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	ae.SetParallel(true)
	parCode, err := ae.Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(code.Vector.Data(), parCode.Vector.Data()) {
		t.Error("parallel encoding differs")
	}
}

func TestEncodeDecodeShapeErrors(t *testing.T) {
	ae := smallAutoencoder(t, 1)
	var shapeErr *vegecast.ShapeMismatchError
	if _, err := ae.Encode(randomImage(8, 8, 1)); !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError but got %v", err)
	}
	code, err := ae.Encode(randomImage(16, 16, 1))
	if err != nil {
		t.Fatal(err)
	}
	code.Shape.Depth++
	if _, err := ae.Decode(code); !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError but got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	ae := smallAutoencoder(t, 5)
	path := filepath.Join(t.TempDir(), "models", "autoencoder.bin")
	if err := ae.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.InputShape != ae.InputShape || loaded.LatentShape != ae.LatentShape {
		t.Fatal("shapes differ after load")
	}
	img := randomImage(16, 16, 6)
	code1, err := ae.Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	code2, err := loaded.Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(code1.Vector.Data(), code2.Vector.Data()) {
		t.Error("loaded model encodes differently")
	}
	out1, _ := ae.Decode(code1)
	out2, _ := loaded.Decode(code1)
	if !reflect.DeepEqual(out1, out2) {
		t.Error("loaded model decodes differently")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.bin"))
	var missing *vegecast.MissingInputError
	if !errors.As(err, &missing) {
		t.Errorf("expected MissingInputError but got %v", err)
	}
}

func smallAutoencoder(t *testing.T, seed int64) *Autoencoder {
	arch := Arch{Width: 16, Height: 16, Channels: []int{3, 5}, FilterSize: 3}
	ae, err := New(anyvec64.DefaultCreator{}, arch, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatal(err)
	}
	return ae
}

func randomImage(w, h int, seed int64) *vegeimg.Image {
	r := rand.New(rand.NewSource(seed))
	img := vegeimg.NewImage(w, h)
	for i := range img.Pix {
		img.Pix[i] = r.Float64()
	}
	return img
}
