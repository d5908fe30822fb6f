package vegepipe

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegeae"
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/mares1402/vegecast/vegelatent"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestTrainEmptyDir(t *testing.T) {
	cfg := testConfig(t)
	_, err := Train(context.Background(), cfg, quietLogger())
	var empty *vegecast.EmptyDatasetError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyDatasetError but got %v", err)
	}
	if _, err := os.Stat(cfg.ModelPath); !os.IsNotExist(err) {
		t.Error("model file should not exist")
	}
}

func TestTrainMissingDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImageDir = filepath.Join(cfg.ImageDir, "nope")
	_, err := Train(context.Background(), cfg, quietLogger())
	var missing *vegecast.MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingInputError but got %v", err)
	}
}

func TestTrainAndForecast(t *testing.T) {
	cfg := testConfig(t)
	writeHistory(t, cfg.ImageDir, 3)

	result, err := Train(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Epochs) != cfg.Epochs {
		t.Errorf("expected %d epochs but got %d", cfg.Epochs, len(result.Epochs))
	}
	losses, err := ReadLossHistory(cfg.HistoryPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(losses) != len(result.Epochs) {
		t.Fatalf("expected %d loss rows but got %d", len(result.Epochs), len(losses))
	}
	for i, row := range losses {
		if row.Epoch != int64(result.Epochs[i].Epoch) || row.Loss != result.Epochs[i].Loss {
			t.Errorf("row %d: expected %+v but got %+v", i, result.Epochs[i], row)
		}
	}

	artifact, err := Forecast(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range artifact.Forecast.Pix {
		if x < 0 || x > 1 {
			t.Fatalf("forecast value %f out of range", x)
		}
	}
	first, err := os.ReadFile(cfg.ForecastPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(bytes.NewReader(first)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.ComparisonPath); err != nil {
		t.Fatal(err)
	}

	rows, err := ReadLatentSummary(cfg.LatentsPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 latent rows but got %d", len(rows))
	}
	if rows[0].Name != "2001.png" || rows[3].Name != ForecastName || !rows[3].Forecast {
		t.Errorf("unexpected rows %+v", rows)
	}

	if _, err := Forecast(cfg); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(cfg.ForecastPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("forecast is not idempotent")
	}
}

func TestForecastMissingModel(t *testing.T) {
	cfg := testConfig(t)
	writeHistory(t, cfg.ImageDir, 2)
	_, err := Forecast(cfg)
	var missing *vegecast.MissingInputError
	if !errors.As(err, &missing) || missing.Path != cfg.ModelPath {
		t.Fatalf("expected MissingInputError for model but got %v", err)
	}
}

func TestForecastInsufficientImages(t *testing.T) {
	cfg := testConfig(t)
	writeHistory(t, cfg.ImageDir, 1)
	if _, err := Train(context.Background(), cfg, quietLogger()); err != nil {
		t.Fatal(err)
	}
	_, err := Forecast(cfg)
	var missing *vegecast.MissingInputError
	if !errors.As(err, &missing) || missing.Path != cfg.ImageDir {
		t.Fatalf("expected MissingInputError for images but got %v", err)
	}
	if _, err := os.Stat(cfg.ForecastPath); !os.IsNotExist(err) {
		t.Error("forecast should not exist")
	}
}

func TestForecastResolutionMismatch(t *testing.T) {
	cfg := testConfig(t)
	writeHistory(t, cfg.ImageDir, 2)
	if _, err := Train(context.Background(), cfg, quietLogger()); err != nil {
		t.Fatal(err)
	}
	cfg.Width, cfg.Height = 32, 32
	_, err := Forecast(cfg)
	var mismatch *vegecast.ShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ShapeMismatchError but got %v", err)
	}
}

func TestInfer(t *testing.T) {
	arch := vegeae.Arch{Width: 16, Height: 16, Channels: []int{3, 5}, FilterSize: 3}
	ae, err := vegeae.New(anyvec64.DefaultCreator{}, arch, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	seq := &vegeimg.Sequence{Dir: "synthetic", Names: []string{"a.png"},
		Images: []*vegeimg.Image{vegeimg.NewImage(16, 16)}}
	_, _, err = Infer(ae, seq, 0.6)
	var short *vegecast.InsufficientHistoryError
	if !errors.As(err, &short) || short.Have != 1 {
		t.Fatalf("expected InsufficientHistoryError but got %v", err)
	}

	seq.Names = append(seq.Names, "b.png")
	seq.Images = append(seq.Images, testImage(16, 16, 1))
	artifact, codes, err := Infer(ae, seq, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if artifact.Last != seq.Images[1] {
		t.Error("unexpected last image")
	}
	if len(codes) != 3 {
		t.Fatalf("expected 3 codes but got %d", len(codes))
	}
	expected, err := vegelatent.Extrapolate(codes[:2], 0.6)
	if err != nil {
		t.Fatal(err)
	}
	want := vegelatent.Float64s(expected.Vector)
	got := vegelatent.Float64s(codes[2].Vector)
	for i := range want {
		if math.Abs(want[i]-got[i]) > 1e-9 {
			t.Fatalf("code %d: expected %f but got %f", i, want[i], got[i])
		}
	}
}

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.ImageDir = filepath.Join(dir, "imgs")
	cfg.ModelPath = filepath.Join(dir, "models", "autoencoder.bin")
	cfg.ForecastPath = filepath.Join(dir, "outputs", "prediction_future.png")
	cfg.ComparisonPath = filepath.Join(dir, "outputs", "comparison.png")
	cfg.HistoryPath = filepath.Join(dir, "outputs", "loss.parquet")
	cfg.LatentsPath = filepath.Join(dir, "outputs", "latents.parquet")
	cfg.Width, cfg.Height = 16, 16
	cfg.Channels = []int{3, 5}
	cfg.Precision = "float64"
	cfg.Epochs = 3
	cfg.BatchSize = 2
	cfg.Seed = 1
	if err := os.MkdirAll(cfg.ImageDir, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func writeHistory(t *testing.T, dir string, n int) {
	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, 16, 16))
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				img.SetGray(x, y, color.Gray{Y: uint8(20 + 8*(x+y) + 10*i)})
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			t.Fatal(err)
		}
		name := filepath.Join(dir, []string{"2001.png", "2002.png", "2003.png"}[i])
		if err := os.WriteFile(name, buf.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func testImage(w, h int, offset float64) *vegeimg.Image {
	img := vegeimg.NewImage(w, h)
	for i := range img.Pix {
		img.Pix[i] = math.Mod(float64(i)*0.01+offset*0.1, 1)
	}
	return img
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
