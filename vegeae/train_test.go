package vegeae

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"reflect"
	"testing"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegeimg"
)

func TestTrainEmpty(t *testing.T) {
	ae := smallAutoencoder(t, 1)
	_, err := Train(ae, &vegeimg.Sequence{Dir: "images"}, TrainConfig{})
	var empty *vegecast.EmptyDatasetError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyDatasetError but got %v", err)
	}
}

func TestTrainReducesLoss(t *testing.T) {
	ae := smallAutoencoder(t, 2)
	seq := testSequence(3)
	res, err := Train(ae, seq, TrainConfig{
		Epochs:       60,
		BatchSize:    3,
		LearningRate: 0.01,
		Rand:         rand.New(rand.NewSource(1)),
		Logger:       quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Epochs) != 60 {
		t.Fatalf("expected 60 epoch losses but got %d", len(res.Epochs))
	}
	if len(res.Batches) != 60 {
		t.Fatalf("expected 60 batch losses but got %d", len(res.Batches))
	}
	if res.FinalLoss() >= res.Epochs[0].Loss {
		t.Errorf("loss did not decrease: %f -> %f", res.Epochs[0].Loss, res.FinalLoss())
	}
}

func TestTrainEpochAccounting(t *testing.T) {
	ae := smallAutoencoder(t, 3)
	res, err := Train(ae, testSequence(5), TrainConfig{
		Epochs:    3,
		BatchSize: 2,
		Rand:      rand.New(rand.NewSource(1)),
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Batches) != 9 {
		t.Fatalf("expected 9 batches but got %d", len(res.Batches))
	}
	for i, b := range res.Batches {
		if b.Iteration != i+1 || b.Epoch != i/3+1 {
			t.Errorf("batch %d: unexpected record %+v", i, b)
		}
	}
	for i, e := range res.Epochs {
		if e.Epoch != i+1 {
			t.Errorf("epoch %d: unexpected record %+v", i, e)
		}
	}
}

func TestTrainReproducible(t *testing.T) {
	run := func() []BatchLoss {
		ae := smallAutoencoder(t, 4)
		res, err := Train(ae, testSequence(4), TrainConfig{
			Iterations: 6,
			BatchSize:  2,
			Rand:       rand.New(rand.NewSource(9)),
			Logger:     quietLogger(),
		})
		if err != nil {
			t.Fatal(err)
		}
		return res.Batches
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Error("seeded training is not reproducible")
	}
}

func TestTrainCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ae := smallAutoencoder(t, 5)
	_, err := Train(ae, testSequence(2), TrainConfig{Context: ctx, Logger: quietLogger()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled but got %v", err)
	}
}

func testSequence(n int) *vegeimg.Sequence {
	seq := &vegeimg.Sequence{Dir: "synthetic"}
	for i := 0; i < n; i++ {
		seq.Names = append(seq.Names, string(rune('a'+i))+".png")
		img := vegeimg.NewImage(16, 16)
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				img.Pix[y*16+x] = 0.1 + 0.8*float64(x+y+i)/float64(30+n)
			}
		}
		seq.Images = append(seq.Images, img)
	}
	return seq
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
