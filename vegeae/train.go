package vegeae

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/mares1402/vegecast/vegesgd"
	"github.com/unixpickle/anyvec"
)

// Training defaults.
const (
	DefaultEpochs       = 100
	DefaultBatchSize    = 4
	DefaultLearningRate = 0.001
	DefaultLogEvery     = 20
)

// TrainConfig controls Train.
type TrainConfig struct {
	// Epochs is the number of passes over the sequence.
	Epochs int

	// Iterations, if non-zero, overrides Epochs with an
	// exact number of mini-batch steps.
	Iterations int

	BatchSize    int
	LearningRate float64

	// Rand drives sample shuffling.
	Rand *rand.Rand

	// LogEvery is the epoch interval between progress
	// logs. The final epoch is always logged.
	LogEvery int

	// Logger receives progress logs.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Context, if non-nil, stops training early when it
	// is done.
	Context context.Context
}

func (t TrainConfig) withDefaults() TrainConfig {
	if t.Epochs <= 0 {
		t.Epochs = DefaultEpochs
	}
	if t.BatchSize <= 0 {
		t.BatchSize = DefaultBatchSize
	}
	if t.LearningRate <= 0 {
		t.LearningRate = DefaultLearningRate
	}
	if t.LogEvery <= 0 {
		t.LogEvery = DefaultLogEvery
	}
	if t.Logger == nil {
		t.Logger = slog.Default()
	}
	return t
}

// An EpochLoss is the mean batch loss of one epoch.
type EpochLoss struct {
	Epoch int
	Loss  float64
}

// A BatchLoss is the loss of one mini-batch step.
type BatchLoss struct {
	Iteration int
	Epoch     int
	Loss      float64
}

// A TrainResult records the losses of a training run.
type TrainResult struct {
	Epochs  []EpochLoss
	Batches []BatchLoss
}

// FinalLoss returns the loss of the last epoch.
func (t *TrainResult) FinalLoss() float64 {
	if len(t.Epochs) == 0 {
		return 0
	}
	return t.Epochs[len(t.Epochs)-1].Loss
}

// Train fits the Autoencoder to reconstruct the images of
// seq with Adam.
//
// An empty sequence produces a *vegecast.EmptyDatasetError.
// Training with the same Rand seed and a serial
// Autoencoder is reproducible.
func Train(ae *Autoencoder, seq *vegeimg.Sequence, cfg TrainConfig) (*TrainResult, error) {
	if seq.Len() == 0 {
		return nil, &vegecast.EmptyDatasetError{Path: seq.Dir}
	}
	cfg = cfg.withDefaults()

	samples := NewSampleList(ae.Creator(), seq)
	batchesPerEpoch := (samples.Len() + cfg.BatchSize - 1) / cfg.BatchSize
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = cfg.Epochs * batchesPerEpoch
	}
	totalEpochs := (iterations + batchesPerEpoch - 1) / batchesPerEpoch

	trainer := NewTrainer(ae)
	sgd := &vegesgd.SGD{
		Fetcher:     trainer,
		Gradienter:  trainer,
		Transformer: &vegesgd.Adam{},
		Samples:     samples,
		Rater:       vegesgd.ConstRater(cfg.LearningRate),
		Rand:        cfg.Rand,
		BatchSize:   cfg.BatchSize,
	}
	recorder := &lossRecorder{
		Trainer:     trainer,
		SGD:         sgd,
		Config:      cfg,
		TotalEpochs: totalEpochs,
		Result:      &TrainResult{},
	}
	sgd.StatusFunc = recorder.Record

	var stopper vegesgd.Stopper = &vegesgd.IterStopper{SGD: sgd, Limit: iterations}
	if cfg.Context != nil {
		stopper = vegesgd.AnyStopper{vegesgd.ContextStopper{Context: cfg.Context}, stopper}
	}

	cfg.Logger.Info("training autoencoder", "images", samples.Len(), "epochs", totalEpochs,
		"iterations", iterations, "batch_size", cfg.BatchSize, "learning_rate", cfg.LearningRate)
	if err := sgd.Run(stopper); err != nil {
		return nil, err
	}
	recorder.flush()

	if cfg.Context != nil && cfg.Context.Err() != nil {
		return recorder.Result, cfg.Context.Err()
	}
	return recorder.Result, nil
}

// lossRecorder tallies the loss of every step into
// per-epoch means.
type lossRecorder struct {
	Trainer     *Trainer
	SGD         *vegesgd.SGD
	Config      TrainConfig
	TotalEpochs int
	Result      *TrainResult

	epoch   int
	sum     float64
	batches int
}

// Record is called by the SGD loop after each step.
// Batches never span epochs, so the epoch of a step is
// that of its last sample.
func (l *lossRecorder) Record(b vegesgd.Batch) {
	epoch := (l.SGD.NumProcessed-1)/l.SGD.Samples.Len() + 1
	if epoch != l.epoch {
		l.flush()
		l.epoch = epoch
	}
	loss := numericFloat(l.Trainer.LastCost)
	l.Result.Batches = append(l.Result.Batches, BatchLoss{
		Iteration: l.SGD.NumIterations,
		Epoch:     epoch,
		Loss:      loss,
	})
	l.sum += loss
	l.batches++
}

func (l *lossRecorder) flush() {
	if l.batches == 0 {
		return
	}
	mean := l.sum / float64(l.batches)
	l.Result.Epochs = append(l.Result.Epochs, EpochLoss{Epoch: l.epoch, Loss: mean})
	if l.epoch%l.Config.LogEvery == 0 || l.epoch == l.TotalEpochs || l.epoch == 1 {
		l.Config.Logger.Info("epoch complete", "epoch", l.epoch, "total_epochs", l.TotalEpochs,
			"loss", mean)
	}
	l.sum = 0
	l.batches = 0
}

func numericFloat(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic("unsupported numeric type")
	}
}
