package vegepipe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegeae"
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/mares1402/vegecast/vegelatent"
	"github.com/mares1402/vegecast/vegerender"
)

// Train fits a new autoencoder to every image in
// cfg.ImageDir and saves it to cfg.ModelPath.
//
// Nothing is written unless training succeeds. An empty
// directory produces a *vegecast.EmptyDatasetError.
// If logger is nil, slog.Default() is used.
func Train(ctx context.Context, cfg Config, logger *slog.Logger) (*vegeae.TrainResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	creator, _ := cfg.Creator()

	seq, err := vegeimg.Load(cfg.ImageDir, cfg.LoadOptions(0))
	if err != nil {
		return nil, err
	}
	if seq.Len() == 0 {
		return nil, &vegecast.EmptyDatasetError{Path: cfg.ImageDir}
	}
	logger.Info("loaded training images", "dir", cfg.ImageDir, "count", seq.Len(),
		"width", cfg.Width, "height", cfg.Height)

	r := cfg.Rand()
	ae, err := vegeae.New(creator, cfg.Arch(), r)
	if err != nil {
		return nil, err
	}
	result, err := vegeae.Train(ae, seq, vegeae.TrainConfig{
		Epochs:       cfg.Epochs,
		Iterations:   cfg.Iterations,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		Rand:         r,
		LogEvery:     cfg.LogEvery,
		Logger:       logger,
		Context:      ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	if err := ae.Save(cfg.ModelPath); err != nil {
		return nil, err
	}
	logger.Info("saved model", "path", cfg.ModelPath, "final_loss", result.FinalLoss())

	if cfg.HistoryPath != "" {
		if err := WriteLossHistory(cfg.HistoryPath, result); err != nil {
			return nil, err
		}
		logger.Info("saved loss history", "path", cfg.HistoryPath)
	}
	return result, nil
}

// Infer encodes the sequence, extrapolates the last two
// codes by k, and decodes the projected code.
//
// The returned codes hold one entry per image followed by
// the projected code.
func Infer(ae *vegeae.Autoencoder, seq *vegeimg.Sequence,
	k float64) (*vegerender.Artifact, []*vegelatent.Latent, error) {
	if seq.Len() < vegeimg.MinForecastImages {
		return nil, nil, &vegecast.InsufficientHistoryError{Have: seq.Len()}
	}
	codes, err := ae.EncodeAll(seq)
	if err != nil {
		return nil, nil, err
	}
	future, err := vegelatent.Extrapolate(codes, k)
	if err != nil {
		return nil, nil, err
	}
	img, err := ae.Decode(future)
	if err != nil {
		return nil, nil, err
	}
	artifact := &vegerender.Artifact{
		Last:     seq.Last(),
		Forecast: img,
	}
	return artifact, append(codes, future), nil
}

// Forecast loads the model saved by Train and the image
// history in cfg.ImageDir, then writes the forecast image
// and the comparison figure.
func Forecast(cfg Config) (*vegerender.Artifact, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ae, err := vegeae.Load(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	ae.SetParallel(cfg.Parallel)

	expected := vegecast.Shape{Width: cfg.Width, Height: cfg.Height, Depth: 1}
	if ae.InputShape != expected {
		return nil, &vegecast.ShapeMismatchError{
			Context:  "model resolution",
			Expected: expected,
			Actual:   ae.InputShape,
		}
	}

	seq, err := vegeimg.Load(cfg.ImageDir, cfg.LoadOptions(vegeimg.MinForecastImages))
	if err != nil {
		return nil, err
	}
	artifact, codes, err := Infer(ae, seq, cfg.ExtrapolationFactor)
	if err != nil {
		return nil, err
	}
	if err := artifact.Write(cfg.ForecastPath, cfg.ComparisonPath); err != nil {
		return nil, fmt.Errorf("write forecast: %w", err)
	}
	if cfg.LatentsPath != "" {
		if err := WriteLatentSummary(cfg.LatentsPath, seq.Names, codes); err != nil {
			return nil, err
		}
	}
	return artifact, nil
}
