package main

import (
	"log/slog"

	"github.com/mares1402/vegecast/vegepipe"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the autoencoder on an image directory",
		Long: `Trains a new autoencoder on every image in the image directory and
saves it to the model path. Nothing is saved if training fails.`,
		Example: `  # Train with the defaults from vegecast.yaml
  vegecast train

  # Train a small model quickly
  vegecast train --images img/ --width 64 --height 64 --epochs 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			result, err := vegepipe.Train(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			slog.Info("Training complete", "epochs", len(result.Epochs),
				"final_loss", result.FinalLoss(), "model", cfg.ModelPath)
			return nil
		},
	}

	pipelineFlags(cmd.Flags(), "images", "model", "history", "width", "height",
		"epochs", "batch-size", "learning-rate", "seed", "parallel")

	return cmd
}
