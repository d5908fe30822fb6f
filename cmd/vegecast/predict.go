package main

import (
	"log/slog"

	"github.com/mares1402/vegecast/vegepipe"
	"github.com/spf13/cobra"
)

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast the next image from the image history",
		Long: `Encodes every image in the image directory with the trained model,
extrapolates the two most recent latent codes, and writes the decoded
forecast together with a side-by-side comparison figure.`,
		Example: `  # Forecast with the defaults
  vegecast predict

  # Project twice as far
  vegecast predict --factor 1.2 --output outputs/far.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if _, err := vegepipe.Forecast(cfg); err != nil {
				return err
			}
			slog.Info("Forecast written", "forecast", cfg.ForecastPath,
				"comparison", cfg.ComparisonPath)
			if cfg.LatentsPath != "" {
				slog.Info("Latent summary written", "path", cfg.LatentsPath)
			}
			return nil
		},
	}

	pipelineFlags(cmd.Flags(), "images", "model", "output", "comparison", "latents",
		"width", "height", "factor", "parallel")

	return cmd
}
