package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mares1402/vegecast/vegepipe"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "vegecast",
		Short: "Forecast vegetation imagery from a series of satellite snapshots",
		Long: `Vegecast trains a convolutional autoencoder on a chronological series of
grayscale satellite images, then forecasts the next image by extrapolating
the latent codes of the two most recent snapshots.

Settings come from a YAML file (--config), VEGECAST_* environment variables,
and command flags, in increasing order of precedence.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
			slog.SetDefault(logger)
		},
	}

	cmd.PersistentFlags().String("config", "vegecast.yaml", "Path to YAML config file")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newPredictCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// loadConfig reads the config file and environment, then
// applies every flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (vegepipe.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := vegepipe.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	var flagErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if flagErr == nil {
			flagErr = applyFlag(&cfg, cmd.Flags(), f.Name)
		}
	})
	if flagErr != nil {
		return cfg, flagErr
	}
	return cfg, cfg.Validate()
}

// pipelineFlags registers the config overrides shared by
// the subcommands. Defaults are shown for help only; unset
// flags never override the config.
func pipelineFlags(flags *pflag.FlagSet, names ...string) {
	def := vegepipe.DefaultConfig()
	for _, name := range names {
		switch name {
		case "images":
			flags.String(name, def.ImageDir, "Directory of chronologically named images")
		case "model":
			flags.String(name, def.ModelPath, "Path of the trained model")
		case "output":
			flags.String(name, def.ForecastPath, "Path of the forecast image (.jpg, .png, .tif)")
		case "comparison":
			flags.String(name, def.ComparisonPath, "Path of the comparison figure")
		case "history":
			flags.String(name, "", "Write per-epoch losses to this parquet file")
		case "latents":
			flags.String(name, "", "Write latent code summaries to this parquet file")
		case "width":
			flags.Int(name, def.Width, "Image width in pixels")
		case "height":
			flags.Int(name, def.Height, "Image height in pixels")
		case "epochs":
			flags.Int(name, def.Epochs, "Number of training epochs")
		case "batch-size":
			flags.Int(name, def.BatchSize, "Training batch size")
		case "learning-rate":
			flags.Float64(name, def.LearningRate, "Adam step size")
		case "seed":
			flags.Int64(name, def.Seed, "Random seed (0 for time-based)")
		case "factor":
			flags.Float64(name, def.ExtrapolationFactor, "Latent extrapolation factor")
		case "parallel":
			flags.Bool(name, def.Parallel, "Run convolutions on all CPUs")
		}
	}
}

func applyFlag(cfg *vegepipe.Config, flags *pflag.FlagSet, name string) (err error) {
	switch name {
	case "images":
		cfg.ImageDir, err = flags.GetString(name)
	case "model":
		cfg.ModelPath, err = flags.GetString(name)
	case "output":
		cfg.ForecastPath, err = flags.GetString(name)
	case "comparison":
		cfg.ComparisonPath, err = flags.GetString(name)
	case "history":
		cfg.HistoryPath, err = flags.GetString(name)
	case "latents":
		cfg.LatentsPath, err = flags.GetString(name)
	case "width":
		cfg.Width, err = flags.GetInt(name)
	case "height":
		cfg.Height, err = flags.GetInt(name)
	case "epochs":
		cfg.Epochs, err = flags.GetInt(name)
	case "batch-size":
		cfg.BatchSize, err = flags.GetInt(name)
	case "learning-rate":
		cfg.LearningRate, err = flags.GetFloat64(name)
	case "seed":
		cfg.Seed, err = flags.GetInt64(name)
	case "factor":
		cfg.ExtrapolationFactor, err = flags.GetFloat64(name)
	case "parallel":
		cfg.Parallel, err = flags.GetBool(name)
	}
	return
}
