package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mares1402/vegecast/vegeae"
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/mares1402/vegecast/vegeserve"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the forecast HTTP server",
		Long: `Loads the trained model and the most recent image of the history, then
serves forecasts for uploaded images along with the artifacts of the
last predict run.`,
		Example: `  # Start server on default port 8080
  vegecast serve

  # Forecast from an upload
  curl -X POST -F "image=@latest.png" http://localhost:8080/predict/image -o next.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ae, err := vegeae.Load(cfg.ModelPath)
			if err != nil {
				return err
			}
			ae.SetParallel(cfg.Parallel)

			opts := cfg.LoadOptions(1)
			opts.Width, opts.Height = ae.InputShape.Width, ae.InputShape.Height
			seq, err := vegeimg.Load(cfg.ImageDir, opts)
			if err != nil {
				return err
			}
			handler, err := vegeserve.NewHandler(ae, seq.Last(), cfg.ExtrapolationFactor,
				vegeserve.Paths{Forecast: cfg.ForecastPath, Comparison: cfg.ComparisonPath})
			if err != nil {
				return err
			}

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: handler.Routes(),
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Forecast server available", "addr", addr, "model", cfg.ModelPath,
					"input", ae.InputShape.String(), "previous", seq.Names[len(seq.Names)-1])
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to listen on")
	pipelineFlags(cmd.Flags(), "images", "model", "output", "comparison", "factor", "parallel")

	return cmd
}
