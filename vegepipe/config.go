// Package vegepipe wires the loader, autoencoder,
// extrapolator, and renderer into the train and forecast
// stages.
package vegepipe

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mares1402/vegecast/vegeae"
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/mares1402/vegecast/vegelatent"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"gopkg.in/yaml.v3"
)

// MaxExtrapolationFactor bounds the magnitude of
// ExtrapolationFactor.
const MaxExtrapolationFactor = 100

// EnvPrefix prefixes the environment variables read by
// ApplyEnv.
const EnvPrefix = "VEGECAST_"

// Config holds every setting of the pipeline.
// It is passed by value into each stage.
type Config struct {
	ImageDir       string `yaml:"image_dir"`
	ModelPath      string `yaml:"model_path"`
	ForecastPath   string `yaml:"forecast_path"`
	ComparisonPath string `yaml:"comparison_path"`

	// HistoryPath, if set, receives the training losses
	// as a parquet file.
	HistoryPath string `yaml:"history_path"`

	// LatentsPath, if set, receives per-frame latent code
	// summaries as a parquet file.
	LatentsPath string `yaml:"latents_path"`

	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	Extensions []string `yaml:"extensions"`

	// LoadWorkers bounds concurrent image decoders.
	// Zero uses every CPU.
	LoadWorkers int `yaml:"load_workers"`

	Channels   []int  `yaml:"channels"`
	FilterSize int    `yaml:"filter_size"`
	Precision  string `yaml:"precision"`
	Parallel   bool   `yaml:"parallel"`

	Epochs       int     `yaml:"epochs"`
	Iterations   int     `yaml:"iterations"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	LogEvery     int     `yaml:"log_every"`

	// Seed seeds weight initialization and shuffling.
	// Zero picks a time-based seed.
	Seed int64 `yaml:"seed"`

	ExtrapolationFactor float64 `yaml:"extrapolation_factor"`
}

// DefaultConfig returns the settings of a 256x256 run.
func DefaultConfig() Config {
	return Config{
		ImageDir:       "public/imgs",
		ModelPath:      "models/autoencoder.bin",
		ForecastPath:   "outputs/prediction_future.jpg",
		ComparisonPath: "outputs/comparison.png",

		Width:      256,
		Height:     256,
		Extensions: append([]string{}, vegeimg.DefaultExtensions...),

		Channels:   []int{16, 32, 64},
		FilterSize: 3,
		Precision:  "float32",

		Epochs:       vegeae.DefaultEpochs,
		BatchSize:    vegeae.DefaultBatchSize,
		LearningRate: vegeae.DefaultLearningRate,
		LogEvery:     vegeae.DefaultLogEvery,

		ExtrapolationFactor: vegelatent.DefaultFactor,
	}
}

// LoadConfig reads a YAML file over the defaults.
// An empty path or a missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from VEGECAST_* variables,
// e.g. VEGECAST_EPOCHS=50.
// Pass os.LookupEnv to read the process environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(p *string) func(string) error {
		return func(s string) error {
			*p = s
			return nil
		}
	}
	num := func(p *int) func(string) error {
		return func(s string) (err error) {
			*p, err = strconv.Atoi(s)
			return
		}
	}
	float := func(p *float64) func(string) error {
		return func(s string) (err error) {
			*p, err = strconv.ParseFloat(s, 64)
			return
		}
	}
	setters := []struct {
		name string
		set  func(string) error
	}{
		{"IMAGE_DIR", str(&c.ImageDir)},
		{"MODEL_PATH", str(&c.ModelPath)},
		{"FORECAST_PATH", str(&c.ForecastPath)},
		{"COMPARISON_PATH", str(&c.ComparisonPath)},
		{"HISTORY_PATH", str(&c.HistoryPath)},
		{"LATENTS_PATH", str(&c.LatentsPath)},
		{"PRECISION", str(&c.Precision)},
		{"WIDTH", num(&c.Width)},
		{"HEIGHT", num(&c.Height)},
		{"FILTER_SIZE", num(&c.FilterSize)},
		{"LOAD_WORKERS", num(&c.LoadWorkers)},
		{"EPOCHS", num(&c.Epochs)},
		{"ITERATIONS", num(&c.Iterations)},
		{"BATCH_SIZE", num(&c.BatchSize)},
		{"LOG_EVERY", num(&c.LogEvery)},
		{"LEARNING_RATE", float(&c.LearningRate)},
		{"EXTRAPOLATION_FACTOR", float(&c.ExtrapolationFactor)},
		{"SEED", func(s string) (err error) {
			c.Seed, err = strconv.ParseInt(s, 10, 64)
			return
		}},
		{"PARALLEL", func(s string) (err error) {
			c.Parallel, err = strconv.ParseBool(s)
			return
		}},
		{"CHANNELS", func(s string) error {
			var chans []int
			for _, field := range strings.Split(s, ",") {
				n, err := strconv.Atoi(strings.TrimSpace(field))
				if err != nil {
					return err
				}
				chans = append(chans, n)
			}
			c.Channels = chans
			return nil
		}},
	}
	for _, s := range setters {
		value, ok := lookup(EnvPrefix + s.name)
		if !ok || value == "" {
			continue
		}
		if err := s.set(value); err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, s.name, err)
		}
	}
	return nil
}

// Validate rejects settings no stage can run with.
func (c Config) Validate() error {
	switch {
	case c.ImageDir == "":
		return errors.New("config: image_dir is empty")
	case c.ModelPath == "":
		return errors.New("config: model_path is empty")
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("config: invalid size %dx%d", c.Width, c.Height)
	case c.BatchSize <= 0:
		return fmt.Errorf("config: invalid batch_size %d", c.BatchSize)
	case c.Epochs <= 0 && c.Iterations <= 0:
		return errors.New("config: epochs or iterations must be positive")
	case !(c.LearningRate > 0):
		return fmt.Errorf("config: invalid learning_rate %f", c.LearningRate)
	case !(math.Abs(c.ExtrapolationFactor) <= MaxExtrapolationFactor):
		return fmt.Errorf("config: extrapolation_factor %g outside [-%d, %d]",
			c.ExtrapolationFactor, MaxExtrapolationFactor, MaxExtrapolationFactor)
	}
	if _, err := c.Creator(); err != nil {
		return err
	}
	return nil
}

// Creator returns the vector creator for the precision.
func (c Config) Creator() (anyvec.Creator, error) {
	switch strings.ToLower(c.Precision) {
	case "", "float32":
		return anyvec32.CurrentCreator(), nil
	case "float64":
		return anyvec64.CurrentCreator(), nil
	default:
		return nil, fmt.Errorf("config: unknown precision %q", c.Precision)
	}
}

// Rand returns a generator seeded with Seed, or with the
// current time if Seed is zero.
func (c Config) Rand() *rand.Rand {
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Arch returns the autoencoder architecture.
func (c Config) Arch() vegeae.Arch {
	return vegeae.Arch{
		Width:      c.Width,
		Height:     c.Height,
		Channels:   append([]int{}, c.Channels...),
		FilterSize: c.FilterSize,
		Parallel:   c.Parallel,
	}
}

// LoadOptions returns the loader options, requiring at
// least minImages images.
func (c Config) LoadOptions(minImages int) vegeimg.LoadOptions {
	return vegeimg.LoadOptions{
		Width:      c.Width,
		Height:     c.Height,
		Extensions: c.Extensions,
		MinImages:  minImages,
		MaxGos:     c.LoadWorkers,
	}
}
