package vegepipe

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "vegecast.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	if cfg.ModelPath != def.ModelPath || cfg.Width != def.Width || cfg.ExtrapolationFactor != 0.6 {
		t.Errorf("expected defaults but got %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vegecast.yaml")
	data := []byte("image_dir: scenes\nwidth: 64\nheight: 32\nchannels: [4, 8]\n" +
		"extrapolation_factor: 1.5\nprecision: float64\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ImageDir != "scenes" || cfg.Width != 64 || cfg.Height != 32 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[1] != 8 {
		t.Errorf("unexpected channels %v", cfg.Channels)
	}
	if cfg.ExtrapolationFactor != 1.5 {
		t.Errorf("unexpected factor %f", cfg.ExtrapolationFactor)
	}

	// Unset fields keep their defaults.
	if cfg.ModelPath != DefaultConfig().ModelPath {
		t.Errorf("unexpected model path %s", cfg.ModelPath)
	}

	c, err := cfg.Creator()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.MakeVector(1).Data().([]float64); !ok {
		t.Errorf("expected float64 creator but got %T", c)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vegecast.yaml")
	if err := os.WriteFile(path, []byte("width: [1, 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"VEGECAST_EPOCHS":               "7",
		"VEGECAST_LEARNING_RATE":        "0.01",
		"VEGECAST_SEED":                 "42",
		"VEGECAST_PARALLEL":             "true",
		"VEGECAST_CHANNELS":             "2, 4,6",
		"VEGECAST_FORECAST_PATH":        "out/next.png",
		"VEGECAST_LOAD_WORKERS":         "3",
		"VEGECAST_EXTRAPOLATION_FACTOR": "",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Epochs != 7 || cfg.LearningRate != 0.01 || cfg.Seed != 42 || !cfg.Parallel {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.Channels) != 3 || cfg.Channels[2] != 6 {
		t.Errorf("unexpected channels %v", cfg.Channels)
	}
	if cfg.ForecastPath != "out/next.png" {
		t.Errorf("unexpected forecast path %s", cfg.ForecastPath)
	}
	if opts := cfg.LoadOptions(2); opts.MaxGos != 3 || opts.MinImages != 2 {
		t.Errorf("unexpected load options %+v", opts)
	}
	if cfg.ExtrapolationFactor != DefaultConfig().ExtrapolationFactor {
		t.Error("empty variable should not override")
	}

	env["VEGECAST_WIDTH"] = "wide"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Error("expected error for bad integer")
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	backward := DefaultConfig()
	backward.ExtrapolationFactor = -MaxExtrapolationFactor
	if err := backward.Validate(); err != nil {
		t.Errorf("negative factor: %v", err)
	}
	bad := []func(c *Config){
		func(c *Config) { c.ImageDir = "" },
		func(c *Config) { c.Width = 0 },
		func(c *Config) { c.BatchSize = -1 },
		func(c *Config) { c.Epochs, c.Iterations = 0, 0 },
		func(c *Config) { c.LearningRate = 0 },
		func(c *Config) { c.Precision = "float16" },
		func(c *Config) { c.LearningRate = math.NaN() },
		func(c *Config) { c.ExtrapolationFactor = math.NaN() },
		func(c *Config) { c.ExtrapolationFactor = math.Inf(1) },
		func(c *Config) { c.ExtrapolationFactor = 1e40 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestRandSeeded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 3
	if cfg.Rand().Int63() != cfg.Rand().Int63() {
		t.Error("seeded generators differ")
	}
}
