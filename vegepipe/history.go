package vegepipe

import (
	"bytes"
	"fmt"
	"os"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegeae"
	"github.com/mares1402/vegecast/vegelatent"
	"github.com/parquet-go/parquet-go"
)

// ForecastName names the projected code in a latent
// summary.
const ForecastName = "forecast"

// A LossRow is one epoch of a loss history file.
type LossRow struct {
	Epoch int64   `parquet:"epoch"`
	Loss  float64 `parquet:"loss"`
}

// A LatentRow summarizes one latent code.
type LatentRow struct {
	Index    int64   `parquet:"index"`
	Name     string  `parquet:"name"`
	Forecast bool    `parquet:"forecast"`
	Mean     float64 `parquet:"mean"`
	Min      float64 `parquet:"min"`
	Max      float64 `parquet:"max"`
	Norm     float64 `parquet:"norm"`
}

// WriteLossHistory writes the per-epoch losses of a
// training run to a parquet file.
func WriteLossHistory(path string, res *vegeae.TrainResult) error {
	rows := make([]LossRow, len(res.Epochs))
	for i, e := range res.Epochs {
		rows[i] = LossRow{Epoch: int64(e.Epoch), Loss: e.Loss}
	}
	return writeParquet(path, rows)
}

// ReadLossHistory reads a file written by
// WriteLossHistory.
func ReadLossHistory(path string) ([]LossRow, error) {
	return readParquet[LossRow](path)
}

// WriteLatentSummary writes one row per code to a parquet
// file. The codes are those returned by Infer: one per
// name, then the projected code.
func WriteLatentSummary(path string, names []string, codes []*vegelatent.Latent) error {
	if len(codes) != len(names)+1 {
		return fmt.Errorf("latent summary: %d names for %d codes", len(names), len(codes))
	}
	rows := make([]LatentRow, len(codes))
	for i, code := range codes {
		stats := code.Summarize()
		row := LatentRow{
			Index: int64(i),
			Mean:  stats.Mean,
			Min:   stats.Min,
			Max:   stats.Max,
			Norm:  stats.Norm,
		}
		if i < len(names) {
			row.Name = names[i]
		} else {
			row.Name = ForecastName
			row.Forecast = true
		}
		rows[i] = row
	}
	return writeParquet(path, rows)
}

// ReadLatentSummary reads a file written by
// WriteLatentSummary.
func ReadLatentSummary(path string) ([]LatentRow, error) {
	return readParquet[LatentRow](path)
}

func writeParquet[T any](path string, rows []T) error {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf)
	if _, err := w.Write(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return vegecast.WriteFiles(vegecast.PendingFile{Path: path, Data: buf.Bytes()})
}

func readParquet[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[T](pf)
	defer reader.Close()

	rows := make([]T, pf.NumRows())
	n, err := reader.Read(rows)
	if err != nil && n < len(rows) {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows[:n], nil
}
