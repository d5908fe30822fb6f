// Package vegerender turns forecasts into image files and
// side-by-side comparison figures.
package vegerender

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/unixpickle/essentials"
	"golang.org/x/image/tiff"
)

// JPEGQuality is the quality of JPEG forecast files.
const JPEGQuality = 95

// An Artifact is the result of one forecast.
type Artifact struct {
	// Last is the most recent historical image.
	Last *vegeimg.Image

	// Forecast is the decoded future image.
	Forecast *vegeimg.Image
}

// Clamp returns a copy of img with every intensity
// clipped to [0, 1]. NaN intensities become 0.
func Clamp(img *vegeimg.Image) *vegeimg.Image {
	res := img.Copy()
	for i, x := range res.Pix {
		res.Pix[i] = vegeimg.Clip(x)
	}
	return res
}

// Stretch returns a copy of img linearly rescaled so its
// smallest intensity is 0 and its largest is 1.
// A constant image becomes black.
func Stretch(img *vegeimg.Image) *vegeimg.Image {
	res := img.Copy()
	min, max := img.Bounds()
	for i, x := range res.Pix {
		if max > min {
			res.Pix[i] = (x - min) / (max - min)
		} else {
			res.Pix[i] = 0
		}
	}
	return res
}

// EncodeImage clamps img and encodes it in the format
// implied by the extension of path: .jpg, .jpeg, .png,
// .tif, or .tiff.
func EncodeImage(img *vegeimg.Image, path string) ([]byte, error) {
	gray := Clamp(img).Gray()
	var buf bytes.Buffer
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, gray, &jpeg.Options{Quality: JPEGQuality})
	case ".png":
		err = png.Encode(&buf, gray)
	case ".tif", ".tiff":
		err = tiff.Encode(&buf, gray, &tiff.Options{Compression: tiff.Deflate})
	default:
		return nil, fmt.Errorf("encode image: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, essentials.AddCtx("encode image", err)
	}
	return buf.Bytes(), nil
}

// Render encodes the forecast image for forecastPath and
// the comparison figure, without touching the disk.
func (a *Artifact) Render(forecastPath string) (forecast, comparison []byte, err error) {
	if a.Last.Shape() != a.Forecast.Shape() {
		return nil, nil, &vegecast.ShapeMismatchError{
			Context:  "render",
			Expected: a.Last.Shape(),
			Actual:   a.Forecast.Shape(),
		}
	}
	forecast, err = EncodeImage(a.Forecast, forecastPath)
	if err != nil {
		return nil, nil, err
	}
	comparison, err = Comparison(a.Last, a.Forecast)
	if err != nil {
		return nil, nil, err
	}
	return forecast, comparison, nil
}

// Write renders both outputs and stores them.
// Either both files are replaced or neither is.
func (a *Artifact) Write(forecastPath, comparisonPath string) error {
	forecast, comparison, err := a.Render(forecastPath)
	if err != nil {
		return err
	}
	err = vegecast.WriteFiles(
		vegecast.PendingFile{Path: forecastPath, Data: forecast},
		vegecast.PendingFile{Path: comparisonPath, Data: comparison},
	)
	if err != nil {
		return essentials.AddCtx("write forecast", err)
	}
	return nil
}
