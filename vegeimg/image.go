// Package vegeimg loads chronological sequences of
// single-channel vegetation images.
package vegeimg

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/mares1402/vegecast"
	"github.com/nfnt/resize"
)

// An Image is a grayscale image with intensities in
// [0, 1], stored row-major.
type Image struct {
	Width  int
	Height int
	Pix    []float64
}

// NewImage creates a black image.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// FromImage converts img to 8-bit luma, resizes it to
// width x height, and normalizes it to [0, 1].
//
// Every image entering the model goes through this
// function, whether it came from disk or from a request.
func FromImage(img image.Image, width, height int) *Image {
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)

	var scaled image.Image = gray
	if gray.Bounds().Dx() != width || gray.Bounds().Dy() != height {
		scaled = resize.Resize(uint(width), uint(height), gray, resize.Bicubic)
	}

	res := NewImage(width, height)
	b := scaled.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.GrayModel.Convert(scaled.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			res.Pix[y*width+x] = float64(g.Y) / 0xff
		}
	}
	return res
}

// Shape returns the tensor shape of the image.
func (i *Image) Shape() vegecast.Shape {
	return vegecast.Shape{Width: i.Width, Height: i.Height, Depth: 1}
}

// At returns the intensity at (x, y).
func (i *Image) At(x, y int) float64 {
	return i.Pix[y*i.Width+x]
}

// Copy creates a deep copy of the image.
func (i *Image) Copy() *Image {
	return &Image{
		Width:  i.Width,
		Height: i.Height,
		Pix:    append([]float64{}, i.Pix...),
	}
}

// Bounds returns the smallest and largest intensities.
func (i *Image) Bounds() (min, max float64) {
	if len(i.Pix) == 0 {
		return 0, 0
	}
	min, max = i.Pix[0], i.Pix[0]
	for _, x := range i.Pix[1:] {
		if x < min {
			min = x
		} else if x > max {
			max = x
		}
	}
	return
}

// Gray converts the image to 8 bits per pixel.
// Intensities are clipped to [0, 1].
func (i *Image) Gray() *image.Gray {
	res := image.NewGray(image.Rect(0, 0, i.Width, i.Height))
	for idx, x := range i.Pix {
		res.Pix[(idx/i.Width)*res.Stride+idx%i.Width] = uint8(Clip(x)*0xff + 0.5)
	}
	return res
}

// Clip limits an intensity to [0, 1].
// NaN becomes 0.
func Clip(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	} else if x > 1 {
		return 1
	}
	return x
}
