package vegerender

import (
	"bytes"
	"image"

	"github.com/mares1402/vegecast/vegeimg"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Comparison figure layout.
const (
	ComparisonWidth  = 12 * vg.Inch
	ComparisonHeight = 5 * vg.Inch
	ComparisonDPI    = 150

	LastTitle     = "Last Real Image"
	ForecastTitle = "Predicted Future Image"
)

// Comparison draws the last real image and the forecast
// side by side as a PNG.
// Each panel is clamped like the forecast file, then
// stretched to its own full contrast range.
func Comparison(last, forecast *vegeimg.Image) ([]byte, error) {
	plots := [][]*plot.Plot{{
		imagePanel(LastTitle, last),
		imagePanel(ForecastTitle, forecast),
	}}

	c := vgimg.NewWith(vgimg.UseWH(ComparisonWidth, ComparisonHeight),
		vgimg.UseDPI(ComparisonDPI))
	dc := draw.New(c)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Inch / 2,
		PadTop:    vg.Inch / 8,
		PadBottom: vg.Inch / 8,
		PadLeft:   vg.Inch / 4,
		PadRight:  vg.Inch / 4,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i, p := range plots[0] {
		p.Draw(canvases[0][i])
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return nil, essentials.AddCtx("draw comparison", err)
	}
	return buf.Bytes(), nil
}

func imagePanel(title string, img *vegeimg.Image) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	p.Add(plotter.NewImage(panelImage(img), 0, 0, float64(img.Width), float64(img.Height)))
	return p
}

func panelImage(img *vegeimg.Image) *image.Gray {
	return Stretch(Clamp(img)).Gray()
}
