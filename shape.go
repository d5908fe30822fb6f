package vegecast

import "fmt"

// A Shape describes a width x height x depth tensor
// stored row-major with depth as the minor dimension.
type Shape struct {
	Width  int
	Height int
	Depth  int
}

// Volume returns the number of components.
func (s Shape) Volume() int {
	return s.Width * s.Height * s.Depth
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Depth)
}
