package vegecast

import "fmt"

// MissingInputError reports an absent input directory,
// too few usable images, or an absent model file.
type MissingInputError struct {
	Path   string
	Reason string
}

func (m *MissingInputError) Error() string {
	return fmt.Sprintf("missing input %s: %s", m.Path, m.Reason)
}

// InsufficientHistoryError reports an extrapolation
// request with fewer than two latent codes.
type InsufficientHistoryError struct {
	Have int
}

func (i *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: need at least 2 latent codes, have %d", i.Have)
}

// ShapeMismatchError reports tensors whose shapes should
// agree but do not, such as a decoder whose output does
// not match the encoder input.
type ShapeMismatchError struct {
	Context  string
	Expected Shape
	Actual   Shape
}

func (s *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: expected %v but got %v", s.Context,
		s.Expected, s.Actual)
}

// EmptyDatasetError reports a training run with no
// images to learn from.
type EmptyDatasetError struct {
	Path string
}

func (e *EmptyDatasetError) Error() string {
	if e.Path == "" {
		return "empty dataset"
	}
	return "empty dataset: no usable images in " + e.Path
}
