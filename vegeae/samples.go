package vegeae

import (
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/mares1402/vegecast/vegesgd"
	"github.com/unixpickle/anyvec"
)

// A SampleList holds image tensors for reconstruction
// training, where every image is its own target.
type SampleList []anyvec.Vector

// NewSampleList converts the images of a sequence into
// tensors made by c.
func NewSampleList(c anyvec.Creator, seq *vegeimg.Sequence) SampleList {
	res := make(SampleList, len(seq.Images))
	for i, img := range seq.Images {
		res[i] = c.MakeVectorData(c.MakeNumericList(img.Pix))
	}
	return res
}

// Len returns the number of samples.
func (s SampleList) Len() int {
	return len(s)
}

// Swap swaps two samples.
func (s SampleList) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Slice copies a sub-slice of the list.
func (s SampleList) Slice(i, j int) vegesgd.SampleList {
	return append(SampleList{}, s[i:j]...)
}
