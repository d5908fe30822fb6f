package vegeimg

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/mares1402/vegecast"
	"github.com/unixpickle/essentials"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// MinForecastImages is the number of images needed to
// extrapolate a forecast.
const MinForecastImages = 2

// DefaultExtensions lists the file types loaded when
// LoadOptions.Extensions is empty.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp"}

// LoadOptions controls Load.
type LoadOptions struct {
	Width  int
	Height int

	// Extensions lists the accepted file extensions,
	// compared case-insensitively.
	Extensions []string

	// MinImages is the fewest usable images for which Load
	// succeeds. Zero accepts an empty directory.
	MinImages int

	// MaxGos limits concurrent decoders.
	// If it is not positive, GOMAXPROCS is used.
	MaxGos int
}

// A Sequence is a chronologically ordered series of
// images of the same resolution.
type Sequence struct {
	Dir    string
	Names  []string
	Images []*Image
}

// Len returns the number of images.
func (s *Sequence) Len() int {
	return len(s.Images)
}

// Last returns the most recent image, or nil.
func (s *Sequence) Last() *Image {
	if len(s.Images) == 0 {
		return nil
	}
	return s.Images[len(s.Images)-1]
}

// Load reads every image in dir whose extension is
// accepted, in lexicographic file name order.
//
// A missing directory or too few images produce a
// *vegecast.MissingInputError.
// A matching file that fails to decode is an error.
func Load(dir string, opts LoadOptions) (*Sequence, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("load images: invalid size %dx%d", opts.Width, opts.Height)
	}
	names, err := listImages(dir, opts.Extensions)
	if err != nil {
		return nil, err
	}
	if len(names) < opts.MinImages {
		return nil, &vegecast.MissingInputError{
			Path:   dir,
			Reason: fmt.Sprintf("found %d images, need at least %d", len(names), opts.MinImages),
		}
	}

	images := make([]*Image, len(names))

	idxChan := make(chan int, len(names))
	for i := range names {
		idxChan <- i
	}
	close(idxChan)

	maxGos := opts.MaxGos
	if maxGos <= 0 {
		maxGos = runtime.GOMAXPROCS(0)
	}

	var wg sync.WaitGroup
	errChan := make(chan error, maxGos)
	for i := 0; i < maxGos; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxChan {
				img, err := DecodeFile(filepath.Join(dir, names[i]))
				if err != nil {
					errChan <- essentials.AddCtx("load images", err)
					return
				}
				images[i] = FromImage(img, opts.Width, opts.Height)
			}
		}()
	}
	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}

	return &Sequence{Dir: dir, Names: names, Images: images}, nil
}

// DecodeFile decodes a JPEG, PNG, TIFF, or BMP file.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func listImages(dir string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &vegecast.MissingInputError{Path: dir, Reason: "directory does not exist"}
		}
		return nil, &vegecast.MissingInputError{Path: dir, Reason: err.Error()}
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, accepted := range extensions {
			if ext == strings.ToLower(accepted) {
				names = append(names, entry.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
