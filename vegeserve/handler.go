// Package vegeserve exposes a trained autoencoder over
// HTTP.
package vegeserve

import (
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/mares1402/vegecast"
	"github.com/mares1402/vegecast/vegeae"
	"github.com/mares1402/vegecast/vegeimg"
	"github.com/mares1402/vegecast/vegelatent"
	"github.com/mares1402/vegecast/vegerender"
)

// MaxUploadSize bounds the multipart form of an upload.
const MaxUploadSize = 10 << 20

// Paths locates the artifacts of the last forecast run.
type Paths struct {
	Forecast   string
	Comparison string
}

// A Handler serves predictions from one model.
type Handler struct {
	factor float64
	paths  Paths

	// Layers cache their mappers, so predictions run one
	// at a time.
	lock     sync.Mutex
	ae       *vegeae.Autoencoder
	prevCode *vegelatent.Latent
}

// NewHandler creates a Handler which treats every upload
// as the image following prev and projects one step
// further with factor k.
func NewHandler(ae *vegeae.Autoencoder, prev *vegeimg.Image, k float64,
	paths Paths) (*Handler, error) {
	prevCode, err := ae.Encode(prev)
	if err != nil {
		return nil, err
	}
	return &Handler{
		factor:   k,
		paths:    paths,
		ae:       ae,
		prevCode: prevCode,
	}, nil
}

// Routes returns a mux with every endpoint registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", enableCORS(h.Health))
	mux.HandleFunc("/predict/image", enableCORS(h.PredictFromImage))
	mux.HandleFunc("/forecast/latest", enableCORS(h.ForecastLatest))
	return mux
}

// Health reports that the server is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "healthy"}); err != nil {
		slog.Error("Unable to write health response", "err", err)
	}
}

// PredictFromImage forecasts from a multipart upload in
// the "image" field and responds with a PNG.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name",
			http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG, TIFF, BMP",
			http.StatusBadRequest)
		return
	}
	slog.Info("Received image", "file", header.Filename, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	data, err := h.predict(img)
	if err != nil {
		slog.Error("Prediction failed", "err", err)
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write prediction", "err", err)
	}
}

func (h *Handler) predict(img image.Image) ([]byte, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	shape := h.ae.InputShape
	latest := vegeimg.FromImage(img, shape.Width, shape.Height)
	code, err := h.ae.Encode(latest)
	if err != nil {
		return nil, err
	}
	future, err := vegelatent.Extrapolate([]*vegelatent.Latent{h.prevCode, code}, h.factor)
	if err != nil {
		return nil, err
	}
	forecast, err := h.ae.Decode(future)
	if err != nil {
		return nil, err
	}
	return vegerender.EncodeImage(forecast, "forecast.png")
}

// ForecastLatest serves the comparison figure of the last
// forecast run, or the forecast image if there is no
// figure.
func (h *Handler) ForecastLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	for _, path := range []string{h.paths.Comparison, h.paths.Forecast} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Error("Unable to stat artifact", "path", path, "err", err)
			}
			continue
		}
		http.ServeFile(w, r, path)
		return
	}
	missing := &vegecast.MissingInputError{
		Path:   h.paths.Forecast,
		Reason: "no forecast has been generated yet",
	}
	http.Error(w, missing.Error(), http.StatusNotFound)
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}
