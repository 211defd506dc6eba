package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/utils/logging"
)

// maxImageBytes bounds uploaded image size (8 MiB)
const maxImageBytes = 8 << 20

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			logging.From(req.Context()).Error("request failed",
				"method", req.Method, "path", req.URL.Path, "error", err)

			switch {
			case errors.Is(err, model.ErrMalformedResponse):
				http.Error(w, "inference returned a malformed response", http.StatusBadGateway)
			case errors.Is(err, model.ErrInferenceUnavailable):
				http.Error(w, "inference endpoint unavailable", http.StatusBadGateway)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/history
func (s *Server) handleHistoryList(w http.ResponseWriter, req *http.Request) error {
	results, err := s.repo.Load(req.Context())
	if err != nil {
		return err
	}
	if results == nil {
		results = []*model.AnalysisResult{}
	}

	return writeJSON(w, http.StatusOK, results)
}

// DELETE /api/history
func (s *Server) handleHistoryClear(w http.ResponseWriter, req *http.Request) error {
	if err := s.repo.Clear(req.Context()); err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// POST /api/analyze
//
// Accepts a JPEG image either as a multipart "image" field or as the raw
// request body. Optional lat/lng query parameters override the server
// default location. On success the result is appended to the history and
// returned; on failure the history is left untouched.
func (s *Server) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	if !s.analyzing.CompareAndSwap(false, true) {
		http.Error(w, "analysis already in progress", http.StatusConflict)
		return nil
	}
	defer s.analyzing.Store(false)

	image, err := readImage(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	loc, err := requestLocation(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}
	if loc == nil {
		loc = s.location
	}

	result, err := s.analyzer.Analyze(req.Context(), image, loc)
	if err != nil {
		return err
	}

	if _, err := s.repo.Append(req.Context(), result); err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, result)
}

func readImage(req *http.Request) ([]byte, error) {
	req.Body = http.MaxBytesReader(nil, req.Body, maxImageBytes)

	if mediaType := req.Header.Get("Content-Type"); len(mediaType) >= 19 && mediaType[:19] == "multipart/form-data" {
		file, _, err := req.FormFile("image")
		if err != nil {
			return nil, errors.New("multipart request requires an image field")
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	image, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, errors.New("request body is empty")
	}

	return image, nil
}

func requestLocation(req *http.Request) (*model.Coordinates, error) {
	latStr := req.URL.Query().Get("lat")
	lngStr := req.URL.Query().Get("lng")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, errors.New("invalid lat parameter")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, errors.New("invalid lng parameter")
	}

	return &model.Coordinates{Latitude: lat, Longitude: lng}, nil
}
