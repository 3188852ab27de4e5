package routes

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"screenshot-service/internal/report"
	"screenshot-service/internal/storage"
	"screenshot-service/internal/store"

	"github.com/go-logr/logr"
)

type ScreenshotListResponse struct {
	Screenshots []store.Screenshot `json:"screenshots"`
	// Total is the size of this page, not of the whole result set.
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func intQuery(query url.Values, key string, defaultValue int, minimum int, maximum int) (int, error) {
	v := query.Get(key)
	if v == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	if i < minimum || i > maximum {
		return 0, fmt.Errorf("%s must be between %d and %d", key, minimum, maximum)
	}
	return i, nil
}

func timeQuery(query url.Values, key string) (*time.Time, error) {
	v := query.Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp", key)
	}
	return &t, nil
}

func parseFilter(r *http.Request) (store.Filter, error) {
	query := r.URL.Query()

	limit, err := intQuery(query, "limit", 100, 1, 1000)
	if err != nil {
		return store.Filter{}, err
	}
	offset, err := intQuery(query, "offset", 0, 0, math.MaxInt32)
	if err != nil {
		return store.Filter{}, err
	}

	filter := store.Filter{
		URL:    query.Get("url"),
		Limit:  limit,
		Offset: offset,
	}

	if v := query.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return store.Filter{}, errors.New("success must be a boolean")
		}
		filter.Success = &success
	}
	if filter.Start, err = timeQuery(query, "start_date"); err != nil {
		return store.Filter{}, err
	}
	if filter.End, err = timeQuery(query, "end_date"); err != nil {
		return store.Filter{}, err
	}
	return filter, nil
}

func ListScreenshots(screenshots ScreenshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}

		list, err := screenshots.ListScreenshots(r.Context(), filter)
		if err != nil {
			logr.FromContextOrDiscard(r.Context()).Error(err, "failed to list screenshots")
			writeError(w, r, http.StatusInternalServerError, "Failed to list screenshots")
			return
		}

		writeJSON(w, r, http.StatusOK, ScreenshotListResponse{
			Screenshots: list,
			Total:       len(list),
			Limit:       filter.Limit,
			Offset:      filter.Offset,
		})
	}
}

func GetScreenshot(screenshots ScreenshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		screenshot, err := screenshots.GetScreenshot(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "Screenshot not found")
				return
			}
			logr.FromContextOrDiscard(r.Context()).Error(err, "failed to get screenshot", "id", id)
			writeError(w, r, http.StatusInternalServerError, "Failed to get screenshot")
			return
		}

		writeJSON(w, r, http.StatusOK, screenshot)
	}
}

// GetScreenshotImage serves the PNG of a successful capture, preferring the
// copy kept in the record over the storage backend.
func GetScreenshotImage(screenshots ScreenshotRepository, storageClient storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		logger := logr.FromContextOrDiscard(r.Context())

		screenshot, err := screenshots.GetScreenshot(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "Screenshot not found")
				return
			}
			logger.Error(err, "failed to get screenshot", "id", id)
			writeError(w, r, http.StatusInternalServerError, "Failed to get screenshot")
			return
		}

		var data []byte
		switch {
		case screenshot.Base64Data != nil:
			if data, err = base64.StdEncoding.DecodeString(*screenshot.Base64Data); err != nil {
				logger.Error(err, "failed to decode screenshot", "id", id)
				writeError(w, r, http.StatusInternalServerError, "Failed to decode screenshot")
				return
			}
		case screenshot.FilePath != nil:
			if data, err = storageClient.Get(r.Context(), *screenshot.FilePath); err != nil {
				logger.Error(err, "failed to read screenshot", "id", id, "path", *screenshot.FilePath)
				writeError(w, r, http.StatusNotFound, "Screenshot image not found")
				return
			}
		default:
			writeError(w, r, http.StatusNotFound, "Screenshot has no image")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// ListScreenshotsByURL accepts the target either percent-encoded in one
// segment or raw, in which case the mux has collapsed "//" after the scheme.
func ListScreenshotsByURL(screenshots ScreenshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intQuery(r.URL.Query(), "limit", 10, 1, 100)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}

		target := r.PathValue("url")
		for _, scheme := range []string{"http:/", "https:/"} {
			if strings.HasPrefix(target, scheme) && !strings.HasPrefix(target, scheme+"/") {
				target = scheme + "/" + strings.TrimPrefix(target, scheme)
			}
		}

		list, err := screenshots.ListScreenshotsByURL(r.Context(), target, limit)
		if err != nil {
			logr.FromContextOrDiscard(r.Context()).Error(err, "failed to list screenshots", "url", target)
			writeError(w, r, http.StatusInternalServerError, "Failed to list screenshots")
			return
		}

		writeJSON(w, r, http.StatusOK, ScreenshotListResponse{
			Screenshots: list,
			Total:       len(list),
			Limit:       limit,
			Offset:      0,
		})
	}
}

func GetStatistics(screenshots ScreenshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statistics, err := screenshots.Statistics(r.Context())
		if err != nil {
			logr.FromContextOrDiscard(r.Context()).Error(err, "failed to compute statistics")
			writeError(w, r, http.StatusInternalServerError, "Failed to compute statistics")
			return
		}

		writeJSON(w, r, http.StatusOK, statistics)
	}
}

// DeleteScreenshot removes the record first, then its artifact. A failure to
// remove the artifact is logged and does not fail the request.
func DeleteScreenshot(screenshots ScreenshotRepository, storageClient storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		logger := logr.FromContextOrDiscard(r.Context())

		path, err := screenshots.DeleteScreenshot(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "Screenshot not found")
				return
			}
			logger.Error(err, "failed to delete screenshot", "id", id)
			writeError(w, r, http.StatusInternalServerError, "Failed to delete screenshot")
			return
		}

		if path != "" {
			if err := storageClient.Delete(r.Context(), path); err != nil {
				logger.Error(err, "failed to delete screenshot artifact", "id", id, "path", path)
			}
		}

		writeJSON(w, r, http.StatusOK, message{Message: "Screenshot deleted successfully"})
	}
}

func HTMLReport(screenshots ScreenshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logger := logr.FromContextOrDiscard(r.Context())

		list, err := screenshots.ListScreenshots(r.Context(), filter)
		if err != nil {
			logger.Error(err, "failed to list screenshots")
			writeError(w, r, http.StatusInternalServerError, "Failed to list screenshots")
			return
		}

		var successful int64
		for _, s := range list {
			if s.Success {
				successful++
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := report.Render(w, report.NewContext(list, filter, store.NewStatistics(int64(len(list)), successful), time.Now())); err != nil {
			logger.Error(err, "failed to render report")
		}
	}
}
