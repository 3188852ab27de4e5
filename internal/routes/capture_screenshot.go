package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"screenshot-service/internal/capture"
	"screenshot-service/internal/store"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

const MaxBatchSize = 100

type ScreenshotRequest struct {
	URL     string          `json:"url"`
	Options capture.Options `json:"options"`
}

type BatchScreenshotRequest struct {
	URLs    []string        `json:"urls"`
	Options capture.Options `json:"options"`
}

type BatchScreenshotResponse struct {
	Results    []store.Screenshot `json:"results"`
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
}

// normalizeURL assumes https when the caller left the scheme out.
func normalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://" + url
}

func decodeOptions(w http.ResponseWriter, r *http.Request, v any, options *capture.Options) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid request format: %s", err))
		return false
	}
	if err := options.Validate(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func CaptureScreenshot(capturer capture.Capturer, screenshots ScreenshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		request := ScreenshotRequest{Options: capture.DefaultOptions()}
		if !decodeOptions(w, r, &request, &request.Options) {
			return
		}
		if strings.TrimSpace(request.URL) == "" {
			writeError(w, r, http.StatusUnprocessableEntity, "url must not be empty")
			return
		}

		result := capturer.Capture(r.Context(), normalizeURL(request.URL), request.Options)

		screenshot, err := screenshots.SaveScreenshot(r.Context(), result)
		if err != nil {
			logr.FromContextOrDiscard(r.Context()).Error(err, "failed to save screenshot", "url", result.URL)
			writeError(w, r, http.StatusInternalServerError, fmt.Sprintf("Failed to capture screenshot: %s", err))
			return
		}

		writeJSON(w, r, http.StatusOK, screenshot)
	}
}

// CaptureBatch captures every URL with at most concurrency captures in
// flight. Results keep the order of the request.
func CaptureBatch(capturer capture.Capturer, screenshots ScreenshotRepository, concurrency int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		request := BatchScreenshotRequest{Options: capture.DefaultOptions()}
		if !decodeOptions(w, r, &request, &request.Options) {
			return
		}
		if len(request.URLs) == 0 || len(request.URLs) > MaxBatchSize {
			writeError(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("urls must contain between 1 and %d items", MaxBatchSize))
			return
		}
		for _, url := range request.URLs {
			if strings.TrimSpace(url) == "" {
				writeError(w, r, http.StatusUnprocessableEntity, "urls must not contain empty items")
				return
			}
		}

		logger := logr.FromContextOrDiscard(r.Context())
		results := make([]store.Screenshot, len(request.URLs))

		var eg errgroup.Group
		eg.SetLimit(max(concurrency, 1))
		for i, url := range request.URLs {
			eg.Go(func() error {
				url := normalizeURL(url)
				result := capturer.Capture(r.Context(), url, request.Options)

				screenshot, err := screenshots.SaveScreenshot(r.Context(), result)
				if err != nil {
					logger.Error(err, "failed to save screenshot", "url", url)
					failed := capture.NewFailedResult(url, request.Options, capture.CategoryCaptureError,
						fmt.Sprintf("failed to persist result: %s", err), time.Duration(result.PageLoadTimeMS*float64(time.Millisecond)))
					if screenshot, err = screenshots.SaveScreenshot(r.Context(), failed); err != nil {
						screenshot = unsaved(failed)
					}
				}
				results[i] = *screenshot
				return nil
			})
		}
		_ = eg.Wait()

		response := BatchScreenshotResponse{
			Results: results,
			Total:   len(results),
		}
		for _, result := range results {
			if result.Success {
				response.Successful++
			}
		}
		response.Failed = response.Total - response.Successful

		writeJSON(w, r, http.StatusOK, response)
	}
}

// unsaved represents a result that could not be persisted. Its ID is zero.
func unsaved(result *capture.Result) *store.Screenshot {
	loadTime := result.PageLoadTimeMS
	strategy := string(result.WaitStrategy)
	message := result.ErrorMessage
	return &store.Screenshot{
		URL:            result.URL,
		Timestamp:      time.Now().UTC(),
		ViewportWidth:  result.ViewportWidth,
		ViewportHeight: result.ViewportHeight,
		PageLoadTimeMS: &loadTime,
		FullPage:       result.FullPage,
		WaitStrategy:   &strategy,
		ErrorMessage:   &message,
		Success:        false,
	}
}
