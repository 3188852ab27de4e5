package routes

import (
	"context"
	"net/http"
	"time"

	"screenshot-service/internal/capture"
	"screenshot-service/internal/store"
)

const Version = "1.0.0"

// ScreenshotRepository is the part of store.Store the screenshot routes use.
type ScreenshotRepository interface {
	SaveScreenshot(ctx context.Context, result *capture.Result) (*store.Screenshot, error)
	GetScreenshot(ctx context.Context, id int64) (*store.Screenshot, error)
	ListScreenshots(ctx context.Context, filter store.Filter) ([]store.Screenshot, error)
	ListScreenshotsByURL(ctx context.Context, url string, limit int) ([]store.Screenshot, error)
	Statistics(ctx context.Context) (*store.Statistics, error)
	DeleteScreenshot(ctx context.Context, id int64) (string, error)
}

// KeyManager is the part of apikey.Service the key management routes use.
type KeyManager interface {
	Generate(ctx context.Context, name string, description string, expiresAt *time.Time) (string, *store.APIKey, error)
	List(ctx context.Context, includeInactive bool) ([]store.APIKey, error)
	Revoke(ctx context.Context, id int64) error
	Reactivate(ctx context.Context, id int64) error
}

func Root() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"message": "Screenshot Validation API",
			"version": Version,
			"docs":    "/api/v1",
		})
	}
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func Index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"message": "Screenshot Validation API",
			"version": Version,
			"endpoints": map[string]string{
				"capture_single":      "POST /api/v1/screenshot",
				"capture_batch":       "POST /api/v1/screenshot/batch",
				"list_screenshots":    "GET /api/v1/screenshots",
				"get_screenshot":      "GET /api/v1/screenshots/{id}",
				"get_screenshot_png":  "GET /api/v1/images/{id}",
				"screenshots_for_url": "GET /api/v1/screenshots/url/{url}",
				"get_statistics":      "GET /api/v1/statistics",
				"html_report":         "GET /api/v1/reports/html",
				"delete_screenshot":   "DELETE /api/v1/screenshots/{id}",
				"api_keys":            "GET|POST /api/v1/api-keys",
			},
		})
	}
}
