package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrBrowserUnavailable = errors.New("browser unavailable")
	ErrTimeout            = errors.New("timeout")
)

// Category is the failure classification token carried in Result.ErrorMessage.
type Category string

const (
	CategoryBrowserUnavailable Category = "BrowserUnavailable"
	CategoryTimeout            Category = "Timeout"
	CategoryCaptureError       Category = "CaptureError"
)

// Result is the outcome of a single capture attempt. Build it with
// NewFailedResult or let a Capturer produce it; exactly one of
// (FilePath, Base64Data) or ErrorMessage is populated.
type Result struct {
	Success        bool         `json:"success"`
	URL            string       `json:"url"`
	FilePath       string       `json:"file_path,omitempty"`
	Base64Data     string       `json:"base64_data,omitempty"`
	HTTPStatusCode *int         `json:"http_status_code,omitempty"`
	PageLoadTimeMS float64      `json:"page_load_time_ms"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	ViewportWidth  int          `json:"viewport_width"`
	ViewportHeight int          `json:"viewport_height"`
	FullPage       bool         `json:"full_page"`
	WaitStrategy   WaitStrategy `json:"wait_strategy"`
}

func succeeded(url string, o Options, filePath string, encoded string, status *int, elapsed time.Duration) *Result {
	return &Result{
		Success:        true,
		URL:            url,
		FilePath:       filePath,
		Base64Data:     encoded,
		HTTPStatusCode: status,
		PageLoadTimeMS: milliseconds(elapsed),
		ViewportWidth:  o.ViewportWidth,
		ViewportHeight: o.ViewportHeight,
		FullPage:       o.FullPage,
		WaitStrategy:   o.WaitStrategy,
	}
}

// NewFailedResult returns a failed Result whose message is prefixed with the category token.
func NewFailedResult(url string, o Options, category Category, message string, elapsed time.Duration) *Result {
	if message == "" {
		message = "unknown error"
	}
	return &Result{
		Success:        false,
		URL:            url,
		PageLoadTimeMS: milliseconds(elapsed),
		ErrorMessage:   fmt.Sprintf("%s: %s", category, message),
		ViewportWidth:  o.ViewportWidth,
		ViewportHeight: o.ViewportHeight,
		FullPage:       o.FullPage,
		WaitStrategy:   o.WaitStrategy,
	}
}

func milliseconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

// Capturer never returns an error: every failure is reported as a failed Result.
type Capturer interface {
	Capture(ctx context.Context, url string, options Options) *Result
}
