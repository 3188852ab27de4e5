package retry_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"testing"

	"screenshot-service/internal/retry"

	"github.com/google/go-cmp/cmp"
)

type temporaryError struct{}

func (temporaryError) Error() string   { return "temporary" }
func (temporaryError) Temporary() bool { return true }

func TestParseOn(t *testing.T) {
	for _, s := range []string{"", "5xx", "gateway-error, connect-failure", "retriable-4xx,429,503"} {
		if _, err := retry.ParseOn(s); err != nil {
			t.Errorf("ParseOn(%q): unexpected error: %v", s, err)
		}
	}
	for _, s := range []string{"sometimes", "42", "5xx,abc"} {
		if _, err := retry.ParseOn(s); err == nil {
			t.Errorf("ParseOn(%q): expected error", s)
		}
	}
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		on   string
		code int
		want bool
	}{
		{"5xx", http.StatusInternalServerError, true},
		{"5xx", http.StatusBadRequest, false},
		{"gateway-error", http.StatusBadGateway, true},
		{"gateway-error", http.StatusGatewayTimeout, true},
		{"gateway-error", http.StatusInternalServerError, false},
		{"retriable-4xx", http.StatusConflict, true},
		{"retriable-4xx", http.StatusNotFound, false},
		{"429", http.StatusTooManyRequests, true},
		{retry.DefaultRetryOn, http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.on, tt.code), func(t *testing.T) {
			on, err := retry.ParseOn(tt.on)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, on.CheckResponse(&http.Response{StatusCode: tt.code})); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckError(t *testing.T) {
	tests := []struct {
		on   string
		err  error
		want bool
	}{
		{"connect-failure", temporaryError{}, true},
		{"connect-failure", io.EOF, true},
		{"connect-failure", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"5xx", syscall.ECONNRESET, true},
		{"connect-failure", errors.New("certificate signed by unknown authority"), false},
		{"gateway-error", temporaryError{}, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.on, tt.err), func(t *testing.T) {
			on, err := retry.ParseOn(tt.on)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, on.CheckError(tt.err)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}
