package capture

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidOptions = errors.New("invalid capture options")

type WaitStrategy string

const (
	WaitNetworkIdle      WaitStrategy = "networkidle"
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitLoad             WaitStrategy = "load"
	WaitCommit           WaitStrategy = "commit"
	WaitSelector         WaitStrategy = "selector"
)

const (
	maxViewportWidth       = 7680
	maxViewportHeight      = 4320
	maxDelayMilliseconds   = 60000
	minTimeoutMilliseconds = 1000
	maxTimeoutMilliseconds = 300000
)

func (w WaitStrategy) Valid() bool {
	switch w {
	case WaitNetworkIdle, WaitDOMContentLoaded, WaitLoad, WaitCommit, WaitSelector:
		return true
	}
	return false
}

type BasicAuth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Options describes how one capture is performed. Treat a validated value as read-only.
type Options struct {
	FullPage       bool              `json:"full_page"`
	ViewportWidth  int               `json:"viewport_width"`
	ViewportHeight int               `json:"viewport_height"`
	WaitStrategy   WaitStrategy      `json:"wait_strategy"`
	WaitSelector   string            `json:"wait_selector,omitempty"`
	DelayMS        int               `json:"delay_ms"`
	TimeoutMS      int               `json:"timeout_ms"`
	AuthHeaders    map[string]string `json:"auth_headers,omitempty"`
	BasicAuth      *BasicAuth        `json:"basic_auth,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		FullPage:       false,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		WaitStrategy:   WaitNetworkIdle,
		DelayMS:        0,
		TimeoutMS:      30000,
	}
}

func (o Options) Validate() error {
	if o.ViewportWidth < 1 || o.ViewportWidth > maxViewportWidth {
		return fmt.Errorf("%w: viewport_width must be between 1 and %d, got %d", ErrInvalidOptions, maxViewportWidth, o.ViewportWidth)
	}
	if o.ViewportHeight < 1 || o.ViewportHeight > maxViewportHeight {
		return fmt.Errorf("%w: viewport_height must be between 1 and %d, got %d", ErrInvalidOptions, maxViewportHeight, o.ViewportHeight)
	}
	if !o.WaitStrategy.Valid() {
		return fmt.Errorf("%w: unknown wait_strategy %q", ErrInvalidOptions, o.WaitStrategy)
	}
	if o.WaitStrategy == WaitSelector && o.WaitSelector == "" {
		return fmt.Errorf("%w: wait_selector is required when wait_strategy is %q", ErrInvalidOptions, WaitSelector)
	}
	if o.DelayMS < 0 || o.DelayMS > maxDelayMilliseconds {
		return fmt.Errorf("%w: delay_ms must be between 0 and %d, got %d", ErrInvalidOptions, maxDelayMilliseconds, o.DelayMS)
	}
	if o.TimeoutMS < minTimeoutMilliseconds || o.TimeoutMS > maxTimeoutMilliseconds {
		return fmt.Errorf("%w: timeout_ms must be between %d and %d, got %d", ErrInvalidOptions, minTimeoutMilliseconds, maxTimeoutMilliseconds, o.TimeoutMS)
	}
	return nil
}

func (o Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

func (o Options) Delay() time.Duration {
	return time.Duration(o.DelayMS) * time.Millisecond
}
