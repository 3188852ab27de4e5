package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"screenshot-service/internal/capture"
	"screenshot-service/internal/store"
)

type fakeCapturer struct {
	mu    sync.Mutex
	urls  []string
	delay time.Duration
}

func (c *fakeCapturer) Capture(_ context.Context, url string, options capture.Options) *capture.Result {
	c.mu.Lock()
	c.urls = append(c.urls, url)
	c.mu.Unlock()
	time.Sleep(c.delay)

	if strings.Contains(url, "unreachable") {
		return capture.NewFailedResult(url, options, capture.CategoryCaptureError, "net::ERR_NAME_NOT_RESOLVED", 5*time.Millisecond)
	}
	status := http.StatusOK
	return &capture.Result{
		Success:        true,
		URL:            url,
		FilePath:       "screenshots/" + capture.Filename(url, time.Now()),
		Base64Data:     "iVBORw0KGgo=",
		HTTPStatusCode: &status,
		PageLoadTimeMS: 12,
		ViewportWidth:  options.ViewportWidth,
		ViewportHeight: options.ViewportHeight,
		FullPage:       options.FullPage,
		WaitStrategy:   options.WaitStrategy,
	}
}

type memoryScreenshots struct {
	mu          sync.Mutex
	screenshots []store.Screenshot
	saveErr     func(result *capture.Result) error
	lastFilter  store.Filter
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (m *memoryScreenshots) SaveScreenshot(_ context.Context, result *capture.Result) (*store.Screenshot, error) {
	if m.saveErr != nil {
		if err := m.saveErr(result); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	loadTime := result.PageLoadTimeMS
	s := store.Screenshot{
		ID:             int64(len(m.screenshots) + 1),
		URL:            result.URL,
		Timestamp:      time.Now().UTC(),
		ViewportWidth:  result.ViewportWidth,
		ViewportHeight: result.ViewportHeight,
		FilePath:       optional(result.FilePath),
		Base64Data:     optional(result.Base64Data),
		HTTPStatusCode: result.HTTPStatusCode,
		PageLoadTimeMS: &loadTime,
		FullPage:       result.FullPage,
		WaitStrategy:   optional(string(result.WaitStrategy)),
		ErrorMessage:   optional(result.ErrorMessage),
		Success:        result.Success,
	}
	m.screenshots = append(m.screenshots, s)
	return &s, nil
}

func (m *memoryScreenshots) GetScreenshot(_ context.Context, id int64) (*store.Screenshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.screenshots {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryScreenshots) ListScreenshots(_ context.Context, filter store.Filter) ([]store.Screenshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	list := []store.Screenshot{}
	for _, s := range m.screenshots {
		if filter.URL != "" && !strings.Contains(s.URL, filter.URL) {
			continue
		}
		if filter.Success != nil && s.Success != *filter.Success {
			continue
		}
		list = append(list, s)
	}
	return list, nil
}

func (m *memoryScreenshots) ListScreenshotsByURL(_ context.Context, url string, limit int) ([]store.Screenshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []store.Screenshot{}
	for i := len(m.screenshots) - 1; i >= 0 && len(list) < limit; i-- {
		if m.screenshots[i].URL == url {
			list = append(list, m.screenshots[i])
		}
	}
	return list, nil
}

func (m *memoryScreenshots) Statistics(_ context.Context) (*store.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var successful int64
	for _, s := range m.screenshots {
		if s.Success {
			successful++
		}
	}
	statistics := store.NewStatistics(int64(len(m.screenshots)), successful)
	return &statistics, nil
}

func (m *memoryScreenshots) DeleteScreenshot(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.screenshots {
		if s.ID == id {
			m.screenshots = append(m.screenshots[:i], m.screenshots[i+1:]...)
			if s.FilePath == nil {
				return "", nil
			}
			return *s.FilePath, nil
		}
	}
	return "", store.ErrNotFound
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func (m *memoryStorage) Put(_ context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return key, nil
}

func (m *memoryStorage) Get(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[url]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (m *memoryStorage) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, url)
	m.deleted = append(m.deleted, url)
	return nil
}

type memoryKeys struct {
	keys []store.APIKey
}

func (m *memoryKeys) Generate(_ context.Context, name string, description string, expiresAt *time.Time) (string, *store.APIKey, error) {
	key := store.APIKey{
		ID:        int64(len(m.keys) + 1),
		Name:      name,
		KeyHash:   "$2a$04$hash",
		KeyPrefix: "sk_test_abcdefgh",
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	if description != "" {
		key.Description = &description
	}
	m.keys = append(m.keys, key)
	return "sk_test_abcdefghplaintext", &key, nil
}

func (m *memoryKeys) List(_ context.Context, includeInactive bool) ([]store.APIKey, error) {
	var list []store.APIKey
	for _, k := range m.keys {
		if includeInactive || k.IsActive {
			list = append(list, k)
		}
	}
	return list, nil
}

func (m *memoryKeys) set(id int64, active bool) error {
	for i := range m.keys {
		if m.keys[i].ID == id {
			m.keys[i].IsActive = active
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memoryKeys) Revoke(_ context.Context, id int64) error {
	return m.set(id, false)
}

func (m *memoryKeys) Reactivate(_ context.Context, id int64) error {
	return m.set(id, true)
}
