package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
)

type fakeRepository struct {
	mu      sync.Mutex
	cutoffs []time.Time
	paths   []string
	err     error
}

func (f *fakeRepository) DeleteScreenshotsBefore(_ context.Context, t time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, t)
	return f.paths, f.err
}

type fakeStorage struct {
	mu      sync.Mutex
	deleted []string
	failOn  string
}

func (f *fakeStorage) Put(context.Context, string, []byte) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeStorage) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStorage) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url == f.failOn {
		return errors.New("access denied")
	}
	f.deleted = append(f.deleted, url)
	return nil
}

func TestRun(t *testing.T) {
	repository := &fakeRepository{paths: []string{"a.png", "b.png", "c.png"}}
	s := &fakeStorage{failOn: "b.png"}
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	j := NewJob(repository, s, 30*24*time.Hour, logr.Discard())
	j.now = func() time.Time { return now }

	n, err := j.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 deletions, got %d", n)
	}
	if diff := cmp.Diff([]time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}, repository.cutoffs); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.png", "c.png"}, s.deleted); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestRunRepositoryFailure(t *testing.T) {
	repository := &fakeRepository{err: errors.New("database unavailable")}
	s := &fakeStorage{}

	if _, err := NewJob(repository, s, time.Hour, logr.Discard()).Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(s.deleted) != 0 {
		t.Errorf("expected no artifact deletions, got %v", s.deleted)
	}
}

func TestStart(t *testing.T) {
	j := NewJob(&fakeRepository{}, &fakeStorage{}, time.Hour, logr.Discard())

	if _, err := j.Start(context.Background(), "every minute"); err == nil {
		t.Errorf("expected error for invalid schedule")
	}

	stop, err := j.Start(context.Background(), "0 3 * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stop()
}
