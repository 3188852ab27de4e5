package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"screenshot-service/internal/capture"

	"github.com/jackc/pgx/v5"
	"golang.org/x/xerrors"
)

// Screenshot is a persisted capture.Result.
type Screenshot struct {
	ID             int64     `json:"id"`
	URL            string    `json:"url"`
	Timestamp      time.Time `json:"timestamp"`
	ViewportWidth  int       `json:"viewport_width"`
	ViewportHeight int       `json:"viewport_height"`
	FilePath       *string   `json:"file_path"`
	Base64Data     *string   `json:"base64_data"`
	HTTPStatusCode *int      `json:"http_status_code"`
	PageLoadTimeMS *float64  `json:"page_load_time_ms"`
	FullPage       bool      `json:"full_page"`
	WaitStrategy   *string   `json:"wait_strategy"`
	ErrorMessage   *string   `json:"error_message"`
	Success        bool      `json:"success"`
}

type Filter struct {
	// URL matches records whose url contains it.
	URL     string
	Success *bool
	Start   *time.Time
	End     *time.Time
	Limit   int
	Offset  int
}

type Statistics struct {
	Total       int64   `json:"total"`
	Successful  int64   `json:"successful"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

func NewStatistics(total int64, successful int64) Statistics {
	s := Statistics{
		Total:      total,
		Successful: successful,
		Failed:     total - successful,
	}
	if total > 0 {
		s.SuccessRate = float64(successful) / float64(total) * 100
	}
	return s
}

const screenshotColumns = `id, url, timestamp, viewport_width, viewport_height, file_path, base64_data, http_status_code, page_load_time_ms, full_page, wait_strategy, error_message, success`

func (s *Store) SaveScreenshot(ctx context.Context, result *capture.Result) (*Screenshot, error) {
	loadTime := result.PageLoadTimeMS
	screenshot := &Screenshot{
		URL:            result.URL,
		Timestamp:      time.Now().UTC(),
		ViewportWidth:  result.ViewportWidth,
		ViewportHeight: result.ViewportHeight,
		FilePath:       nullString(result.FilePath),
		Base64Data:     nullString(result.Base64Data),
		HTTPStatusCode: result.HTTPStatusCode,
		PageLoadTimeMS: &loadTime,
		FullPage:       result.FullPage,
		WaitStrategy:   nullString(string(result.WaitStrategy)),
		ErrorMessage:   nullString(result.ErrorMessage),
		Success:        result.Success,
	}

	if err := s.pool.QueryRow(ctx, `
        INSERT INTO screenshots (url, timestamp, viewport_width, viewport_height, file_path, base64_data, http_status_code, page_load_time_ms, full_page, wait_strategy, error_message, success)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id`,
		screenshot.URL, screenshot.Timestamp, screenshot.ViewportWidth, screenshot.ViewportHeight,
		screenshot.FilePath, screenshot.Base64Data, screenshot.HTTPStatusCode, screenshot.PageLoadTimeMS,
		screenshot.FullPage, screenshot.WaitStrategy, screenshot.ErrorMessage, screenshot.Success,
	).Scan(&screenshot.ID); err != nil {
		return nil, xerrors.Errorf("failed to insert screenshot: %w", err)
	}

	return screenshot, nil
}

func (s *Store) GetScreenshot(ctx context.Context, id int64) (*Screenshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+screenshotColumns+` FROM screenshots WHERE id = $1`, id)
	if err != nil {
		return nil, xerrors.Errorf("failed to query screenshot: %w", err)
	}
	screenshots, err := scanScreenshots(rows)
	if err != nil {
		return nil, err
	}
	if len(screenshots) == 0 {
		return nil, ErrNotFound
	}
	return &screenshots[0], nil
}

// ListScreenshotsByURL returns the most recent captures of exactly url.
func (s *Store) ListScreenshotsByURL(ctx context.Context, url string, limit int) ([]Screenshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+screenshotColumns+` FROM screenshots WHERE url = $1 ORDER BY timestamp DESC LIMIT $2`, url, limit)
	if err != nil {
		return nil, xerrors.Errorf("failed to query screenshots by url: %w", err)
	}
	return scanScreenshots(rows)
}

func (s *Store) ListScreenshots(ctx context.Context, filter Filter) ([]Screenshot, error) {
	var conditions []string
	var args []any
	add := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.URL != "" {
		add("url LIKE '%%' || $%d || '%%'", escapeLike(filter.URL))
	}
	if filter.Success != nil {
		add("success = $%d", *filter.Success)
	}
	if filter.Start != nil {
		add("timestamp >= $%d", filter.Start.UTC())
	}
	if filter.End != nil {
		add("timestamp <= $%d", filter.End.UTC())
	}

	query := `SELECT ` + screenshotColumns + ` FROM screenshots`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Errorf("failed to query screenshots: %w", err)
	}
	return scanScreenshots(rows)
}

func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	var total, successful int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*), count(*) FILTER (WHERE success) FROM screenshots`).Scan(&total, &successful); err != nil {
		return nil, xerrors.Errorf("failed to count screenshots: %w", err)
	}
	statistics := NewStatistics(total, successful)
	return &statistics, nil
}

// DeleteScreenshot removes the record and returns its artifact path, empty when it had none.
func (s *Store) DeleteScreenshot(ctx context.Context, id int64) (string, error) {
	var filePath *string
	if err := s.pool.QueryRow(ctx, `DELETE FROM screenshots WHERE id = $1 RETURNING file_path`, id).Scan(&filePath); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", xerrors.Errorf("failed to delete screenshot: %w", err)
	}
	if filePath == nil {
		return "", nil
	}
	return *filePath, nil
}

// DeleteScreenshotsBefore removes every record captured before t and returns
// the artifact paths of the removed records.
func (s *Store) DeleteScreenshotsBefore(ctx context.Context, t time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `DELETE FROM screenshots WHERE timestamp < $1 RETURNING file_path`, t.UTC())
	if err != nil {
		return nil, xerrors.Errorf("failed to delete screenshots: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var filePath *string
		if err := rows.Scan(&filePath); err != nil {
			return nil, xerrors.Errorf("failed to scan file path: %w", err)
		}
		if filePath != nil {
			paths = append(paths, *filePath)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Errorf("failed to delete screenshots: %w", err)
	}
	return paths, nil
}

func scanScreenshots(rows pgx.Rows) ([]Screenshot, error) {
	defer rows.Close()

	screenshots := []Screenshot{}
	for rows.Next() {
		var r Screenshot
		if err := rows.Scan(
			&r.ID, &r.URL, &r.Timestamp, &r.ViewportWidth, &r.ViewportHeight,
			&r.FilePath, &r.Base64Data, &r.HTTPStatusCode, &r.PageLoadTimeMS,
			&r.FullPage, &r.WaitStrategy, &r.ErrorMessage, &r.Success,
		); err != nil {
			return nil, xerrors.Errorf("failed to scan screenshot: %w", err)
		}
		screenshots = append(screenshots, r)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Errorf("failed to read screenshots: %w", err)
	}
	return screenshots, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
