package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"screenshot-service/internal/storage"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

type state int

const (
	stateStarting state = iota
	stateContextOpened
	stateNavigated
	stateWaited
	stateDelayed
	stateCaptured
	stateEncoded
	stateDone
)

func (s state) String() string {
	switch s {
	case stateStarting:
		return "Starting"
	case stateContextOpened:
		return "ContextOpened"
	case stateNavigated:
		return "Navigated"
	case stateWaited:
		return "Waited"
	case stateDelayed:
		return "Delayed"
	case stateCaptured:
		return "Captured"
	case stateEncoded:
		return "Encoded"
	case stateDone:
		return "Done"
	}
	return "Unknown"
}

type sessionCapturer struct {
	session  *Session
	storage  storage.Storage
	log      logr.Logger
	tracer   trace.Tracer
	duration metric.Float64Histogram
	now      func() time.Time
}

// NewCapturer returns a Capturer that opens one isolated context per capture on
// session and writes artifacts to s.
func NewCapturer(session *Session, s storage.Storage, logger logr.Logger) (Capturer, error) {
	duration, err := otel.Meter("screenshot-service/capture").Float64Histogram(
		"capture_duration_milli_seconds",
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create histogram: %w", err)
	}

	return &sessionCapturer{
		session:  session,
		storage:  s,
		log:      logger,
		tracer:   otel.Tracer("screenshot-service/capture"),
		duration: duration,
		now:      time.Now,
	}, nil
}

func (c *sessionCapturer) Capture(ctx context.Context, url string, options Options) *Result {
	// once started, a capture always runs to a terminal outcome
	ctx = context.WithoutCancel(ctx)

	ctx, span := c.tracer.Start(ctx, "Capture", trace.WithAttributes(
		attribute.String("url", url),
		attribute.String("wait_strategy", string(options.WaitStrategy)),
		attribute.Bool("full_page", options.FullPage),
	))
	defer span.End()

	start := c.now()
	result := c.capture(ctx, url, options, start)

	outcome := "success"
	if !result.Success {
		outcome = "failure"
		span.SetStatus(codes.Error, result.ErrorMessage)
	}
	if result.HTTPStatusCode != nil {
		span.SetAttributes(attribute.Int("http_status_code", *result.HTTPStatusCode))
	}
	c.duration.Record(ctx, result.PageLoadTimeMS, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("wait_strategy", string(options.WaitStrategy)),
	))
	return result
}

func (c *sessionCapturer) capture(ctx context.Context, url string, options Options, start time.Time) *Result {
	log := c.log.WithValues("url", url)
	current := stateStarting

	fail := func(err error) *Result {
		elapsed := c.now().Sub(start)
		category := CategoryCaptureError
		message := err.Error()
		switch {
		case errors.Is(err, ErrBrowserUnavailable):
			category = CategoryBrowserUnavailable
			message = strings.TrimPrefix(message, ErrBrowserUnavailable.Error()+": ")
		case errors.Is(err, ErrTimeout):
			category = CategoryTimeout
			message = strings.TrimPrefix(message, ErrTimeout.Error()+": ")
		}
		log.Error(err, "capture failed", "state", current.String(), "category", string(category))
		return NewFailedResult(url, options, category, message, elapsed)
	}

	if err := options.Validate(); err != nil {
		return fail(err)
	}

	if err := c.session.Initialize(ctx); err != nil {
		return fail(err)
	}

	contextOptions := ContextOptions{
		ExtraHTTPHeaders: options.AuthHeaders,
		HTTPCredentials:  options.BasicAuth,
	}
	browsingContext, err := c.session.NewIsolatedContext(options.ViewportWidth, options.ViewportHeight, contextOptions)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := browsingContext.Close(); err != nil {
			log.Error(err, "failed to close browser context")
		}
	}()

	page, err := browsingContext.NewPage()
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Error(err, "failed to close page")
		}
	}()
	current = stateContextOpened

	status, err := page.Goto(url, options.Timeout())
	if err != nil {
		return fail(err)
	}
	current = stateNavigated

	if err := waitFor(page, options.WaitStrategy, options.WaitSelector, options.Timeout()); err != nil {
		return fail(err)
	}
	current = stateWaited

	if delay := options.Delay(); delay > 0 {
		time.Sleep(delay)
	}
	current = stateDelayed

	screenshot, err := page.Screenshot(options.FullPage)
	if err != nil {
		return fail(err)
	}
	filePath, err := c.storage.Put(ctx, Filename(url, c.now()), screenshot)
	if err != nil {
		return fail(xerrors.Errorf("failed to store screenshot: %w", err))
	}
	current = stateCaptured

	stored, err := c.storage.Get(ctx, filePath)
	if err != nil {
		return fail(xerrors.Errorf("failed to read back screenshot: %w", err))
	}
	encoded := base64.StdEncoding.EncodeToString(stored)
	current = stateEncoded

	elapsed := c.now().Sub(start)
	current = stateDone
	log.V(1).Info("capture completed", "state", current.String(), "path", filePath, "elapsed", elapsed)

	return succeeded(url, options, filePath, encoded, status, elapsed)
}
