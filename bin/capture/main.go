package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"screenshot-service/internal/capture"
	"screenshot-service/internal/env"
	"screenshot-service/internal/logging"
	"screenshot-service/internal/retry"
	"screenshot-service/internal/storage"

	"github.com/go-logr/logr"
	"golang.org/x/xerrors"
)

type headers []string

func (h *headers) String() string {
	return strings.Join(*h, ", ")
}

func (h *headers) Set(value string) error {
	*h = append(*h, value)
	return nil
}

func (h headers) toMap() map[string]string {
	if len(h) == 0 {
		return nil
	}
	m := make(map[string]string, len(h))
	for _, header := range h {
		key, value, ok := strings.Cut(header, ":")
		if !ok {
			continue
		}
		m[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return m
}

func main() {
	var directory string
	var chromeDevtoolsProtocolURL string
	var callbackURL string
	var callbackRetries uint
	var basicAuth string
	var logLevel string
	var headers headers
	options := capture.DefaultOptions()
	var waitStrategy string

	flag.StringVar(&directory, "directory", env.OrDefault("SCREENSHOTS_DIR", storage.DefaultDirectory), "Output directory")
	flag.BoolVar(&options.FullPage, "full-page", env.OrDefault("FULL_PAGE", options.FullPage), "Capture the full scrollable page")
	flag.IntVar(&options.ViewportWidth, "viewport-width", env.OrDefault("VIEWPORT_WIDTH", options.ViewportWidth), "Viewport width in pixels")
	flag.IntVar(&options.ViewportHeight, "viewport-height", env.OrDefault("VIEWPORT_HEIGHT", options.ViewportHeight), "Viewport height in pixels")
	flag.StringVar(&waitStrategy, "wait-strategy", env.OrDefault("WAIT_STRATEGY", string(options.WaitStrategy)), "networkidle, domcontentloaded, load, commit or selector")
	flag.StringVar(&options.WaitSelector, "wait-selector", env.OrDefault("WAIT_SELECTOR", ""), "CSS selector to wait for with -wait-strategy=selector")
	flag.IntVar(&options.DelayMS, "delay-ms", env.OrDefault("DELAY_MS", options.DelayMS), "Delay before capturing in milliseconds")
	flag.IntVar(&options.TimeoutMS, "timeout-ms", env.OrDefault("TIMEOUT_MS", options.TimeoutMS), "Navigation and wait timeout in milliseconds")
	flag.StringVar(&basicAuth, "basic-auth", env.OrDefault("BASIC_AUTH", ""), "HTTP basic credentials as user:password")
	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", env.OrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.StringVar(&callbackURL, "callback-url", env.OrDefault("CALLBACK_URL", ""), "POST the result as JSON to this URL")
	flag.UintVar(&callbackRetries, "callback-retries", env.OrDefault("CALLBACK_RETRIES", uint(5)), "Maximum retries of the callback request")
	flag.StringVar(&logLevel, "log-level", env.OrDefault("GO_LOG", "info"), "Log level (debug, info, warn or error)")
	flag.Var(&headers, "H", "Add HTTP header (can be used multiple times, e.g., -H 'Accept: text/html' -H 'Authorization: Bearer token')")
	flag.Parse()

	logger, sync, err := logging.New(logging.Config{Level: logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %v\n", err)
		os.Exit(1)
	}
	defer sync()

	args := flag.Args()
	if len(args) == 0 {
		logger.Error(nil, "url not specified")
		sync()
		os.Exit(2)
	}

	options.WaitStrategy = capture.WaitStrategy(waitStrategy)
	options.AuthHeaders = headers.toMap()
	if username, password, ok := strings.Cut(basicAuth, ":"); ok {
		options.BasicAuth = &capture.BasicAuth{Username: username, Password: password}
	}
	if err := options.Validate(); err != nil {
		logger.Error(err, "invalid options")
		sync()
		os.Exit(2)
	}

	result, err := run(context.Background(), logger, args[0], options, directory, chromeDevtoolsProtocolURL, callbackURL, callbackRetries)
	if err != nil {
		logger.Error(err, "problem capturing screenshot")
		sync()
		os.Exit(1)
	}
	if !result.Success {
		sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger logr.Logger, url string, options capture.Options, directory string, chromeDevtoolsProtocolURL string, callbackURL string, callbackRetries uint) (*capture.Result, error) {
	s, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: directory})
	if err != nil {
		return nil, xerrors.Errorf("failed to create storage backend: %w", err)
	}

	config := capture.DefaultPlaywrightConfig()
	config.ChromeDevtoolsProtocolURL = chromeDevtoolsProtocolURL
	if display := os.Getenv("DISPLAY"); display != "" {
		config.Headless = false
	}

	session := capture.NewSession(capture.NewPlaywrightLauncher(config), logger.WithName("session"))
	defer func() {
		if err := session.Shutdown(); err != nil {
			logger.Error(err, "failed to shutdown browser session")
		}
	}()

	capturer, err := capture.NewCapturer(session, s, logger.WithName("capture"))
	if err != nil {
		return nil, xerrors.Errorf("failed to create capturer: %w", err)
	}

	result := capturer.Capture(ctx, url, options)

	body, err := json.Marshal(result)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode result: %w", err)
	}
	if _, err := os.Stdout.Write(append(body, '\n')); err != nil {
		return nil, xerrors.Errorf("failed to write result: %w", err)
	}

	if callbackURL != "" {
		if err := postResult(ctx, callbackURL, body, callbackRetries); err != nil {
			return nil, err
		}
		logger.Info("posted result", "callbackURL", callbackURL)
	}

	return result, nil
}

func postResult(ctx context.Context, callbackURL string, body []byte, maxRetries uint) error {
	on, err := retry.ParseOn(retry.DefaultRetryOn)
	if err != nil {
		return xerrors.Errorf("failed to parse retry conditions: %w", err)
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &retry.Transport{
			Base:          http.DefaultTransport,
			RetryStrategy: retry.NewExponentialBackOff(100*time.Millisecond, 10*time.Second, maxRetries, nil),
			RetryOn:       on,
		},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return xerrors.Errorf("failed to create callback request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to post result: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode >= http.StatusBadRequest {
		return xerrors.Errorf("callback responded with %s", response.Status)
	}
	return nil
}
