package runnable

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"screenshot-service/internal/apikey"
	"screenshot-service/internal/capture"
	"screenshot-service/internal/env"
	"screenshot-service/internal/myhttp"
	"screenshot-service/internal/routes"
	"screenshot-service/internal/storage"

	"github.com/go-logr/logr"
	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/net/netutil"
	"golang.org/x/xerrors"
)

const applicationName = "screenshot-service"

// Dependencies are the collaborators the HTTP API is served from.
type Dependencies struct {
	Session     *capture.Session
	Capturer    capture.Capturer
	Screenshots routes.ScreenshotRepository
	Storage     storage.Storage
	Keys        *apikey.Service
}

type Server struct {
	address                string
	terminationGracePeriod time.Duration
	lameduck               time.Duration
	keepAlive              bool
	maxConnections         int
	batchConcurrency       int
	corsOrigins            []string
	pyroscopeEndpoint      string
	auth                   apikey.AuthConfig
	dependencies           Dependencies
	logger                 logr.Logger
}

func NewServer(dependencies Dependencies, logger logr.Logger) *Server {
	return &Server{
		address:                env.OrDefault("ADDRESS", "0.0.0.0:8000"),
		terminationGracePeriod: env.OrDefault("TERMINATION_GRACE_PERIOD", 10*time.Second),
		lameduck:               env.OrDefault("LAMEDUCK", 1*time.Second),
		keepAlive:              env.OrDefault("HTTP_KEEPALIVE", true),
		maxConnections:         env.OrDefault("MAX_CONNECTIONS", 65532),
		batchConcurrency:       env.OrDefault("BATCH_CONCURRENCY", 4),
		corsOrigins:            env.OrDefault("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		pyroscopeEndpoint:      env.OrDefault("PYROSCOPE_ENDPOINT", ""),
		auth: apikey.AuthConfig{
			Enabled:    env.OrDefault("API_AUTH_ENABLED", false),
			Required:   env.OrDefault("API_KEY_REQUIRED", false),
			HeaderName: env.OrDefault("API_KEY_HEADER_NAME", apikey.DefaultHeaderName),
		},
		dependencies: dependencies,
		logger:       logger.WithName("server"),
	}
}

var Debug = false

func (s *Server) Start(ctx context.Context) error {
	runtime.SetMutexProfileFraction(1)
	runtime.SetBlockProfileRate(1)

	if s.pyroscopeEndpoint != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: applicationName,
			ServerAddress:   s.pyroscopeEndpoint,
			UploadRate:      60 * time.Second,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
				pyroscope.ProfileMutexCount,
				pyroscope.ProfileMutexDuration,
				pyroscope.ProfileBlockCount,
				pyroscope.ProfileBlockDuration,
			},
		})
		if err != nil {
			return xerrors.Errorf("failed to create profiler: %w", err)
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				s.logger.Error(err, "failed to shutdown profiler")
			}
		}()
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	r, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(applicationName)),
	)
	if err != nil {
		return xerrors.Errorf("failed to create resource: %w", err)
	}
	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return xerrors.Errorf("failed to create trace exporter: %w", err)
	}
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(r),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(traceProvider))

	exporter, err := otelprometheus.New()
	if err != nil {
		return xerrors.Errorf("failed to create exporter: %w", err)
	}
	// NOTE: Gauge(UpDownCounter), Summary or Untyped does not support exemplars
	// https://github.com/prometheus/client_golang/blob/v1.20.4/prometheus/metric.go#L200
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithResource(r), sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)
	httpRequestsDurationMicroSeconds, err := meterProvider.Meter(applicationName).Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		return xerrors.Errorf("failed to create histogram: %w", err)
	}

	d := s.dependencies
	mux := myhttp.NewServerMux(s.logger, httpRequestsDurationMicroSeconds, apikey.Middleware(d.Keys, s.auth, s.logger))

	mux.HandleFuncWithMiddleware("GET /api/v1", routes.Index())
	mux.HandleFuncWithMiddleware("POST /api/v1/screenshot", routes.CaptureScreenshot(d.Capturer, d.Screenshots))
	mux.HandleFuncWithMiddleware("POST /api/v1/screenshot/batch", routes.CaptureBatch(d.Capturer, d.Screenshots, s.batchConcurrency))
	mux.HandleFuncWithMiddleware("GET /api/v1/screenshots", routes.ListScreenshots(d.Screenshots))
	mux.HandleFuncWithMiddleware("GET /api/v1/screenshots/{id}", routes.GetScreenshot(d.Screenshots))
	mux.HandleFuncWithMiddleware("DELETE /api/v1/screenshots/{id}", routes.DeleteScreenshot(d.Screenshots, d.Storage))
	mux.HandleFuncWithMiddleware("GET /api/v1/screenshots/url/{url...}", routes.ListScreenshotsByURL(d.Screenshots))
	mux.HandleFuncWithMiddleware("GET /api/v1/images/{id}", routes.GetScreenshotImage(d.Screenshots, d.Storage))
	mux.HandleFuncWithMiddleware("GET /api/v1/statistics", routes.GetStatistics(d.Screenshots))
	mux.HandleFuncWithMiddleware("GET /api/v1/reports/html", routes.HTMLReport(d.Screenshots))

	mux.HandleFuncWithMiddleware("POST /api/v1/api-keys", routes.CreateAPIKey(d.Keys))
	mux.HandleFuncWithMiddleware("GET /api/v1/api-keys", routes.ListAPIKeys(d.Keys))
	mux.HandleFuncWithMiddleware("DELETE /api/v1/api-keys/{id}", routes.RevokeAPIKey(d.Keys))
	mux.HandleFuncWithMiddleware("POST /api/v1/api-keys/{id}/reactivate", routes.ReactivateAPIKey(d.Keys))

	mux.HandleFunc("GET /{$}", routes.Root())
	mux.HandleFunc("GET /health", routes.Health())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(http.StatusText(http.StatusOK)))
	})

	mux.Handle("GET /metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	))

	if Debug {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
		mux.HandleFunc("GET /debug/pprof/profile", pyroscopepprof.Profile)
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return xerrors.Errorf("failed to listen on address %s: %w", s.address, err)
	}

	server := &http.Server{
		Handler: myhttp.CORS(s.corsOrigins)(mux),
	}
	server.SetKeepAlivesEnabled(s.keepAlive)

	go func() {
		if err := server.Serve(netutil.LimitListener(listener, s.maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(err, "failed to serve HTTP")
		}
	}()
	s.logger.Info("serving HTTP", "address", s.address, "auth", s.auth.Enabled)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	time.Sleep(s.lameduck)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.terminationGracePeriod)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown server: %w", err)
	}

	if err := d.Session.Shutdown(); err != nil {
		s.logger.Error(err, "failed to shutdown browser session")
	}

	if err := traceProvider.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown trace provider: %w", err)
	}

	if err := meterProvider.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown meter provider: %w", err)
	}

	return nil
}
