package myhttp

import (
	"net/http"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/metric"
)

// Middleware wraps every handler registered through HandleWithMiddleware,
// after tracing and request logging are set up.
type Middleware func(http.Handler) http.Handler

func newServerMux(logger logr.Logger, httpRequestsDurationMicroSeconds metric.Int64Histogram, middlewares ...Middleware) *myRouter {
	return &myRouter{
		ServeMux:                         http.NewServeMux(),
		logger:                           logger,
		httpRequestsDurationMicroSeconds: httpRequestsDurationMicroSeconds,
		middlewares:                      middlewares,
	}
}

var NewServerMux = newServerMux
