package retry

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/xerrors"
)

// On decides which delivery outcomes are retried. It understands the envoy
// retry_on vocabulary plus literal status codes, e.g. "gateway-error,429".
type On struct {
	serverError    bool
	gatewayError   bool
	connectFailure bool
	retriable4xx   bool
	statusCodes    map[int]struct{}
}

const DefaultRetryOn = "gateway-error,connect-failure,retriable-4xx"

func ParseOn(s string) (*On, error) {
	o := &On{statusCodes: map[int]struct{}{}}
	for _, token := range strings.Split(s, ",") {
		switch token = strings.TrimSpace(token); token {
		case "":
		case "5xx":
			o.serverError = true
		case "gateway-error":
			o.gatewayError = true
		case "connect-failure":
			o.connectFailure = true
		case "retriable-4xx":
			o.retriable4xx = true
		default:
			statusCode, err := strconv.Atoi(token)
			if err != nil || statusCode < 100 || statusCode > 599 {
				return nil, xerrors.Errorf("invalid retry condition %q", token)
			}
			o.statusCodes[statusCode] = struct{}{}
		}
	}
	return o, nil
}

// https://www.envoyproxy.io/docs/envoy/latest/configuration/http/http_filters/router_filter#x-envoy-retry-on
func (o *On) CheckResponse(response *http.Response) bool {
	code := response.StatusCode
	switch {
	case o.serverError && code >= 500 && code < 600:
		return true
	case o.gatewayError && code >= 502 && code < 505:
		return true
	case o.retriable4xx && code == http.StatusConflict:
		return true
	}
	_, ok := o.statusCodes[code]
	return ok
}

func (o *On) CheckError(err error) bool {
	if !o.connectFailure && !o.serverError {
		return false
	}

	type temporary interface{ Temporary() bool }
	var terr temporary
	return (errors.As(err, &terr) && terr.Temporary()) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET)
}
