// ABOUTME: Outbound HTTP logging through a go-loghttp transport.
// ABOUTME: Logs method, URL, status and duration at debug level; never credentials.

package logging

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/motemen/go-loghttp"
)

type startKey struct{}

// Transport returns a RoundTripper that logs each request and response to
// logger. base defaults to http.DefaultTransport.
func Transport(logger *slog.Logger, base http.RoundTripper) *loghttp.Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loghttp.Transport{
		Transport: &timingTransport{base: base},
		LogRequest: func(req *http.Request) {
			logger.Debug("HTTP request",
				"method", req.Method,
				"url", redactURL(req),
				"has_authorization", req.Header.Get("Authorization") != "",
			)
		},
		LogResponse: func(resp *http.Response) {
			attrs := []any{
				"method", resp.Request.Method,
				"url", redactURL(resp.Request),
				"status_code", resp.StatusCode,
			}
			if start, ok := resp.Request.Context().Value(startKey{}).(time.Time); ok {
				attrs = append(attrs, "duration", time.Since(start))
			}
			logger.Debug("HTTP response", attrs...)
		},
	}
}

// timingTransport stamps the request context with its start time.
type timingTransport struct {
	base http.RoundTripper
}

func (t *timingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.WithContext(context.WithValue(req.Context(), startKey{}, time.Now()))
	return t.base.RoundTrip(req)
}

func redactURL(req *http.Request) string {
	u := *req.URL
	u.User = nil
	return u.String()
}
