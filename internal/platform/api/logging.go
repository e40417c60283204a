package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

var sensitiveHeaders = []string{
	"Authorization",
	"X-Api-Key",
	"Cookie",
}

// LoggingTransport logs each request and its outcome. Bodies are never
// logged and sensitive headers are masked.
type LoggingTransport struct {
	Base http.RoundTripper
	Log  *zap.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	t.Log.Debug("REQUEST",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("requestId", req.Header.Get(RequestIDHeader)),
		zap.Any("headers", maskSensitiveHeaders(req.Header)))

	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Log.Warn("ERROR",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	t.Log.Debug("RESPONSE",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return resp, nil
}

// maskSensitiveHeaders returns a flattened copy of headers with secrets masked.
func maskSensitiveHeaders(headers http.Header) map[string]string {
	masked := make(map[string]string, len(headers))
	for k := range headers {
		masked[k] = headers.Get(k)
	}
	for _, h := range sensitiveHeaders {
		if _, ok := masked[h]; ok {
			masked[h] = "***"
		}
	}
	return masked
}
