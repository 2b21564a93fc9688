package relay

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/divinevideo/relay-admin/internal/logging"
)

// LoggingTransport wraps an http.RoundTripper and logs every exchange at
// debug level. Authorization and other credential headers are masked.
type LoggingTransport struct {
	Transport http.RoundTripper
	Logger    *slog.Logger
	Prefix    string
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if !t.Logger.Enabled(ctx, slog.LevelDebug) {
		return t.transport().RoundTrip(req)
	}

	start := time.Now()

	var reqBody []byte
	if req.Body != nil {
		var err error
		if reqBody, err = io.ReadAll(req.Body); err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	t.Logger.DebugContext(ctx, "outbound request",
		"prefix", t.Prefix,
		"method", req.Method,
		"url", req.URL.String(),
		"headers", maskHeaders(req.Header),
		"body", printable(reqBody),
	)

	resp, err := t.transport().RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		t.Logger.DebugContext(ctx, "outbound request failed",
			"prefix", t.Prefix,
			"method", req.Method,
			"url", req.URL.String(),
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	t.Logger.DebugContext(ctx, "outbound response",
		"prefix", t.Prefix,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"body", printable(respBody),
	)
	return resp, nil
}

func (t *LoggingTransport) transport() http.RoundTripper {
	if t.Transport != nil {
		return t.Transport
	}
	return http.DefaultTransport
}

func maskHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = logging.MaskHeader(k, v[0])
		}
	}
	return out
}

func printable(b []byte) string {
	if !utf8.Valid(b) {
		return logging.FormatBinaryData(b)
	}
	return string(logging.MaskJSONBody(b, nil))
}
