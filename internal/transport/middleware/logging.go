package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/finance-tracker/internal/transport"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

// Bodies are cut at this many bytes once redacted.
const maxLoggedBody = 2048

// redactedKeys are JSON keys whose values never reach the log: credentials
// and the ledger details of a user's money.
var redactedKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"amount":        {},
	"description":   {},
}

type AccessLogOptions struct {
	// Bodies adds the redacted request and response bodies to each line.
	Bodies bool
}

// LoggingMiddleware writes one access log line per request, annotated with
// the request fields of the context. Responses served from the cache keep
// their body out of the log.
func LoggingMiddleware(base *slog.Logger, opts AccessLogOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			var reqBody []byte
			if opts.Bodies && r.Body != nil {
				reqBody, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(reqBody))
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK, capture: opts.Bodies}
			next.ServeHTTP(rec, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", rec.size,
			}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, "query", r.URL.RawQuery)
			}
			cacheState := rec.Header().Get(transport.CacheHeader)
			if cacheState != "" {
				attrs = append(attrs, "cache", cacheState)
			}
			if opts.Bodies {
				if len(reqBody) > 0 {
					attrs = append(attrs, "request_body", redactBody(reqBody))
				}
				if cacheState != transport.CacheHit && rec.body.Len() > 0 {
					attrs = append(attrs, "response_body", redactBody(rec.body.Bytes()))
				}
			}

			logger.From(r.Context(), base).Log(r.Context(), levelFor(rec.status), "http request", attrs...)
		})
	}
}

func quietPath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/swagger/") || strings.HasSuffix(path, "/health")
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

type recorder struct {
	http.ResponseWriter
	status  int
	size    int
	capture bool
	body    bytes.Buffer
}

func (rw *recorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	if rw.capture {
		rw.body.Write(b)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// redactBody masks redactedKeys at any depth. Bodies that are not JSON are
// not logged.
func redactBody(body []byte) string {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return "[non-json body]"
	}
	out, err := json.Marshal(redact(v))
	if err != nil {
		return "[unloggable body]"
	}
	if len(out) > maxLoggedBody {
		return string(out[:maxLoggedBody]) + "...[TRUNCATED]"
	}
	return string(out)
}

func redact(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if _, ok := redactedKeys[strings.ToLower(k)]; ok {
				t[k] = "[FILTERED]"
				continue
			}
			t[k] = redact(val)
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = redact(t[i])
		}
		return t
	default:
		return v
	}
}
