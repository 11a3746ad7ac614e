package middleware_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/transport"
	"github.com/frahmantamala/finance-tracker/internal/transport/middleware"
)

// logLines decodes every JSON log record written to buf.
func logLines(buf *bytes.Buffer) []map[string]interface{} {
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var rec map[string]interface{}
		Expect(json.Unmarshal(sc.Bytes(), &rec)).To(Succeed())
		out = append(out, rec)
	}
	return out
}

func findLine(lines []map[string]interface{}, msg string) map[string]interface{} {
	for _, l := range lines {
		if l["msg"] == msg {
			return l
		}
	}
	return nil
}

var _ = Describe("LoggingMiddleware", func() {
	var (
		buf  *bytes.Buffer
		base *slog.Logger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		base = slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	})

	serve := func(opts middleware.AccessLogOptions, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
		chain := middleware.RequestID(middleware.LoggingMiddleware(base, opts)(h))
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		return rec
	}

	It("tags the access line with the trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/categories?type=expense", nil)
		req.Header.Set("X-Trace-ID", "trace-123")

		rec := serve(middleware.AccessLogOptions{}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), req)
		Expect(rec.Header().Get("X-Trace-ID")).To(Equal("trace-123"))

		line := findLine(logLines(buf), "http request")
		Expect(line).NotTo(BeNil())
		Expect(line["trace_id"]).To(Equal("trace-123"))
		Expect(line["status"]).To(BeEquivalentTo(http.StatusNoContent))
		Expect(line["query"]).To(Equal("type=expense"))
		Expect(line).NotTo(HaveKey("request_body"))
	})

	It("redacts credentials and ledger details from bodies", func() {
		payload := `{"amount":"125.50","description":"rent","category":"housing","password":"Secret123"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(payload))

		var seen string
		serve(middleware.AccessLogOptions{Bodies: true}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b := new(bytes.Buffer)
			_, _ = b.ReadFrom(r.Body)
			seen = b.String()
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":9,"amount":"125.50"}}`))
		}), req)

		Expect(seen).To(Equal(payload))
		line := findLine(logLines(buf), "http request")
		Expect(line).NotTo(BeNil())
		Expect(line["request_body"]).To(ContainSubstring(`"category":"housing"`))
		Expect(line["request_body"]).NotTo(ContainSubstring("125.50"))
		Expect(line["request_body"]).NotTo(ContainSubstring("rent"))
		Expect(line["request_body"]).NotTo(ContainSubstring("Secret123"))
		Expect(line["response_body"]).To(ContainSubstring(`"id":9`))
		Expect(line["response_body"]).NotTo(ContainSubstring("125.50"))
	})

	It("keeps cached payloads out of the log", func() {
		h := transport.NewBaseHandler(base)
		analyticsRoute := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.WriteCached(w, map[string]string{"net": "10.00"}, r.URL.Query().Get("cached") == "1")
		})

		serve(middleware.AccessLogOptions{Bodies: true}, analyticsRoute, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/user?cached=1", nil))
		serve(middleware.AccessLogOptions{Bodies: true}, analyticsRoute, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/user", nil))

		var access []map[string]interface{}
		for _, l := range logLines(buf) {
			if l["msg"] == "http request" {
				access = append(access, l)
			}
		}
		Expect(access).To(HaveLen(2))
		Expect(access[0]["cache"]).To(Equal(transport.CacheHit))
		Expect(access[0]).NotTo(HaveKey("response_body"))
		Expect(access[1]["cache"]).To(Equal(transport.CacheMiss))
		Expect(access[1]["response_body"]).To(ContainSubstring("10.00"))
	})

	It("logs server errors at error level", func() {
		serve(middleware.AccessLogOptions{}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}), httptest.NewRequest(http.MethodGet, "/api/v1/analytics/global", nil))

		line := findLine(logLines(buf), "http request")
		Expect(line["level"]).To(Equal("ERROR"))
	})

	It("stays quiet for health and metrics", func() {
		ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		serve(middleware.AccessLogOptions{}, ok, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		serve(middleware.AccessLogOptions{}, ok, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(findLine(logLines(buf), "http request")).To(BeNil())
	})
})

var _ = Describe("request scoped error logging", func() {
	It("carries the trace id into handler error logs", func() {
		buf := &bytes.Buffer{}
		base := slog.New(slog.NewJSONHandler(buf, nil))
		h := transport.NewBaseHandler(base)

		failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.HandleServiceError(w, r, internal.NewLedgerError("user_summary", errString("connection reset")))
		})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/user", nil)
		req.Header.Set("X-Trace-ID", "trace-err")
		rec := httptest.NewRecorder()
		middleware.RequestID(failing).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		line := findLine(logLines(buf), "service error")
		Expect(line).NotTo(BeNil())
		Expect(line["trace_id"]).To(Equal("trace-err"))
		Expect(line["code"]).To(Equal(string(internal.ErrCodeLedgerUnavailable)))
	})

	It("tags panics with the trace id", func() {
		buf := &bytes.Buffer{}
		base := slog.New(slog.NewJSONHandler(buf, nil))

		boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
		req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
		req.Header.Set("X-Trace-ID", "trace-panic")
		rec := httptest.NewRecorder()
		middleware.RequestID(middleware.RecoveryMiddleware(base)(boom)).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		line := findLine(logLines(buf), "panic recovered")
		Expect(line).NotTo(BeNil())
		Expect(line["trace_id"]).To(Equal("trace-panic"))
	})
})

type errString string

func (e errString) Error() string { return string(e) }
