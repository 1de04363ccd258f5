package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/xmlrpc/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("xmlrpcd", "POST", "/RPC2", 200, 12*time.Millisecond)
	RecordClientCall("sum", OutcomeOK, 3*time.Millisecond)

	before := counterValue(t, rpcCalls.WithLabelValues("sum", OutcomeFault))
	RecordRPC("sum", OutcomeFault, 24*time.Millisecond)
	after := counterValue(t, rpcCalls.WithLabelValues("sum", OutcomeFault))
	if after != before+1 {
		t.Fatalf("expected fault counter to advance, got %v -> %v", before, after)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFrom(c))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/id", nil))
	id := rec.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected generated uuid, got %q", id)
	}
	if rec.Body.String() != id {
		t.Fatalf("context id %q does not match header %q", rec.Body.String(), id)
	}

	known := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(HeaderRequestID, known)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Header().Get(HeaderRequestID) != known {
		t.Fatalf("expected incoming id to be kept, got %q", rec.Header().Get(HeaderRequestID))
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestUnmatchedRoutesShareOnePathLabel(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestMetricsMiddleware("unmatched-test"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := counterValue(t, httpRequests.WithLabelValues("unmatched-test", http.MethodGet, UnmatchedPath, "404"))
	for _, path := range []string{"/a", "/b/c", "/health/x"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	after := counterValue(t, httpRequests.WithLabelValues("unmatched-test", http.MethodGet, UnmatchedPath, "404"))
	if after != before+3 {
		t.Fatalf("expected unmatched counter to advance by 3, got %v -> %v", before, after)
	}

	ch := make(chan prometheus.Metric)
	go func() {
		httpRequests.Collect(ch)
		close(ch)
	}()
	for metric := range ch {
		var m dto.Metric
		if err := metric.Write(&m); err != nil {
			t.Fatalf("read metric: %v", err)
		}
		for _, label := range m.GetLabel() {
			if label.GetName() == "path" && strings.HasPrefix(label.GetValue(), "/a") {
				t.Fatalf("raw url leaked into path label: %q", label.GetValue())
			}
		}
	}
}
