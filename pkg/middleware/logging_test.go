package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aviaops/flightops/pkg/metrics"
)

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "198.51.100.4:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequestLogger_LogsStatusOfFlightRequests(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		handler http.HandlerFunc
		status  int64
	}{
		{
			name:   "list",
			method: http.MethodGet,
			path:   "/api/flights?status=done",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":true}`))
			},
			status: http.StatusOK,
		},
		{
			name:   "created",
			method: http.MethodPost,
			path:   "/api/flights",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			},
			status: http.StatusCreated,
		},
		{
			name:   "second WriteHeader ignored",
			method: http.MethodDelete,
			path:   "/api/flights/123",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				w.WriteHeader(http.StatusInternalServerError)
			},
			status: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			rec := serve(RequestLogger(zap.New(core), nil)(tt.handler), tt.method, tt.path)

			if rec.Code != int(tt.status) {
				t.Errorf("recorded status = %d, want %d", rec.Code, tt.status)
			}
			if logs.Len() != 1 {
				t.Fatalf("expected 1 log entry, got %d", logs.Len())
			}
			entry := logs.All()[0]
			if entry.Message != "HTTP request" {
				t.Errorf("message = %q, want %q", entry.Message, "HTTP request")
			}
			fields := entry.ContextMap()
			if fields["status"] != tt.status {
				t.Errorf("status field = %v, want %d", fields["status"], tt.status)
			}
			if fields["method"] != tt.method {
				t.Errorf("method field = %v, want %s", fields["method"], tt.method)
			}
			if fields["remote_addr"] != "198.51.100.4:40000" {
				t.Errorf("remote_addr field = %v", fields["remote_addr"])
			}
		})
	}
}

func TestRequestLogger_InfoLevelSkipsRequestLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	serve(RequestLogger(zap.New(core), nil)(http.NotFoundHandler()), http.MethodGet, "/api/me")

	if logs.Len() != 0 {
		t.Errorf("expected request logs to stay at debug, got %d entries", logs.Len())
	}
}

func TestRequestLogger_NothingConfiguredReturnsNext(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	serve(RequestLogger(nil, nil)(next), http.MethodGet, "/ping")

	if !called {
		t.Error("expected the wrapped handler to run")
	}
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	if _, err := rw.Write([]byte("date;route\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rw.headerWritten || rw.statusCode != http.StatusOK {
		t.Errorf("headerWritten=%v status=%d, want true/200", rw.headerWritten, rw.statusCode)
	}

	rw.WriteHeader(http.StatusTeapot)
	if rec.Code != http.StatusOK {
		t.Errorf("late WriteHeader changed the status to %d", rec.Code)
	}
}

func TestResponseWriter_UnwrapReachesRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}

	if rw.Unwrap() != rec {
		t.Error("Unwrap should return the underlying writer")
	}
}

func TestRequestLogger_RecordsMetricsByPattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/flights/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := RequestLogger(nil, m)(mux)

	serve(handler, http.MethodGet, "/api/flights/abc")
	serve(handler, http.MethodGet, "/api/flights/def")
	serve(handler, http.MethodGet, "/nowhere")

	if count := testutil.CollectAndCount(m.HTTPRequestDuration); count != 2 {
		t.Fatalf("expected 2 observed series, got %d", count)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	counts := map[string]uint64{}
	for _, mf := range families {
		if mf.GetName() != "flightops_http_request_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			counts[labels["route"]+" "+labels["status"]] = metric.GetHistogram().GetSampleCount()
		}
	}
	if counts["GET /api/flights/{id} 404"] != 2 {
		t.Errorf("expected both flight requests under the mux pattern, got %v", counts)
	}
	if counts["unmatched 404"] != 1 {
		t.Errorf("expected unmatched requests under a single label, got %v", counts)
	}
}
