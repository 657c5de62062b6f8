package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/p-n-ai/pai-learn/internal/platform/metrics"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	server := httptest.NewServer(m.Middleware(mux))
	defer server.Close()

	for _, path := range []string{"/items/1", "/items/2", "/nothing"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "GET /items/{id}", "418")); got != 2 {
		t.Errorf("pattern counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched counter = %v, want 1", got)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := metrics.New()
	m.QuizSubmissions.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"quiz_submissions_total", "scenario_active_players", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestObserveAI(t *testing.T) {
	m := metrics.New()
	m.ObserveAI("openai", "debrief", 300*time.Millisecond, errors.New("down"))
	m.ObserveAI("anthropic", "debrief", time.Second, nil)
	m.ObserveAI("anthropic", "debrief", time.Second, nil)

	if got := testutil.ToFloat64(m.AIRequests.WithLabelValues("openai", "debrief", "error")); got != 1 {
		t.Errorf("openai errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AIRequests.WithLabelValues("anthropic", "debrief", "success")); got != 2 {
		t.Errorf("anthropic successes = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(m.AIRequestDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}
