package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveResult(t *testing.T) {
	m := NewMetrics()
	m.ObserveResult("core", "success", 2*time.Second)
	m.ObserveResult("core", "success", time.Second)
	m.ObserveResult("wave", "timeout", 120*time.Second)

	if got := testutil.ToFloat64(m.AgentResultsTotal.WithLabelValues("core", "success")); got != 2 {
		t.Errorf("core success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AgentResultsTotal.WithLabelValues("wave", "timeout")); got != 1 {
		t.Errorf("wave timeout = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.AgentDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestObserveRound(t *testing.T) {
	m := NewMetrics()
	m.RoundStarted()
	m.RoundStarted()
	if got := testutil.ToFloat64(m.RoundsInFlight); got != 2 {
		t.Fatalf("in flight = %v, want 2", got)
	}
	m.ObserveRound("ok", 3*time.Second)
	m.ObserveRound("error", time.Second)

	if got := testutil.ToFloat64(m.RoundsInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.RoundsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok rounds = %v, want 1", got)
	}
}

func TestHandlerExposesCrewMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveResult("code", "error", time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{"crew_agent_results_total", "crew_agent_duration_seconds", "crew_rounds_in_flight"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
