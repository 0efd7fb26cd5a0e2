package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/stackchat/internal/turn"
)

func TestRecorder_CountsEvents(t *testing.T) {
	t.Parallel()

	r := New()
	r.Record(turn.TurnStarted{TurnID: "t"})
	r.Record(turn.ContentDelta{Text: "Hello"})
	r.Record(turn.ContentDelta{Text: " world"})
	r.Record(turn.ToolExecution{Calls: []turn.ToolCall{{Name: "brave_search"}, {Name: "brave_search"}}})
	r.Record(turn.ShieldCall{})
	r.Record(turn.ShieldCall{Violation: "unsafe"})
	r.Record(turn.TurnCompleted{})

	assert.InDelta(t, 2.0, testutil.ToFloat64(r.eventsTotal.WithLabelValues("content_delta")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.eventsTotal.WithLabelValues("turn_start")), 1e-9)
	assert.InDelta(t, 11.0, testutil.ToFloat64(r.deltaBytes), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(r.toolCallsTotal.WithLabelValues("brave_search")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.shieldTotal.WithLabelValues("pass")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.shieldTotal.WithLabelValues("violation")), 1e-9)
}

func TestRecorder_TurnLifecycle(t *testing.T) {
	t.Parallel()

	r := New()
	done := r.TurnStarted()
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.turnsActive), 1e-9)

	done(turn.StateCompleted)
	assert.InDelta(t, 0.0, testutil.ToFloat64(r.turnsActive), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.turnsTotal.WithLabelValues("completed")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(r.turnDuration))
}

func TestRecorder_Handler(t *testing.T) {
	t.Parallel()

	r := New()
	r.Record(turn.ContentDelta{Text: "x"})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL) //nolint:noctx // test
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `stackchat_turn_events_total{kind="content_delta"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
