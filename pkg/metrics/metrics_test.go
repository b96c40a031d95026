package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCommand("roll", "ok")
	m.ObserveCommand("roll", "ok")
	m.ObserveCommand("prefix", "denied")
	m.ObserveRoll(true, 3)
	m.ObserveRoll(false, 2)
	m.ObserveRollError("limit_exceeded")
	m.ObserveMessage("discord", "inbound")
	m.SetChannelRunning("discord", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("roll", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("prefix", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RollsTotal.WithLabelValues("true")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DiceRolled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RollErrors.WithLabelValues("limit_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("discord", "inbound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelsRunning.WithLabelValues("discord")))

	m.SetChannelRunning("discord", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ChannelsRunning.WithLabelValues("discord")))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCommand("roll", "ok")
		m.ObserveRoll(false, 1)
		m.ObserveRollError("internal")
		m.ObserveMessage("console", "outbound")
		m.SetChannelRunning("console", true)
	})
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.ObserveCommand("history", "ok")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `picodice_commands_total{command="history",outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
