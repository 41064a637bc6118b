package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/syslog-forwarder/internal/log"
)

// gathered returns the value of the first sample of the named family
func gathered(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name || len(f.GetMetric()) == 0 {
			continue
		}
		sample := f.GetMetric()[0]
		switch {
		case sample.GetCounter() != nil:
			return sample.GetCounter().GetValue()
		case sample.GetGauge() != nil:
			return sample.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestCounters(t *testing.T) {
	m := New()
	m.MessagesSent.WithLabelValues("fanout").Add(3)
	m.PublishFailures.WithLabelValues("fanout", "SEND_FAILED").Inc()
	m.ActionSuspended.WithLabelValues("fanout").Set(1)

	assert.Equal(t, 3.0, gathered(t, m, "forwarder_records_published_total"))
	assert.Equal(t, 1.0, gathered(t, m, "forwarder_publish_failures_total"))
	assert.Equal(t, 1.0, gathered(t, m, "forwarder_action_suspended"))
}

func TestServer(t *testing.T) {
	m := New()
	m.RecordsAcked.Add(7)

	s := NewServer("127.0.0.1:0", "", m, log.Discard())
	require.NoError(t, s.Start())
	defer func() { _ = s.Stop(context.Background()) }()
	assert.Error(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "forwarder_records_acked_total 7"))

	resp, err = http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	assert.Empty(t, s.Addr())
}
