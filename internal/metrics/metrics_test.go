package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.AlertRaised("high")
	a.AlertRaised("high")
	a.AlertRaised("critical")

	require.Equal(t, 2.0, testutil.ToFloat64(a.alerts.WithLabelValues("high")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.alerts.WithLabelValues("critical")))
	require.Zero(t, testutil.ToFloat64(b.alerts.WithLabelValues("high")))
}

func TestSubscriberGauge(t *testing.T) {
	c := NewCollector()
	c.SubscriberAdded()
	c.SubscriberAdded()
	c.SubscriberRemoved(true)

	require.Equal(t, 1.0, testutil.ToFloat64(c.subscribers))
	require.Equal(t, 1.0, testutil.ToFloat64(c.subscriberDrops))

	c.ConsumerResubscribed("redis")
	require.Equal(t, 1.0, testutil.ToFloat64(c.resubscribes.WithLabelValues("redis")))
	require.Zero(t, testutil.ToFloat64(c.resubscribes.WithLabelValues("influx")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.TickCompleted("wave", 3*time.Millisecond)
	c.EnvelopePublished(4)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `coastwatch_ticks_total{device_type="wave"} 1`)
	require.Contains(t, rec.Body.String(), "coastwatch_envelope_deliveries_total 4")
}
