package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/whistleblower-api/internal/models"
)

func metricValue(t *testing.T, m *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			matched := true
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					matched = false
				}
			}
			if !matched {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsServiceDomainCounters(t *testing.T) {
	m := NewMetricsService()

	m.ReportSubmitted("web")
	m.ReportSubmitted("web")
	m.StatusTransition(models.ReportStatusPending, models.ReportStatusUnderReview)
	m.SetSubscribers(3)
	m.EventBroadcast(models.EventNewReport)
	m.OutboundMessage("status_update", errors.New("down"))
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	assert.Equal(t, 2.0, metricValue(t, m, "reports_submitted_total", map[string]string{"channel": "web"}))
	assert.Equal(t, 1.0, metricValue(t, m, "report_status_transitions_total", map[string]string{"from": "pending", "to": "under_review"}))
	assert.Equal(t, 3.0, metricValue(t, m, "notification_subscribers", nil))
	assert.Equal(t, 1.0, metricValue(t, m, "channel_outbound_messages_total", map[string]string{"result": "failed"}))
	assert.Equal(t, 0.5, metricValue(t, m, "cache_hit_ratio", nil))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ReportSubmitted("web")
	m.EventBroadcast(models.EventStatusChange)
	m.DeliveryDropped()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
