package service

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/whistleblower-api/internal/models"
)

type recordingSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
	closed   bool
}

func (r *recordingSubscriber) Send(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("closed")
	}
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingSubscriber) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *recordingSubscriber) received() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.payloads...)
}

func TestHubBroadcastWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil, nil)
	done := make(chan struct{})
	go func() {
		hub.Broadcast(models.NewReportEvent{ID: "r1", Category: models.CategoryFraud, Status: models.ReportStatusPending})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked with zero subscribers")
	}
	assert.Equal(t, 0, hub.Count())
}

func TestHubBroadcastWireFormat(t *testing.T) {
	hub := NewHub(nil, nil)
	sub := &recordingSubscriber{}
	hub.Subscribe(sub)

	hub.Broadcast(models.StatusChangeEvent{ID: "r1", Status: models.ReportStatusVerified})

	got := sub.received()
	require.Len(t, got, 1)
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(got[0], &envelope))
	assert.Equal(t, "STATUS_CHANGE", envelope["type"])
	assert.Equal(t, map[string]interface{}{"id": "r1", "status": "verified"}, envelope["data"])
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	metrics := NewMetricsService()
	hub := NewHub(nil, metrics)
	healthy := &recordingSubscriber{}
	broken := &recordingSubscriber{fail: true}
	hub.Subscribe(healthy)
	hub.Subscribe(broken)

	hub.Broadcast(models.NewEvidenceEvent{ReportID: "r1", FileType: "image/png"})

	assert.Len(t, healthy.received(), 1)
	assert.True(t, broken.closed)
	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, 1.0, metricValue(t, metrics, "notification_deliveries_dropped_total", nil))
	assert.Equal(t, 1.0, metricValue(t, metrics, "notification_subscribers", nil))
}

func TestHubUnsubscribeIdempotent(t *testing.T) {
	hub := NewHub(nil, nil)
	sub := &recordingSubscriber{}
	hub.Subscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.Count())

	hub.Broadcast(models.NewReportEvent{ID: "r1"})
	assert.Empty(t, sub.received())
}

type unsubscribingSubscriber struct {
	hub *Hub
	recordingSubscriber
}

func (u *unsubscribingSubscriber) Send(payload []byte) error {
	u.hub.Unsubscribe(u)
	return u.recordingSubscriber.Send(payload)
}

func TestHubToleratesMutationDuringBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	self := &unsubscribingSubscriber{hub: hub}
	other := &recordingSubscriber{}
	hub.Subscribe(self)
	hub.Subscribe(other)

	hub.Broadcast(models.NewReportEvent{ID: "r1"})

	assert.Len(t, self.received(), 1)
	assert.Len(t, other.received(), 1)
	assert.Equal(t, 1, hub.Count())
}

func TestHubConcurrentSubscribeAndBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := &recordingSubscriber{}
			hub.Subscribe(sub)
			hub.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(models.StatusChangeEvent{ID: "r", Status: models.ReportStatusClosed})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.Count())
}
