package broker

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu         sync.Mutex
	declareErr error
	publishErr error
	declared   string
	keys       []string
	bodies     [][]byte
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared = name + ":" + kind
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, msg.Body)
	return nil
}

func TestBridgePublishesWithRoutingKey(t *testing.T) {
	ch := &fakeChannel{}
	bridge, err := NewBridge(ch, "reports", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, "reports:topic", ch.declared)

	bridge.Start()
	require.NoError(t, bridge.Send([]byte(`{"type":"NEW_REPORT","data":{"id":"r1"}}`)))
	require.NoError(t, bridge.Send([]byte(`not json`)))
	bridge.Stop()

	assert.Equal(t, []string{"report.NEW_REPORT"}, ch.keys)
	assert.ErrorIs(t, bridge.Send([]byte(`{}`)), ErrBridgeClosed)
}

func TestBridgeDropsWhenBufferFull(t *testing.T) {
	ch := &fakeChannel{}
	drops := 0
	bridge, err := NewBridge(ch, "reports", 1, nil, WithDropHook(func() { drops++ }))
	require.NoError(t, err)

	require.NoError(t, bridge.Send([]byte(`{"type":"A"}`)))
	require.NoError(t, bridge.Send([]byte(`{"type":"B"}`)))
	assert.Equal(t, 1, drops)

	bridge.Start()
	bridge.Stop()
	assert.Equal(t, []string{"report.A"}, ch.keys)
}

func TestNewBridgeDeclareFailure(t *testing.T) {
	_, err := NewBridge(&fakeChannel{declareErr: errors.New("denied")}, "reports", 1, nil)
	assert.Error(t, err)
}
