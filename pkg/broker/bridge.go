package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// ErrBridgeClosed is returned by Send once the bridge has been stopped.
var ErrBridgeClosed = errors.New("event bridge closed")

// Channel is the subset of *amqp.Channel used by the bridge.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Bridge republishes notification payloads to a topic exchange. It satisfies
// the notification hub subscriber contract: Send never blocks, and a full
// buffer drops the message instead of failing the subscription.
type Bridge struct {
	ch       Channel
	exchange string
	logger   *zap.Logger

	buf      chan []byte
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	dropped  func()
	stopOnce sync.Once
}

// BridgeOption customises a bridge.
type BridgeOption func(*Bridge)

// WithDropHook registers a callback invoked whenever a message is dropped.
func WithDropHook(fn func()) BridgeOption {
	return func(b *Bridge) { b.dropped = fn }
}

// NewBridge declares the exchange and returns an idle bridge.
func NewBridge(ch Channel, exchange string, buffer int, logger *zap.Logger, opts ...BridgeOption) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 256
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	b := &Bridge{
		ch:       ch,
		exchange: exchange,
		logger:   logger,
		buf:      make(chan []byte, buffer),
		done:     make(chan struct{}),
		dropped:  func() {},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Start launches the publishing goroutine.
func (b *Bridge) Start() {
	b.wg.Add(1)
	go b.run()
}

// Send queues a payload for publication.
func (b *Bridge) Send(payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBridgeClosed
	}
	select {
	case b.buf <- payload:
	default:
		b.dropped()
		b.logger.Warn("event bridge buffer full, dropping event")
	}
	return nil
}

// Stop flushes pending payloads and waits for the publisher to exit.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.buf)
		b.mu.Unlock()
		b.wg.Wait()
	})
}

func (b *Bridge) run() {
	defer b.wg.Done()
	for payload := range b.buf {
		if err := b.publish(payload); err != nil {
			b.dropped()
			b.logger.Warn("event bridge publish failed", zap.Error(err))
		}
	}
}

func (b *Bridge) publish(payload []byte) error {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Type == "" {
		return fmt.Errorf("event payload without type")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return b.ch.PublishWithContext(ctx,
		b.exchange,
		RoutingKey(envelope.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
			Timestamp:    time.Now().UTC(),
		})
}

// RoutingKey maps an event type to its topic routing key.
func RoutingKey(eventType string) string {
	return "report." + eventType
}
