package bus

import (
	"context"
	"sync"
)

const DefaultQueueSize = 100

// MessageBus carries inbound chat messages to the router and replies back to
// the channel manager. After Close, publishes are dropped and consumers
// return immediately.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	done     chan struct{}
	once     sync.Once
}

type Option func(*options)

type options struct {
	queueSize int
}

// WithQueueSize sets the buffer size of both directions.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func NewMessageBus(opts ...Option) *MessageBus {
	o := options{queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, o.queueSize),
		outbound: make(chan OutboundMessage, o.queueSize),
		done:     make(chan struct{}),
	}
}

// PublishInbound queues msg, blocking while the queue is full. It reports
// false if the bus was closed first.
func (mb *MessageBus) PublishInbound(msg InboundMessage) bool {
	select {
	case <-mb.done:
		return false
	default:
	}
	select {
	case mb.inbound <- msg:
		return true
	case <-mb.done:
		return false
	}
}

// ConsumeInbound returns the next inbound message. The bool is false when
// ctx is cancelled or the bus is closed.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-mb.inbound:
		return msg, true
	case <-mb.done:
		return InboundMessage{}, false
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) bool {
	select {
	case <-mb.done:
		return false
	default:
	}
	select {
	case mb.outbound <- msg:
		return true
	case <-mb.done:
		return false
	}
}

// SubscribeOutbound returns the next outbound message. The bool is false
// when ctx is cancelled or the bus is closed.
func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-mb.outbound:
		return msg, true
	case <-mb.done:
		return OutboundMessage{}, false
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

func (mb *MessageBus) Close() {
	mb.once.Do(func() { close(mb.done) })
}
