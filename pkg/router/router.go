// Package router turns inbound chat messages into command dispatches and
// publishes the replies back onto the bus.
package router

import (
	"context"

	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/commands"
	"github.com/sipeed/picodice/pkg/logger"
	"github.com/sipeed/picodice/pkg/metrics"
)

type Router struct {
	bus        *bus.MessageBus
	dispatcher commands.Dispatching
	metrics    *metrics.Metrics
}

func New(b *bus.MessageBus, d commands.Dispatching, m *metrics.Metrics) *Router {
	return &Router{bus: b, dispatcher: d, metrics: m}
}

// Run handles inbound messages one at a time until ctx is done or the bus
// is closed.
func (r *Router) Run(ctx context.Context) {
	logger.InfoC("router", "Router started")
	for {
		msg, ok := r.bus.ConsumeInbound(ctx)
		if !ok {
			logger.InfoC("router", "Router stopped")
			return
		}
		r.Handle(ctx, msg)
	}
}

// Handle dispatches a single inbound message.
func (r *Router) Handle(ctx context.Context, msg bus.InboundMessage) commands.Result {
	r.metrics.ObserveMessage(msg.Channel, "inbound")

	res := r.dispatcher.Dispatch(ctx, RequestFor(msg, func(reply commands.Reply) error {
		r.bus.PublishOutbound(OutboundFor(msg, reply))
		return nil
	}))

	if res.Err != nil && !commands.Reported(res.Err) {
		logger.ErrorCF("router", "Command failed", map[string]any{
			"channel": msg.Channel,
			"command": res.Command,
			"sender":  msg.SenderID,
			"error":   res.Err.Error(),
		})
	} else if res.Matched {
		logger.DebugCF("router", "Command handled", map[string]any{
			"channel": msg.Channel,
			"command": res.Command,
			"sender":  msg.SenderID,
			"direct":  msg.IsDirect(),
		})
	}
	return res
}

// RequestFor builds the dispatcher request for an inbound message.
func RequestFor(msg bus.InboundMessage, respond func(commands.Reply) error) commands.Request {
	return commands.Request{
		Channel:    msg.Channel,
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		MessageID:  msg.MessageID,
		Text:       msg.Content,
		IsAdmin:    msg.IsAdmin(),
		Respond:    respond,
	}
}

// OutboundFor addresses reply to the chat msg came from.
func OutboundFor(msg bus.InboundMessage, reply commands.Reply) bus.OutboundMessage {
	return bus.OutboundMessage{
		Channel:         msg.Channel,
		ChatID:          msg.ChatID,
		Content:         reply.Text,
		Private:         reply.Private,
		Recipients:      reply.Recipients,
		DeleteMessageID: reply.DeleteMessageID,
	}
}
