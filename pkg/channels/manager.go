// PicoDice - Dice rolling bot for chat platforms
// License: MIT
//
// Copyright (c) 2026 PicoDice contributors

package channels

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/config"
	"github.com/sipeed/picodice/pkg/logger"
	"github.com/sipeed/picodice/pkg/metrics"
	"github.com/sipeed/picodice/pkg/utils"
)

const defaultChannelQueueSize = 100

type channelWorker struct {
	ch    Channel
	queue chan bus.OutboundMessage
	done  chan struct{}
}

type Manager struct {
	channels     map[string]Channel
	workers      map[string]*channelWorker
	bus          *bus.MessageBus
	config       *config.Config
	metrics      *metrics.Metrics
	dispatchTask *asyncTask
	mu           sync.RWMutex
}

type asyncTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates the channels enabled in cfg. cfg may be nil when
// channels are registered by hand.
func NewManager(cfg *config.Config, messageBus *bus.MessageBus, m *metrics.Metrics) (*Manager, error) {
	mgr := &Manager{
		channels: make(map[string]Channel),
		workers:  make(map[string]*channelWorker),
		bus:      messageBus,
		config:   cfg,
		metrics:  m,
	}

	if cfg != nil {
		mgr.initChannels()
	}

	return mgr, nil
}

// initChannel is a helper that looks up a factory by name and creates the channel.
func (m *Manager) initChannel(name, displayName string) {
	f, ok := getFactory(name)
	if !ok {
		logger.WarnCF("channels", "Factory not registered", map[string]any{
			"channel": displayName,
		})
		return
	}
	logger.DebugCF("channels", "Attempting to initialize channel", map[string]any{
		"channel": displayName,
	})
	ch, err := f(m.config, m.bus)
	if err != nil {
		logger.ErrorCF("channels", "Failed to initialize channel", map[string]any{
			"channel": displayName,
			"error":   err.Error(),
		})
		return
	}
	m.channels[name] = ch
	m.workers[name] = newWorker(ch)
	logger.InfoCF("channels", "Channel enabled successfully", map[string]any{
		"channel": displayName,
	})
}

func newWorker(ch Channel) *channelWorker {
	return &channelWorker{
		ch:    ch,
		queue: make(chan bus.OutboundMessage, defaultChannelQueueSize),
		done:  make(chan struct{}),
	}
}

func (m *Manager) initChannels() {
	logger.InfoC("channels", "Initializing channel manager")

	c := m.config.Channels
	if c.Discord.Enabled && c.Discord.Token != "" {
		m.initChannel("discord", "Discord")
	}
	if c.Telegram.Enabled && c.Telegram.Token != "" {
		m.initChannel("telegram", "Telegram")
	}
	if c.Slack.Enabled && c.Slack.BotToken != "" && c.Slack.AppToken != "" {
		m.initChannel("slack", "Slack")
	}
	if c.WebSocket.Enabled {
		m.initChannel("websocket", "WebSocket")
	}

	logger.InfoCF("channels", "Channel initialization completed", map[string]any{
		"enabled_channels": len(m.channels),
	})
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.channels) == 0 {
		logger.WarnC("channels", "No channels enabled")
		return nil
	}

	logger.InfoC("channels", "Starting all channels")

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.dispatchTask = &asyncTask{cancel: cancel, done: make(chan struct{})}

	for name, channel := range m.channels {
		logger.InfoCF("channels", "Starting channel", map[string]any{
			"channel": name,
		})
		if err := channel.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
		m.metrics.SetChannelRunning(name, channel.IsRunning())
	}

	for name, w := range m.workers {
		go m.runWorker(dispatchCtx, name, w)
	}

	go m.dispatchOutbound(dispatchCtx, m.dispatchTask.done)

	logger.InfoC("channels", "All channels started")
	return nil
}

func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	task := m.dispatchTask
	m.dispatchTask = nil
	m.mu.Unlock()

	if task == nil {
		return nil
	}

	logger.InfoC("channels", "Stopping all channels")

	// The dispatcher must be gone before worker queues are closed.
	task.cancel()
	<-task.done

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, w := range m.workers {
		close(w.queue)
	}
	for _, w := range m.workers {
		<-w.done
	}

	for name, channel := range m.channels {
		logger.InfoCF("channels", "Stopping channel", map[string]any{
			"channel": name,
		})
		if err := channel.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Error stopping channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
		m.metrics.SetChannelRunning(name, false)
	}

	logger.InfoC("channels", "All channels stopped")
	return nil
}

func (m *Manager) runWorker(ctx context.Context, name string, w *channelWorker) {
	defer close(w.done)
	for {
		select {
		case msg, ok := <-w.queue:
			if !ok {
				return
			}
			if err := deliver(ctx, w.ch, msg); err != nil {
				logger.ErrorCF("channels", "Error delivering message", map[string]any{
					"channel": name, "error": err.Error(),
				})
				continue
			}
			m.metrics.ObserveMessage(name, "outbound")
		case <-ctx.Done():
			return
		}
	}
}

// deliver sends msg through ch. Private messages go to each recipient
// as a direct message, falling back to the chat when the channel has no
// direct messaging. The invoking message is deleted afterwards when
// requested and supported.
func deliver(ctx context.Context, ch Channel, msg bus.OutboundMessage) error {
	chunks := splitFor(ch, msg.Content)

	ds, canDM := ch.(DirectSender)
	if msg.Private && canDM && len(msg.Recipients) > 0 {
		for _, recipient := range msg.Recipients {
			for _, chunk := range chunks {
				if err := ds.SendDirect(ctx, recipient, chunk); err != nil {
					return fmt.Errorf("direct message to %s: %w", recipient, err)
				}
			}
		}
	} else {
		if msg.Private {
			logger.WarnCF("channels", "Channel cannot send direct messages, replying in chat", map[string]any{
				"channel": ch.Name(),
			})
		}
		for _, chunk := range chunks {
			out := msg
			out.Content = chunk
			if err := ch.Send(ctx, out); err != nil {
				return err
			}
		}
	}

	if msg.DeleteMessageID == "" {
		return nil
	}
	deleter, ok := ch.(MessageDeleter)
	if !ok {
		return nil
	}
	if err := deleter.DeleteMessage(ctx, msg.ChatID, msg.DeleteMessageID); err != nil {
		return fmt.Errorf("delete message %s: %w", msg.DeleteMessageID, err)
	}
	return nil
}

func splitFor(ch Channel, content string) []string {
	if mlp, ok := ch.(MessageLengthProvider); ok {
		if chunks := utils.SplitMessage(content, mlp.MaxMessageLength()); len(chunks) > 0 {
			return chunks
		}
	}
	return []string{content}
}

func (m *Manager) dispatchOutbound(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	logger.InfoC("channels", "Outbound dispatcher started")

	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			logger.InfoC("channels", "Outbound dispatcher stopped")
			return
		}

		m.mu.RLock()
		w, exists := m.workers[msg.Channel]
		m.mu.RUnlock()

		if !exists {
			logger.WarnCF("channels", "Unknown channel for outbound message", map[string]any{
				"channel": msg.Channel,
			})
			continue
		}

		select {
		case w.queue <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// GetStatus reports whether each enabled channel is running.
func (m *Manager) GetStatus() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]bool, len(m.channels))
	for name, channel := range m.channels {
		status[name] = channel.IsRunning()
	}
	return status
}

func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterChannel adds a channel before StartAll is called.
func (m *Manager) RegisterChannel(name string, channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = channel
	m.workers[name] = newWorker(channel)
}
