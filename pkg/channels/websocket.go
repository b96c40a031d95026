package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/config"
	"github.com/sipeed/picodice/pkg/logger"
)

const wsWriteTimeout = 10 * time.Second

func init() {
	RegisterFactory("websocket", func(cfg *config.Config, b *bus.MessageBus) (Channel, error) {
		return NewWebSocketChannel(cfg.Channels.WebSocket, b)
	})
}

// wsIncoming is the JSON message a client sends.
type wsIncoming struct {
	Content    string `json:"content"`
	SenderName string `json:"sender_name,omitempty"`
}

// wsOutgoing is the JSON message sent to clients. Type is "message",
// "private" or "delete".
type wsOutgoing struct {
	Type      string `json:"type"`
	ChatID    string `json:"chat_id,omitempty"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// wsAck confirms receipt of a client message and carries its ID so the
// client can act on a later delete event.
type wsAck struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
}

type wsClient struct {
	id     string
	name   string
	chatID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (cl *wsClient) write(v any) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return cl.conn.WriteJSON(v)
}

// WebSocketChannel serves a JSON protocol for local and web clients.
// Clients connect with ?client_id=<id>&name=<display name>&room=<room>.
// Clients sharing a room share a chat; without a room each connection is
// its own chat.
type WebSocketChannel struct {
	*BaseChannel
	config   config.WebSocketConfig
	server   *http.Server
	upgrader websocket.Upgrader
	clients  map[*wsClient]struct{}
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewWebSocketChannel(cfg config.WebSocketConfig, msgBus *bus.MessageBus) (*WebSocketChannel, error) {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	return &WebSocketChannel{
		BaseChannel: NewBaseChannel("websocket", msgBus, cfg.AllowFrom),
		config:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
		ctx:     context.Background(),
	}, nil
}

func (c *WebSocketChannel) Start(ctx context.Context) error {
	logger.InfoC("websocket", "Starting WebSocket channel server")

	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(c.config.Path, c.handleWS)
	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	c.setRunning(true)

	logger.InfoCF("websocket", "WebSocket server listening", map[string]any{
		"addr": ln.Addr().String(),
		"path": c.config.Path,
	})

	go func() {
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("websocket", "Server error", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

func (c *WebSocketChannel) Stop(ctx context.Context) error {
	logger.InfoC("websocket", "Stopping WebSocket channel")
	c.setRunning(false)

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	for cl := range c.clients {
		logger.DebugCF("websocket", "Closing client connection", map[string]any{
			"client_id": cl.id,
		})
		cl.conn.Close()
	}
	c.clients = make(map[*wsClient]struct{})
	c.mu.Unlock()

	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("websocket server shutdown: %w", err)
		}
	}

	logger.InfoC("websocket", "WebSocket channel stopped")
	return nil
}

func (c *WebSocketChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("websocket channel not running")
	}
	targets := c.clientsWhere(func(cl *wsClient) bool { return cl.chatID == msg.ChatID })
	if len(targets) == 0 {
		return fmt.Errorf("no connection for chat %s", msg.ChatID)
	}
	return c.writeAll(targets, wsOutgoing{Type: "message", ChatID: msg.ChatID, Content: msg.Content})
}

// SendDirect writes to every connection of the client with the given ID.
func (c *WebSocketChannel) SendDirect(ctx context.Context, userID, content string) error {
	if !c.IsRunning() {
		return fmt.Errorf("websocket channel not running")
	}
	targets := c.clientsWhere(func(cl *wsClient) bool { return cl.id == userID })
	if len(targets) == 0 {
		return fmt.Errorf("no connection for client %s", userID)
	}
	return c.writeAll(targets, wsOutgoing{Type: "private", Content: content})
}

// DeleteMessage tells the clients in chatID to remove a message.
func (c *WebSocketChannel) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	targets := c.clientsWhere(func(cl *wsClient) bool { return cl.chatID == chatID })
	return c.writeAll(targets, wsOutgoing{Type: "delete", ChatID: chatID, MessageID: messageID})
}

func (c *WebSocketChannel) clientsWhere(match func(*wsClient) bool) []*wsClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*wsClient
	for cl := range c.clients {
		if match(cl) {
			out = append(out, cl)
		}
	}
	return out
}

func (c *WebSocketChannel) writeAll(targets []*wsClient, v wsOutgoing) error {
	var firstErr error
	for _, cl := range targets {
		if err := cl.write(v); err != nil {
			logger.ErrorCF("websocket", "Failed to send message", map[string]any{
				"client_id": cl.id,
				"error":     err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *WebSocketChannel) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorCF("websocket", "Upgrade failed", map[string]any{
			"error": err.Error(),
		})
		return
	}

	q := r.URL.Query()
	cl := &wsClient{
		// "|" separates id and username in allow list checks.
		id:   strings.ReplaceAll(q.Get("client_id"), "|", ""),
		name: q.Get("name"),
		conn: conn,
	}
	if cl.id == "" {
		cl.id = uuid.NewString()
	}
	cl.chatID = "ws:" + cl.id
	if room := q.Get("room"); room != "" {
		cl.chatID = "ws:room:" + room
	}

	logger.InfoCF("websocket", "New WebSocket connection", map[string]any{
		"client_id":   cl.id,
		"chat_id":     cl.chatID,
		"remote_addr": r.RemoteAddr,
	})

	c.mu.Lock()
	c.clients[cl] = struct{}{}
	c.mu.Unlock()

	go c.readPump(cl)
}

func (c *WebSocketChannel) readPump(cl *wsClient) {
	defer func() {
		c.mu.Lock()
		delete(c.clients, cl)
		c.mu.Unlock()
		cl.conn.Close()

		logger.InfoCF("websocket", "Client disconnected", map[string]any{
			"client_id": cl.id,
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.ErrorCF("websocket", "Read error", map[string]any{
					"client_id": cl.id,
					"error":     err.Error(),
				})
			}
			return
		}

		var incoming wsIncoming
		if err := json.Unmarshal(data, &incoming); err != nil {
			logger.ErrorCF("websocket", "Invalid JSON message", map[string]any{
				"client_id": cl.id,
				"error":     err.Error(),
			})
			continue
		}
		if incoming.Content == "" {
			continue
		}

		name := cl.name
		if incoming.SenderName != "" {
			name = incoming.SenderName
		}
		if name == "" {
			name = cl.id
		}

		messageID := uuid.NewString()
		if err := cl.write(wsAck{Type: "ack", MessageID: messageID}); err != nil {
			return
		}

		logger.DebugCF("websocket", "Received message", map[string]any{
			"client_id": cl.id,
			"content":   incoming.Content,
		})

		c.HandleMessage(cl.id, name, cl.chatID, messageID, incoming.Content, map[string]string{
			"is_dm": strconv.FormatBool(cl.chatID == "ws:"+cl.id),
		})
	}
}
