package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mentorhub/backend/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 256
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by the CORS middleware
	},
}

// wsAction is a message sent by a websocket client. Channel is a document version id.
type wsAction struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// WSClient is one websocket connection and its channel subscriptions.
type WSClient struct {
	hub      *WSHub
	conn     *websocket.Conn
	send     chan []byte
	userID   uint
	channels map[string]bool
}

// ChannelAuthorizer decides whether a user may join a channel.
type ChannelAuthorizer func(userID uint, channel string) bool

type wsBroadcast struct {
	channel string
	data    []byte
}

// WSHub delivers feedback events to websocket clients subscribed to a document version.
type WSHub struct {
	clients     map[*WSClient]bool
	channelSubs map[string]map[*WSClient]bool
	unregister  chan *WSClient
	broadcast   chan wsBroadcast
	done        chan struct{}
	authorize   ChannelAuthorizer
	mu          sync.RWMutex
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:     make(map[*WSClient]bool),
		channelSubs: make(map[string]map[*WSClient]bool),
		unregister:  make(chan *WSClient),
		broadcast:   make(chan wsBroadcast, 256),
		done:        make(chan struct{}),
	}
}

// SetAuthorizer guards subscriptions. Without one every channel is open.
func (h *WSHub) SetAuthorizer(fn ChannelAuthorizer) {
	h.mu.Lock()
	h.authorize = fn
	h.mu.Unlock()
}

func (h *WSHub) allowed(userID uint, channel string) bool {
	h.mu.RLock()
	fn := h.authorize
	h.mu.RUnlock()
	return fn == nil || fn(userID, channel)
}

// Run is the hub loop. It returns when ctx is cancelled.
func (h *WSHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.channelSubs[msg.channel] {
				select {
				case client.send <- msg.data:
				default:
					// send buffer full
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *WSHub) dropLocked(client *WSClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for ch := range client.channels {
		if subs, ok := h.channelSubs[ch]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.channelSubs, ch)
			}
		}
	}
	close(client.send)
}

// Deliver implements EventSink.
func (h *WSHub) Deliver(event FeedbackEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("[WS] marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- wsBroadcast{channel: event.DocumentVersionID, data: data}:
	default:
		logger.Warnf("[WS] broadcast queue full, dropping %s", event.Kind)
	}
}

func (h *WSHub) subscribe(client *WSClient, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	client.channels[channel] = true
	if h.channelSubs[channel] == nil {
		h.channelSubs[channel] = make(map[*WSClient]bool)
	}
	h.channelSubs[channel][client] = true
}

func (h *WSHub) unsubscribe(client *WSClient, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.channels, channel)
	if subs, ok := h.channelSubs[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channelSubs, channel)
		}
	}
}

// ClientCount returns the number of connected websocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to channel.
func (h *WSHub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channelSubs[channel])
}

func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("[WS] unexpected close for user %d: %v", c.userID, err)
			}
			return
		}

		var action wsAction
		if err := json.Unmarshal(message, &action); err != nil {
			logger.Debugf("[WS] invalid message from user %d: %v", c.userID, err)
			continue
		}
		if action.Channel == "" {
			continue
		}

		switch action.Action {
		case "subscribe":
			if !c.hub.allowed(c.userID, action.Channel) {
				logger.Debugf("[WS] user %d denied channel %s", c.userID, action.Channel)
				continue
			}
			c.hub.subscribe(c, action.Channel)
		case "unsubscribe":
			c.hub.unsubscribe(c, action.Channel)
		default:
			logger.Debugf("[WS] unknown action %q", action.Action)
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Serve upgrades the request and registers the connection for userID.
func (h *WSHub) Serve(w http.ResponseWriter, r *http.Request, userID uint) error {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &WSClient{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, wsSendBuffer),
		userID:   userID,
		channels: make(map[string]bool),
	}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()
	return nil
}
