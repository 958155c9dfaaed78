// Package stream pushes simulation progress and completed results to
// websocket subscribers. Clients subscribe to portfolio IDs; the engine
// never blocks on a slow subscriber.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfolio/risk-engine/internal/simulation"
	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

// Hub maintains the set of active clients and routes updates to them
type Hub struct {
	clients       map[*Client]bool
	broadcast     chan []byte
	register      chan *Client
	unregister    chan *Client
	subscriptions map[string]map[*Client]bool // portfolio ID -> clients
	log           *logger.Logger
	mu            sync.RWMutex
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	closed        bool // guarded by hub.mu; set once when send is closed
	id            string
	subscriptions map[string]bool // portfolio IDs this client follows
	mu            sync.RWMutex
}

// Message represents a websocket message
type Message struct {
	Type        string      `json:"type"`
	PortfolioID string      `json:"portfolio_id,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Error       string      `json:"error,omitempty"`
	ID          string      `json:"id,omitempty"`
}

// SubscriptionMessage is a client subscription request
type SubscriptionMessage struct {
	Type       string   `json:"type"`
	Portfolios []string `json:"portfolios"`
	ID         string   `json:"id,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// NewHub creates a new websocket hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		broadcast:     make(chan []byte, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(map[string]map[*Client]bool),
		log:           logger.GetLogger("stream.hub"),
	}
}

// Run starts the hub loop
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting progress stream hub")

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Progress stream hub shutting down")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.log.Infof("Client %s registered", client.id)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.dropSubscriptions(client)
				h.closeSend(client)
				h.log.Infof("Client %s unregistered", client.id)
			}

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// HandleWebSocket handles websocket upgrade and client management
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            generateClientID(),
		subscriptions: make(map[string]bool),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// Reporter adapts the hub into a per-run progress reporter for the given
// portfolio
func (h *Hub) Reporter(portfolioID string) simulation.ProgressReporter {
	return simulation.ReporterFunc(func(u models.ProgressUpdate) {
		h.BroadcastProgress(portfolioID, u)
	})
}

// BroadcastProgress pushes a progress update to the portfolio's subscribers
func (h *Hub) BroadcastProgress(portfolioID string, update models.ProgressUpdate) {
	h.sendToSubscribers(portfolioID, Message{
		Type:        "simulation_progress",
		PortfolioID: portfolioID,
		Data:        update,
	})
}

// BroadcastResult pushes a completed simulation result to the portfolio's
// subscribers
func (h *Hub) BroadcastResult(portfolioID string, result *models.SimulationResult) {
	h.sendToSubscribers(portfolioID, Message{
		Type:        "simulation_result",
		PortfolioID: portfolioID,
		Data:        result,
	})
}

// sendToSubscribers fans a message out to the portfolio's subscribers. The
// sends happen under the read lock; closeSend takes the write lock, so a
// channel is never closed while a send on it is in flight. Stalled clients
// are collected and dropped after the lock is released.
func (h *Hub) sendToSubscribers(portfolioID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}

	var stalled []*Client
	h.mu.RLock()
	for client := range h.subscriptions[portfolioID] {
		select {
		case client.send <- data:
		default:
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		h.log.Warnf("Dropping stalled client %s", client.id)
		h.dropSlowClient(client)
	}
}

// dropSlowClient detaches a stalled client without touching state the Run
// loop owns: its subscriptions go away immediately so later broadcasts skip
// it, and the Run loop is asked to unregister it. If the Run loop is busy
// the pump teardown unregisters it instead.
func (h *Hub) dropSlowClient(client *Client) {
	h.dropSubscriptions(client)
	select {
	case h.unregister <- client:
	default:
	}
}

// closeSend closes the client's send channel exactly once, under the write
// lock so no broadcaster is mid-send on it. Called from the Run loop only.
func (h *Hub) closeSend(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageData, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Errorf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(messageData)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(messageData []byte) {
	var msg SubscriptionMessage
	if err := json.Unmarshal(messageData, &msg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch msg.Type {
	case "subscribe":
		c.handleSubscription(msg)
	case "unsubscribe":
		c.handleUnsubscription(msg)
	case "ping":
		c.sendMessage(Message{Type: "pong", ID: msg.ID})
	default:
		c.sendError("Unknown message type")
	}
}

// handleSubscription handles subscription requests
func (c *Client) handleSubscription(msg SubscriptionMessage) {
	c.mu.Lock()
	for _, portfolioID := range msg.Portfolios {
		c.subscriptions[portfolioID] = true
	}
	c.mu.Unlock()

	c.hub.mu.Lock()
	for _, portfolioID := range msg.Portfolios {
		if c.hub.subscriptions[portfolioID] == nil {
			c.hub.subscriptions[portfolioID] = make(map[*Client]bool)
		}
		c.hub.subscriptions[portfolioID][c] = true
	}
	c.hub.mu.Unlock()

	c.sendMessage(Message{
		Type: "subscription_confirmed",
		Data: map[string]interface{}{
			"portfolios": msg.Portfolios,
		},
		ID: msg.ID,
	})
}

// handleUnsubscription handles unsubscription requests
func (c *Client) handleUnsubscription(msg SubscriptionMessage) {
	c.mu.Lock()
	for _, portfolioID := range msg.Portfolios {
		delete(c.subscriptions, portfolioID)
	}
	c.mu.Unlock()

	c.hub.mu.Lock()
	for _, portfolioID := range msg.Portfolios {
		if clients, exists := c.hub.subscriptions[portfolioID]; exists {
			delete(clients, c)
			if len(clients) == 0 {
				delete(c.hub.subscriptions, portfolioID)
			}
		}
	}
	c.hub.mu.Unlock()

	c.sendMessage(Message{
		Type: "unsubscription_confirmed",
		Data: map[string]interface{}{
			"portfolios": msg.Portfolios,
		},
		ID: msg.ID,
	})
}

// sendMessage sends a message to the client, dropping it if its buffer is
// full
func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Errorf("Failed to marshal message: %v", err)
		return
	}

	var stalled bool
	c.hub.mu.RLock()
	if !c.closed {
		select {
		case c.send <- data:
		default:
			stalled = true
		}
	}
	c.hub.mu.RUnlock()

	if stalled {
		c.hub.dropSlowClient(c)
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(errorMsg string) {
	c.sendMessage(Message{
		Type:  "error",
		Error: errorMsg,
	})
}

// dropSubscriptions removes every subscription the client holds. The
// client's own set is read first so the hub and client locks are never held
// together.
func (h *Hub) dropSubscriptions(client *Client) {
	client.mu.RLock()
	portfolios := make([]string, 0, len(client.subscriptions))
	for portfolioID := range client.subscriptions {
		portfolios = append(portfolios, portfolioID)
	}
	client.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, portfolioID := range portfolios {
		if clients, exists := h.subscriptions[portfolioID]; exists {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.subscriptions, portfolioID)
			}
		}
	}
}

// broadcastToClients broadcasts a message to all connected clients. Called
// from the Run loop only, so it may unregister stalled clients directly.
func (h *Hub) broadcastToClients(message []byte) {
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			delete(h.clients, client)
			h.dropSubscriptions(client)
			h.closeSend(client)
		}
	}
}

func generateClientID() string {
	return fmt.Sprintf("client_%d", time.Now().UnixNano())
}
