package api

import (
	"encoding/json"
	"log"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/quantor-labs/mintround/pkg/platform"
	"github.com/quantor-labs/mintround/pkg/platform/orderbook"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled by the main server.
		return true
	},
}

// Hub maintains active WebSocket connections and fans platform
// notifications out to them. It implements platform.EventSink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[ws] client connected: %s (total: %d)", client.id, len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[ws] client disconnected: %s (total: %d)", client.id, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full, drop the client.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) publish(event string, data any) {
	msg, err := json.Marshal(WSEvent{
		Type:      event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[ws] marshal error: %v", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// Broadcast queue full; events are best-effort.
	}
}

// ==============================
// platform.EventSink
// ==============================

func (h *Hub) RoundStarted(kind platform.Kind, unitPrice *big.Int) {
	h.publish("round_started", RoundStartedEvent{
		Kind:      kind.String(),
		UnitPrice: unitPrice.String(),
	})
}

func (h *Hub) OrderAdded(side orderbook.Side, amount, unitPrice *big.Int) {
	h.publish("order_added", OrderEvent{
		Side:      side.String(),
		Amount:    amount.String(),
		UnitPrice: unitPrice.String(),
	})
}

func (h *Hub) OrderRemoved(side orderbook.Side, amount, unitPrice *big.Int) {
	h.publish("order_removed", OrderEvent{
		Side:      side.String(),
		Amount:    amount.String(),
		UnitPrice: unitPrice.String(),
	})
}

func (h *Hub) TokenBought(buyer common.Address, amount *big.Int) {
	h.publish("token_bought", TokenBoughtEvent{
		Buyer:  buyer.Hex(),
		Amount: amount.String(),
	})
}

// ==============================
// Client
// ==============================

// Client represents one WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// readPump drains the connection until it closes. Clients send nothing the
// hub interprets; every connected client receives every event.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			break
		}
	}
}

// writePump pumps hub messages to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
		id:   conn.RemoteAddr().String(),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
