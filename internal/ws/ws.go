package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/4xmen/memeboard/pkg/models"
)

const (
	EventMessage = "message"
	EventRead    = "read"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Hub fans out live message and read-receipt events to connected wallets.
// Clients still poll, so a dropped event only delays an update until the
// next tick.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

type Client struct {
	wallet string
	conn   *websocket.Conn
	hub    *Hub
	send   chan *Event
}

type Event struct {
	Type           string          `json:"type"`
	Message        *models.Message `json:"message,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	ReaderID       string          `json:"reader_id,omitempty"`
	MarkedCount    int             `json:"marked_count,omitempty"`

	recipients []string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) IsUserOnline(wallet string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[wallet]) > 0
}

// BroadcastMessage delivers a new message to both participants. The sender
// receives it too so other open sessions of the same wallet stay in sync.
func (h *Hub) BroadcastMessage(msg *models.Message) {
	h.enqueue(&Event{
		Type:           EventMessage,
		Message:        msg,
		ConversationID: models.ConversationID(msg.ReceiverID, msg.SenderID),
		recipients:     []string{msg.ReceiverID, msg.SenderID},
	})
}

// BroadcastRead tells the other participant that reader has read their messages.
func (h *Hub) BroadcastRead(reader, other string, markedCount int) {
	h.enqueue(&Event{
		Type:           EventRead,
		ConversationID: models.ConversationID(other, reader),
		ReaderID:       reader,
		MarkedCount:    markedCount,
		recipients:     []string{other},
	})
}

func (h *Hub) enqueue(e *Event) {
	select {
	case h.broadcast <- e:
	default:
		log.Printf("ws: broadcast queue full, dropping %s event", e.Type)
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.wallet] == nil {
				h.clients[client.wallet] = make(map[*Client]struct{})
			}
			h.clients[client.wallet][client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws: wallet=%s connected (online wallets: %d)", client.wallet, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.wallet]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.send)
				}
				if len(conns) == 0 {
					delete(h.clients, client.wallet)
				}
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws: wallet=%s disconnected (online wallets: %d)", client.wallet, total)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool, len(event.recipients))
	for _, wallet := range event.recipients {
		if seen[wallet] {
			continue
		}
		seen[wallet] = true
		for client := range h.clients[wallet] {
			select {
			case client.send <- event:
			default:
				log.Printf("ws: send channel full for wallet=%s", wallet)
			}
		}
	}
}

func (h *Hub) HandleWebSocket(c *gin.Context) {
	wallet := c.GetString("wallet_address")
	if wallet == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	client := &Client{
		wallet: wallet,
		conn:   conn,
		hub:    h,
		send:   make(chan *Event, 64),
	}

	h.register <- client

	go client.readPump()
	go client.writePump()
}

// readPump only keeps the connection alive; clients send nothing but pongs.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error wallet=%s: %v", c.wallet, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("ws: failed to encode %s event: %v", event.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
