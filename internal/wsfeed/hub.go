// Package wsfeed mirrors what the operator sees onto websocket clients.
// Browsers connect to /ws, receive the recent history and then every new
// event as a JSON text frame. The feed is read-only: frames sent by clients
// are discarded.
package wsfeed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"meshchat/internal/util"
	"meshchat/internal/wire"
)

const (
	// HistorySize is how many past events a new client receives.
	HistorySize = 200

	sendBuffer = HistorySize + 64
	writeWait  = 10 * time.Second
)

const (
	TypeMessage = "message"
	TypeSystem  = "system"
)

// Event is the JSON payload sent to clients.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Sender  string    `json:"sender,omitempty"`
	Addr    string    `json:"addr,omitempty"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

type client struct {
	id     string
	socket *websocket.Conn
	send   chan []byte
}

// Hub tracks websocket clients and fans display events out to them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	history    *util.RingBuffer[[]byte]

	upgrader websocket.Upgrader

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub starts the hub loop.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		history:    util.NewRingBuffer[[]byte](HistorySize),
		upgrader: websocket.Upgrader{
			// The mirror is read-only and normally bound to loopback.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			for _, data := range h.history.Snapshot() {
				c.send <- data
			}
			h.clients[c] = true
			log.Printf("WS: client %s connected (%d total)", c.id, len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				log.Printf("WS: client %s disconnected", c.id)
			}

		case data := <-h.broadcast:
			h.history.Push(data)
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Too slow to keep up; drop it rather than stall the feed.
					delete(h.clients, c)
					close(c.send)
					log.Printf("WS: client %s dropped, send buffer full", c.id)
				}
			}

		case <-h.quit:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		}
	}
}

func (h *Hub) ShowMessage(msg wire.Message) {
	h.publish(Event{
		Type:    TypeMessage,
		Sender:  msg.SenderName,
		Addr:    msg.SenderAddr.String(),
		Content: msg.Content,
	})
}

func (h *Hub) ShowSystem(text string) {
	h.publish(Event{Type: TypeSystem, Content: text})
}

func (h *Hub) publish(ev Event) {
	ev.ID = uuid.NewString()
	ev.Time = time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("WS: failed to marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// ServeHTTP upgrades the request and attaches the client to the feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		log.Printf("WS: upgrade failed: %v", err)
		return
	}

	c := &client{id: uuid.NewString(), socket: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.read(c)
	go h.write(c)
}

// read discards client frames and notices when the client goes away.
func (h *Hub) read(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.socket.Close()
	}()

	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) write(c *client) {
	defer c.socket.Close()

	for data := range c.send {
		c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	c.socket.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "chat closed"))
}

// Close disconnects every client and stops the hub. Later events are
// dropped.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.quit)
		<-h.done
	})
}
