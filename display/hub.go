package display

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Message is the JSON frame pushed to browser clients.
type Message struct {
	Type  string `json:"type"`
	Field Field  `json:"field,omitempty"`
	Text  string `json:"text"`
	Done  int    `json:"done,omitempty"`
	Total int    `json:"total,omitempty"`
}

// Hub broadcasts display updates to websocket clients. New clients get the
// current state first.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	quit       chan struct{}
	mutex      sync.RWMutex
	state      State
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.sendSnapshot(client)
			h.logger.Debug("Display client connected", "total", h.ClientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.logger.Debug("Display client disconnected", "total", h.ClientCount())

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warn("Error sending display update", "error", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) sendSnapshot(client *websocket.Conn) {
	var msgs []Message
	for f, text := range h.state.Fields() {
		msgs = append(msgs, Message{Type: "field", Field: f, Text: text})
	}
	if done, total := h.state.Progression(); total > 0 {
		msgs = append(msgs, Message{Type: "progress", Done: done, Total: total})
	}
	for _, m := range msgs {
		if err := client.WriteJSON(m); err != nil {
			h.mutex.Lock()
			delete(h.clients, client)
			h.mutex.Unlock()
			client.Close()
			return
		}
	}
}

func (h *Hub) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.Close()
	}
}

func (h *Hub) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.quit:
		client.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.logger.Warn("Display update dropped, hub is busy")
	}
}

func (h *Hub) Show(field Field, text string) {
	h.state.Show(field, text)
	h.publish(Message{Type: "field", Field: field, Text: text})
}

func (h *Hub) Progress(done, total int) {
	h.state.Progress(done, total)
	h.publish(Message{Type: "progress", Done: done, Total: total})
}

// Fields returns the current value of every field.
func (h *Hub) Fields() map[Field]string {
	return h.state.Fields()
}
