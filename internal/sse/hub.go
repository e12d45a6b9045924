package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dimitrije/passkeep/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventRecordCreated = "record_created"
	EventRecordDeleted = "record_deleted"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// RecordEvent never carries the password or notes of a record.
type RecordEvent struct {
	RecordID  uuid.UUID `json:"record_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type Client struct {
	ID      string
	OwnerID uuid.UUID
	Send    chan []byte
}

func NewClient(ownerID uuid.UUID) *Client {
	return &Client{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Send:    make(chan []byte, 64),
	}
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *OwnerMessage
	done       chan struct{}
	mu         sync.RWMutex
}

type OwnerMessage struct {
	OwnerID uuid.UUID
	Event   Event
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *OwnerMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run owns client registration and fan-out until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.Event)
			if err != nil {
				logger.Log.Error("failed to encode event", zap.String("type", msg.Event.Type), zap.Error(err))
				continue
			}
			h.mu.RLock()
			for _, client := range h.clients {
				if client.OwnerID != msg.OwnerID {
					continue
				}
				select {
				case client.Send <- data:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register and Unregister are no-ops once Run has returned.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount reports how many streams are open for ownerID.
func (h *Hub) ClientCount(ownerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, client := range h.clients {
		if client.OwnerID == ownerID {
			n++
		}
	}
	return n
}

func (h *Hub) BroadcastRecordCreated(ownerID, recordID uuid.UUID, title string, createdAt time.Time) {
	h.publish(ownerID, Event{
		Type: EventRecordCreated,
		Data: RecordEvent{RecordID: recordID, Title: title, CreatedAt: createdAt},
	})
}

func (h *Hub) BroadcastRecordDeleted(ownerID, recordID uuid.UUID) {
	h.publish(ownerID, Event{
		Type: EventRecordDeleted,
		Data: RecordEvent{RecordID: recordID},
	})
}

func (h *Hub) publish(ownerID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &OwnerMessage{OwnerID: ownerID, Event: event}:
	default:
		logger.Log.Warn("event queue full, dropping event", zap.String("type", event.Type))
	}
}
