package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"imagetag/internal/dto"
	"imagetag/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 64
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
)

// HubService fans gallery events out to connected viewers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	pongWait   time.Duration
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		pongWait:   defaultPongWait,
		logger:     logger,
	}
}

// SetPongWait changes how long a viewer may stay silent before its read fails.
// It must be called before Run.
func (h *HubService) SetPongWait(d time.Duration) {
	h.pongWait = d
}

// PongWait is the read deadline viewers get after each pong.
func (h *HubService) PongWait() time.Duration {
	return h.pongWait
}

// Run serves registrations, broadcasts and keep-alive pings until ctx is done,
// then closes every client. All writes to viewers happen on this goroutine.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()

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
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()

		case <-ticker.C:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					h.logger.Warning("Ping failed, dropping viewer: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues event for every viewer. Events are dropped when the queue is full.
func (h *HubService) Publish(event dto.GalleryEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode %s event: %v", event.Type, err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("Event queue full, dropping %s event for image %d", event.Type, event.ImageID)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
