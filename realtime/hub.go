package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/tournament-matchroom/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// WebSocketMessage - конверт, в котором события уходят наблюдателям.
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	Room string
}

// NewClient создает клиента комнаты. conn может быть nil в тестах:
// тогда сообщения читаются напрямую из Messages.
func NewClient(hub *Hub, conn *websocket.Conn, room string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		Room: room,
	}
}

// Messages отдает канал исходящих сообщений клиента. Канал закрывается при отключении.
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// Hub держит комнаты наблюдателей матчей и рассылает им события.
// Каналы клиентов закрывает только хаб.
type Hub struct {
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	closed     bool
	mu         sync.RWMutex
	done       chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает отключение клиентов до отмены ctx, после чего отключает всех.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			for _, clients := range h.rooms {
				for client := range clients {
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
			h.logger.Info("websocket hub stopped")
			return nil
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.Room]
	if !ok || !clients[client] {
		return
	}
	close(client.send)
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, client.Room)
		h.logger.Debug("websocket room closed", slog.String("room", client.Room))
	}
}

// Register добавляет клиента в комнату. Возвращает false, если хаб уже остановлен.
// Клиент в комнате сразу после возврата, поэтому ему можно отправлять сообщения.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if _, ok := h.rooms[client.Room]; !ok {
		h.rooms[client.Room] = make(map[*Client]bool)
	}
	h.rooms[client.Room][client] = true
	h.logger.Debug("websocket client registered", slog.String("room", client.Room), slog.Int("clients", len(h.rooms[client.Room])))
	return true
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// RoomSize - число клиентов в комнате.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastToRoom отправляет сообщение всем клиентам комнаты.
// Медленные клиенты с заполненным буфером пропускают сообщение.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", slog.String("room", roomID), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		select {
		case client.send <- messageBytes:
		default:
			h.logger.Warn("websocket client send buffer full, message dropped", slog.String("room", roomID))
		}
	}
}

// SendTo отправляет сообщение одному клиенту, если он еще в комнате.
func (h *Hub) SendTo(client *Client, message interface{}) bool {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", slog.String("room", client.Room), slog.Any("error", err))
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.rooms[client.Room][client] {
		return false
	}
	select {
	case client.send <- messageBytes:
		return true
	default:
		return false
	}
}

// Publish рассылает событие матча в его комнату.
func (h *Hub) Publish(_ context.Context, event models.MatchEvent) error {
	h.BroadcastToRoom(event.Room(), WebSocketMessage{
		Type:    string(event.Type),
		Payload: event,
		RoomID:  event.Room(),
	})
	return nil
}

// ReadPump читает соединение только ради pong и закрытия: клиенты ничего не присылают.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", slog.String("room", c.Room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
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
			// Каждое событие - отдельный фрейм, иначе клиенту придется разбирать склеенный JSON.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("websocket write failed", slog.String("room", c.Room), slog.Any("error", err))
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
