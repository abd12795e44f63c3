package handlers

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/realtime"
	"github.com/Dosada05/tournament-matchroom/services"
)

const MessageTypeMatchState = "match_state"

type WebSocketHandler struct {
	hub          *realtime.Hub
	matchService services.MatchService
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

// NewWebSocketHandler принимает список разрешенных Origin; "*" или пустой список разрешают все.
func NewWebSocketHandler(hub *realtime.Hub, matchService services.MatchService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	allowAll := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	return &WebSocketHandler{
		hub:          hub,
		matchService: matchService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// ServeWs подключает наблюдателя к комнате матча /ws/matches/{matchID}.
// Право доступа то же, что у чтения состояния матча.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	state, err := h.matchService.GetMatchState(r.Context(), matchID, principalFromRequest(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой.
		h.logger.Warn("websocket upgrade failed", slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}

	client := realtime.NewClient(h.hub, conn, models.MatchRoom(matchID))
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	// Первое сообщение - текущее состояние, дальше только события.
	h.hub.SendTo(client, realtime.WebSocketMessage{
		Type:    MessageTypeMatchState,
		Payload: state,
		RoomID:  client.Room,
	})
}
