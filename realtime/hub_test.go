package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
)

func newTestHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub, cancel
}

func receive(t *testing.T, c *Client) WebSocketMessage {
	t.Helper()
	select {
	case raw, ok := <-c.Messages():
		if !ok {
			t.Fatal("client channel closed")
		}
		var msg WebSocketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return WebSocketMessage{}
}

func TestHub_PublishReachesOnlyMatchRoom(t *testing.T) {
	hub, _ := newTestHub(t)

	match := &models.Match{ID: 7, TournamentID: 1}
	watcher := NewClient(hub, nil, models.MatchRoom(7))
	other := NewClient(hub, nil, models.MatchRoom(8))
	for _, c := range []*Client{watcher, other} {
		if !hub.Register(c) {
			t.Fatal("Register returned false on a running hub")
		}
	}
	if n := hub.RoomSize(models.MatchRoom(7)); n != 1 {
		t.Errorf("room size = %d, want 1", n)
	}

	event := models.NewMatchEvent(match, models.EventSelectionMade, map[string]string{"selection": "dust2"})
	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := receive(t, watcher)
	if msg.Type != string(models.EventSelectionMade) || msg.RoomID != "match_7" {
		t.Errorf("message = %+v", msg)
	}
	select {
	case raw := <-other.Messages():
		t.Errorf("other room received %s", raw)
	default:
	}
}

func TestHub_SendToAndUnregister(t *testing.T) {
	hub, _ := newTestHub(t)
	client := NewClient(hub, nil, "match_1")
	hub.Register(client)

	if !hub.SendTo(client, WebSocketMessage{Type: "match_state"}) {
		t.Fatal("SendTo returned false for a registered client")
	}
	if msg := receive(t, client); msg.Type != "match_state" {
		t.Errorf("type = %q, want match_state", msg.Type)
	}

	hub.Unregister(client)
	if _, ok := <-client.Messages(); ok {
		t.Error("channel still open after Unregister")
	}
	if hub.SendTo(client, WebSocketMessage{Type: "match_state"}) {
		t.Error("SendTo succeeded for a removed client")
	}
	if n := hub.RoomSize("match_1"); n != 0 {
		t.Errorf("room size = %d, want 0", n)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, cancel := newTestHub(t)
	client := NewClient(hub, nil, "match_3")
	hub.Register(client)

	cancel()
	<-hub.done

	if _, ok := <-client.Messages(); ok {
		t.Error("channel still open after shutdown")
	}
	if hub.Register(NewClient(hub, nil, "match_3")) {
		t.Error("Register succeeded on a stopped hub")
	}
	// Unregister после остановки не блокируется.
	hub.Unregister(client)
}
