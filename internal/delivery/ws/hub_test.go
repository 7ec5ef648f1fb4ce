package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.subscribers(room) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s has %d subscribers, want %d", room, hub.subscribers(room), want)
}

func TestHubDeliversToRoom(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(SubscribeHandler(hub))
	defer srv.Close()

	conn := dial(t, srv, "?runID=run-1")
	waitForSubscribers(t, hub, "run-1", 1)

	hub.SendToRoom("run-1", []byte(`{"stage":"transcribing"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != `{"stage":"transcribing"}` {
		t.Fatalf("msg = %s", msg)
	}
}

func TestHubDefaultRoomIsAll(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(SubscribeHandler(hub))
	defer srv.Close()

	conn := dial(t, srv, "")
	waitForSubscribers(t, hub, AllRuns, 1)

	hub.SendToRoom(AllRuns, []byte("hello"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "hello" {
		t.Fatalf("msg = %s", msg)
	}
}

func TestHubRoomsAreIsolated(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(SubscribeHandler(hub))
	defer srv.Close()

	connA := dial(t, srv, "?runID=a")
	dial(t, srv, "?runID=b")
	waitForSubscribers(t, hub, "a", 1)
	waitForSubscribers(t, hub, "b", 1)

	hub.SendToRoom("a", []byte("for-a"))

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := connA.ReadMessage()
	if err != nil {
		t.Fatalf("read a: %v", err)
	}
	if string(msg) != "for-a" {
		t.Fatalf("msg = %s", msg)
	}
	if n := hub.subscribers("b"); n != 1 {
		t.Fatalf("room b has %d subscribers, want 1", n)
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(SubscribeHandler(hub))
	defer srv.Close()

	conn := dial(t, srv, "?runID=run-1")
	waitForSubscribers(t, hub, "run-1", 1)

	conn.Close()
	waitForSubscribers(t, hub, "run-1", 0)

	// Sending into an empty room is a no-op.
	hub.SendToRoom("run-1", []byte("late"))
}
