package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fairplay/entropy"
	"fairplay/fairness"
)

func dial(t *testing.T, h *Hub, session string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeSession(w, r, session)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers(session) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return ev
}

func TestHubStreamsSessionEvents(t *testing.T) {
	h := NewHub()
	conn := dial(t, h, "s1")
	other := dial(t, h, "s2")

	e := fairness.Entry{Label: "roll-1", Seed: strings.Repeat("ab", 32), Block: entropy.BlockRecord{Hash: "0x01", TimestampMillis: 5}}
	h.Derived("s1", e)
	h.Revealed(fairness.Reveal{SessionID: "s1", Secret: "sec", SecretHash: "hash"})

	ev := readEvent(t, conn)
	if ev.Type != EventDerived || ev.Entry == nil || ev.Entry.Label != "roll-1" || ev.Entry.Seed != e.Seed {
		t.Fatalf("first event = %+v", ev)
	}
	ev = readEvent(t, conn)
	if ev.Type != EventRevealed || ev.Reveal == nil || ev.Reveal.Secret != "sec" {
		t.Fatalf("second event = %+v", ev)
	}

	// s2 saw nothing from s1.
	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Fatal("event leaked to another session")
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	h := NewHub()
	conn := dial(t, h, "s1")
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers("s1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed client still subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Broadcasting to an empty session is a no-op.
	h.Derived("s1", fairness.Entry{Label: "x"})
}

func TestHubDropsSlowClients(t *testing.T) {
	h := NewHub()
	c := &client{id: "slow", session: "s", send: make(chan []byte, 1)}
	h.register(c)

	h.Derived("s", fairness.Entry{Label: "a"})
	h.Derived("s", fairness.Entry{Label: "b"})

	if h.Subscribers("s") != 0 {
		t.Fatal("slow client was kept")
	}
	if _, ok := <-c.send; !ok {
		t.Fatal("queued event lost")
	}
	if _, ok := <-c.send; ok {
		t.Fatal("send channel not closed")
	}
	h.unregister(c)
}
