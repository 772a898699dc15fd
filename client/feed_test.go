package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func TestFeedReconnectsFromCursor(t *testing.T) {
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	msg := types.Message{ID: uuid.New(), SenderID: uuid.New(), ReceiverID: uuid.New(), Content: "hi", CreatedAt: created}

	var (
		mu     sync.Mutex
		sinces []string
	)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mu.Lock()
		sinces = append(sinces, r.URL.Query().Get("since"))
		first := len(sinces) == 1
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if first {
			event, _ := types.NewRowEvent(types.TableMessages, types.EventInsert, msg)
			_ = conn.WriteJSON(event)
			return
		}
		// Hold the second connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok"})
	feed := c.Feed()
	feed.MinBackoff = 10 * time.Millisecond
	feed.MaxBackoff = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan types.RowEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- feed.Run(ctx, func(event types.RowEvent) { received <- event })
	}()

	select {
	case event := <-received:
		got, err := event.DecodeMessage()
		if err != nil || got.ID != msg.ID {
			t.Fatalf("unexpected event %+v (%v)", got, err)
		}
	case <-ctx.Done():
		t.Fatalf("no event received")
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		n := len(sinces)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("feed did not reconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if sinces[0] != "" {
		t.Fatalf("first connection should not carry a cursor, got %q", sinces[0])
	}
	if sinces[1] != created.Format(time.RFC3339Nano) {
		t.Fatalf("reconnect cursor = %q, want %q", sinces[1], created.Format(time.RFC3339Nano))
	}
	if !feed.Cursor().Equal(created) {
		t.Fatalf("cursor not advanced")
	}
}
