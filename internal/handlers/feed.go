package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bazaar-market/apiserver/internal/feed"
	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedReadLimit  = 4 * 1024
)

// FeedHandler upgrades authenticated requests to a websocket that streams
// the row change events concerning the caller.
type FeedHandler struct {
	hub            *feed.Hub
	messageService *services.MessageService
	secret         []byte
	upgrader       websocket.Upgrader
}

func NewFeedHandler(hub *feed.Hub, messageService *services.MessageService, jwtSecret string) *FeedHandler {
	return &FeedHandler{
		hub:            hub,
		messageService: messageService,
		secret:         []byte(jwtSecret),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /feed. The token comes from the Authorization header
// or, for browsers, the access_token query parameter. An optional since
// parameter (RFC 3339) replays stored messages created after it before live
// events start.
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString, err := bearerToken(r)
	if err != nil {
		tokenString = strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if tokenString == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	subject, err := parseTokenSubject(tokenString, h.secret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var since time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		since, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Register before replaying so nothing committed during the replay is
	// lost; clients drop duplicates by id.
	session := h.hub.Register(userID)
	defer h.hub.Unregister(session)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		feedReadLoop(conn)
	}()

	var backlog []types.RowEvent
	if !since.IsZero() {
		backlog, err = h.replay(ctx, userID, since)
		if err != nil {
			log.Printf("feed: replay for %s since %s: %v", userID, since, err)
		}
	}
	feedWriteLoop(ctx, conn, backlog, session)
}

func (h *FeedHandler) replay(ctx context.Context, userID uuid.UUID, since time.Time) ([]types.RowEvent, error) {
	messages, err := h.messageService.Since(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	events := make([]types.RowEvent, 0, len(messages))
	for _, msg := range messages {
		event, err := types.NewRowEvent(types.TableMessages, types.EventInsert, msg)
		if err != nil {
			return nil, err
		}
		event.CommitTimestamp = msg.CreatedAt
		events = append(events, event)
	}
	return events, nil
}

// feedReadLoop discards client frames and returns when the connection
// closes or stops answering pings.
func feedReadLoop(conn *websocket.Conn) {
	conn.SetReadLimit(feedReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// feedWriteLoop owns every write to conn.
func feedWriteLoop(ctx context.Context, conn *websocket.Conn, backlog []types.RowEvent, session *feed.Session) {
	defer conn.Close()
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for _, event := range backlog {
		if err := writeFeedEvent(conn, event); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(feedWriteWait))
			return
		case event, ok := <-session.Events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, feedCloseMessage(session.Err()),
					time.Now().Add(feedWriteWait))
				return
			}
			if err := writeFeedEvent(conn, event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// feedCloseMessage tells the client why the hub ended its session.
func feedCloseMessage(reason error) []byte {
	switch {
	case errors.Is(reason, feed.ErrHubClosed):
		return websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	case errors.Is(reason, feed.ErrSlowConsumer):
		return websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "slow consumer")
	default:
		return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	}
}

func writeFeedEvent(conn *websocket.Conn, event types.RowEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	if err := conn.WriteJSON(event); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			log.Printf("feed: write: %v", err)
		}
		return err
	}
	return nil
}
