package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/gorilla/websocket"
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// Feed streams row change events from GET /feed and reconnects when the
// connection drops. After a reconnect the server replays messages newer
// than the last one seen, so consumers must tolerate duplicates.
type Feed struct {
	url    string
	token  string
	dialer *websocket.Dialer

	MinBackoff time.Duration
	MaxBackoff time.Duration

	mu    sync.Mutex
	since time.Time
}

// Feed returns a live feed bound to the client's base URL and token.
func (c *Client) Feed() *Feed {
	return &Feed{
		url:        feedURL(c.cfg.BaseURL),
		token:      c.cfg.Token,
		dialer:     websocket.DefaultDialer,
		MinBackoff: defaultMinBackoff,
		MaxBackoff: defaultMaxBackoff,
	}
}

func feedURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		baseURL = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		baseURL = "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	return strings.TrimRight(baseURL, "/") + "/feed"
}

// Since sets the replay cursor used on the next connection.
func (f *Feed) Since(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.After(f.since) {
		f.since = t
	}
}

// Cursor returns the creation time of the newest message seen.
func (f *Feed) Cursor() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.since
}

// Run delivers events to handler until ctx is done, reconnecting with
// exponential backoff. It returns ctx.Err().
func (f *Feed) Run(ctx context.Context, handler func(types.RowEvent)) error {
	backoff := f.MinBackoff
	for {
		connected, err := f.stream(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = f.MinBackoff
		}
		log.Printf("feed: disconnected, retrying in %s: %v", backoff, err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > f.MaxBackoff {
			backoff = f.MaxBackoff
		}
	}
}

// stream runs one connection. connected reports whether the dial succeeded.
func (f *Feed) stream(ctx context.Context, handler func(types.RowEvent)) (connected bool, err error) {
	target, err := url.Parse(f.url)
	if err != nil {
		return false, err
	}
	if since := f.Cursor(); !since.IsZero() {
		q := target.Query()
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
		target.RawQuery = q.Encode()
	}

	header := http.Header{}
	header.Add("Authorization", "Bearer "+f.token)
	conn, resp, err := f.dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial feed: %w, status: %s", err, resp.Status)
		}
		return false, fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var event types.RowEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, errors.New("feed closed by server")
			}
			return true, err
		}
		if event.Table == types.TableMessages {
			if msg, err := event.DecodeMessage(); err == nil {
				f.Since(msg.CreatedAt)
			}
		}
		handler(event)
	}
}
