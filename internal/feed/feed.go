// Package feed carries row change events from the broker to connected
// clients.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/bazaar-market/apiserver/internal/mq"
	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

const sessionBufferSize = 64

var (
	// ErrSlowConsumer ends a session that fell too far behind.
	ErrSlowConsumer = errors.New("feed: slow consumer")
	// ErrHubClosed ends every session when the hub shuts down.
	ErrHubClosed = errors.New("feed: hub closed")
)

// Publisher writes row change events to the broker.
type Publisher struct {
	mq      *mq.MQ
	channel string
}

func NewPublisher(queue *mq.MQ, channel string) *Publisher {
	return &Publisher{mq: queue, channel: channel}
}

// Publish encodes the event and sends it on the feed channel.
func (p *Publisher) Publish(ctx context.Context, event types.RowEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{
		"table": event.Table,
		"type":  event.Type,
	})
	return err
}

// Subscriber is the part of the broker the hub consumes from.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Session receives the events addressed to one connected user.
// Events is closed when the session is unregistered, dropped for falling
// behind, or the hub closes.
type Session struct {
	UserID uuid.UUID
	Events <-chan types.RowEvent

	events chan types.RowEvent
	err    error
}

// Err reports why the hub ended the session: ErrSlowConsumer, ErrHubClosed,
// or nil after a plain Unregister. It is only meaningful once Events is
// closed.
func (s *Session) Err() error {
	return s.err
}

// Hub fans broker events out to sessions. A session only receives events
// for rows its user is a party to; narrower filtering is up to the client.
type Hub struct {
	subscriber Subscriber
	channel    string

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

func NewHub(subscriber Subscriber, channel string) *Hub {
	return &Hub{
		subscriber: subscriber,
		channel:    channel,
		sessions:   make(map[*Session]struct{}),
	}
}

// Run consumes the feed channel until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, h.channel, func(ctx context.Context, msg mq.Message) error {
		var event types.RowEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// Malformed payloads are dropped rather than redelivered forever.
			log.Printf("feed: discarding malformed event %s: %v", msg.ID, err)
			return nil
		}
		h.Dispatch(event)
		return nil
	})
}

// Register adds a session for user.
func (h *Hub) Register(userID uuid.UUID) *Session {
	events := make(chan types.RowEvent, sessionBufferSize)
	session := &Session{UserID: userID, Events: events, events: events}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		session.err = ErrHubClosed
		close(events)
		return session
	}
	h.sessions[session] = struct{}{}
	return session
}

// Unregister removes the session and closes its event channel.
func (h *Hub) Unregister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[session]; ok {
		h.end(session, nil)
	}
}

// Close ends every session with ErrHubClosed. Sessions registered later are
// ended immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for session := range h.sessions {
		h.end(session, ErrHubClosed)
	}
}

// end removes a session and closes its channel. h.mu must be held.
func (h *Hub) end(session *Session, err error) {
	delete(h.sessions, session)
	session.err = err
	close(session.events)
}

// Sessions returns the number of registered sessions.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Dispatch delivers event to every session whose user is a party to the row.
func (h *Hub) Dispatch(event types.RowEvent) {
	parties := Parties(event)
	if len(parties) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for session := range h.sessions {
		if !containsID(parties, session.UserID) {
			continue
		}
		select {
		case session.events <- event:
		default:
			log.Printf("feed: dropping slow session for user %s", session.UserID)
			h.end(session, ErrSlowConsumer)
		}
	}
}

// Parties returns the users a row concerns: sender and receiver of a
// message, buyer and seller of an offer.
func Parties(event types.RowEvent) []uuid.UUID {
	switch event.Table {
	case types.TableMessages:
		msg, err := event.DecodeMessage()
		if err != nil {
			return nil
		}
		return []uuid.UUID{msg.SenderID, msg.ReceiverID}
	case types.TableOffers:
		offer, err := event.DecodeOffer()
		if err != nil {
			return nil
		}
		return []uuid.UUID{offer.BuyerID, offer.SellerID}
	default:
		return nil
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
