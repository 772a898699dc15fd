package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// ErrEmptyContent is returned by Conversation.Send for blank messages.
// Nothing is sent to the server.
var ErrEmptyContent = errors.New("message content is empty")

// State is the load state of a Conversation.
type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SendError reports a failed send. Content is the text the user typed so
// it can be offered for resubmission.
type SendError struct {
	Content string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// MessageAPI is the part of the REST client a Conversation needs.
type MessageAPI interface {
	Conversation(ctx context.Context, other uuid.UUID) ([]types.Message, error)
	SendMessage(ctx context.Context, other uuid.UUID, content string) (types.Message, error)
}

// Entry is one line of the transcript. Pending entries have not been
// confirmed by the server yet and carry a client-side TempID instead of a
// server id.
type Entry struct {
	types.Message
	Pending bool
	TempID  uuid.UUID
}

// Conversation is the local transcript between self and other. Apply may be
// called from the feed goroutine while Send runs on another.
type Conversation struct {
	api   MessageAPI
	self  uuid.UUID
	other uuid.UUID

	mu        sync.Mutex
	state     State
	loadErr   error
	confirmed []types.Message
	seen      map[uuid.UUID]struct{}
	pending   []Entry
}

func NewConversation(api MessageAPI, self, other uuid.UUID) *Conversation {
	return &Conversation{
		api:   api,
		self:  self,
		other: other,
		seen:  make(map[uuid.UUID]struct{}),
	}
}

// Load fetches the transcript from the server. Messages applied from the
// feed while the fetch is in flight are kept.
func (c *Conversation) Load(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateLoading
	c.loadErr = nil
	c.mu.Unlock()

	messages, err := c.api.Conversation(ctx, c.other)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		c.loadErr = err
		return err
	}
	for _, msg := range messages {
		c.insertLocked(msg)
	}
	c.state = StateReady
	return nil
}

// State returns the load state and, when failed, the load error.
func (c *Conversation) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.loadErr
}

// Send posts content to other. The message shows as pending until the
// server confirms it. On failure only this pending entry is removed and a
// *SendError carrying the content is returned.
func (c *Conversation) Send(ctx context.Context, content string) (types.Message, error) {
	if strings.TrimSpace(content) == "" {
		return types.Message{}, ErrEmptyContent
	}

	entry := Entry{
		Message: types.Message{
			SenderID:   c.self,
			ReceiverID: c.other,
			Content:    content,
			CreatedAt:  time.Now().UTC(),
		},
		Pending: true,
		TempID:  uuid.New(),
	}
	c.mu.Lock()
	c.pending = append(c.pending, entry)
	c.mu.Unlock()

	msg, err := c.api.SendMessage(ctx, c.other, content)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removePendingLocked(entry.TempID)
	if err != nil {
		return types.Message{}, &SendError{Content: content, Err: err}
	}
	c.insertLocked(msg)
	return msg, nil
}

// Apply merges a feed event into the transcript. It reports whether the
// transcript changed: events for other tables, other conversations or
// already known messages are ignored.
func (c *Conversation) Apply(event types.RowEvent) bool {
	if event.Table != types.TableMessages || event.Type != types.EventInsert {
		return false
	}
	msg, err := event.DecodeMessage()
	if err != nil || !msg.Involves(c.self, c.other) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(msg)
}

// Messages returns confirmed messages in (created_at, id) order followed by
// pending ones in send order.
func (c *Conversation) Messages() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.confirmed)+len(c.pending))
	for _, msg := range c.confirmed {
		out = append(out, Entry{Message: msg})
	}
	return append(out, c.pending...)
}

// Newest returns the creation time of the newest confirmed message.
func (c *Conversation) Newest() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.confirmed) == 0 {
		return time.Time{}
	}
	return c.confirmed[len(c.confirmed)-1].CreatedAt
}

func (c *Conversation) insertLocked(msg types.Message) bool {
	if _, ok := c.seen[msg.ID]; ok {
		return false
	}
	c.seen[msg.ID] = struct{}{}

	i := sort.Search(len(c.confirmed), func(i int) bool {
		return msg.Before(c.confirmed[i])
	})
	c.confirmed = append(c.confirmed, types.Message{})
	copy(c.confirmed[i+1:], c.confirmed[i:])
	c.confirmed[i] = msg
	return true
}

func (c *Conversation) removePendingLocked(tempID uuid.UUID) {
	for i, entry := range c.pending {
		if entry.TempID == tempID {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}
