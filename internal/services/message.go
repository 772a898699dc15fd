package services

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, msg types.Message) (types.Message, error)
	ListBetween(ctx context.Context, a, b uuid.UUID) ([]types.Message, error)
	ListInvolving(ctx context.Context, user uuid.UUID) ([]types.Message, error)
	ListInvolvingSince(ctx context.Context, user uuid.UUID, since time.Time) ([]types.Message, error)
}

// MessageService encapsulates direct messaging use-cases.
type MessageService struct {
	repo     MessageRepository
	profiles ProfileRepository
	events   EventPublisher
}

func NewMessageService(repo MessageRepository, profiles ProfileRepository, events EventPublisher) *MessageService {
	return &MessageService{repo: repo, profiles: profiles, events: events}
}

// LoadConversation returns every message between self and other, oldest
// first. Swapping the arguments yields the same sequence.
func (s *MessageService) LoadConversation(ctx context.Context, self, other uuid.UUID) ([]types.Message, error) {
	messages, err := s.repo.ListBetween(ctx, self, other)
	if err != nil {
		log.Printf("messages: load conversation %s/%s: %v", self, other, err)
		return nil, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Before(messages[j])
	})
	return messages, nil
}

// ListConversationPartners maps every counterpart of self to the most
// recent message exchanged with them.
func (s *MessageService) ListConversationPartners(ctx context.Context, self uuid.UUID) (map[uuid.UUID]types.Message, error) {
	messages, err := s.repo.ListInvolving(ctx, self)
	if err != nil {
		log.Printf("messages: list partners of %s: %v", self, err)
		return nil, err
	}
	return LatestByCounterpart(self, messages), nil
}

// ListConversations returns one summary per counterpart, most recently
// active first, with counterpart usernames resolved.
func (s *MessageService) ListConversations(ctx context.Context, self uuid.UUID) ([]types.ConversationSummary, error) {
	partners, err := s.ListConversationPartners(ctx, self)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(partners))
	for id := range partners {
		ids = append(ids, id)
	}
	names, err := s.profiles.Usernames(ctx, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]types.ConversationSummary, 0, len(partners))
	for id, msg := range partners {
		summaries = append(summaries, types.ConversationSummary{
			CounterpartID:       id,
			CounterpartUsername: names[id],
			LastMessage:         msg,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[j].LastMessage.Before(summaries[i].LastMessage)
	})
	return summaries, nil
}

// LatestByCounterpart folds messages, which must be ordered newest first,
// into the first message seen per counterpart.
func LatestByCounterpart(self uuid.UUID, newestFirst []types.Message) map[uuid.UUID]types.Message {
	latest := make(map[uuid.UUID]types.Message)
	for _, msg := range newestFirst {
		counterpart := msg.Counterpart(self)
		if _, seen := latest[counterpart]; seen {
			continue
		}
		latest[counterpart] = msg
	}
	return latest
}

// Send stores a message from self to other and announces it on the live
// feed. Blank content is rejected before anything is written.
func (s *MessageService) Send(ctx context.Context, self, other uuid.UUID, content string) (types.Message, error) {
	if strings.TrimSpace(content) == "" {
		return types.Message{}, ErrEmptyContent
	}
	if self == other {
		return types.Message{}, ErrSelfMessage
	}
	if _, err := activeProfile(ctx, s.profiles, self); err != nil {
		return types.Message{}, err
	}
	if _, err := s.profiles.Get(ctx, other); err != nil {
		return types.Message{}, err
	}

	msg, err := s.repo.Create(ctx, types.Message{
		SenderID:   self,
		ReceiverID: other,
		Content:    content,
	})
	if err != nil {
		log.Printf("messages: send %s -> %s: %v", self, other, err)
		return types.Message{}, err
	}

	publish(ctx, s.events, types.TableMessages, types.EventInsert, msg)
	return msg, nil
}

// Since returns messages involving user created after since, oldest first.
// The live feed uses it to replay what a reconnecting client missed.
func (s *MessageService) Since(ctx context.Context, user uuid.UUID, since time.Time) ([]types.Message, error) {
	return s.repo.ListInvolvingSince(ctx, user, since)
}
