package mq

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const memoryBufferSize = 256

// MemoryBackend delivers messages between goroutines of one process.
// Every subscriber of a channel receives every message published to it.
type MemoryBackend struct {
	mu          sync.RWMutex
	subscribers map[string]map[*memorySubscriber]struct{}
	seq         atomic.Uint64
	closed      chan struct{}
	closeOnce   sync.Once
}

type memorySubscriber struct {
	messages chan Message
	done     chan struct{}
}

// NewMemoryBackend constructs an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		subscribers: make(map[string]map[*memorySubscriber]struct{}),
		closed:      make(chan struct{}),
	}
}

// Publish hands the message to every current subscriber of channel.
func (m *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}

	id := strconv.FormatUint(m.seq.Add(1), 10)
	msg := Message{ID: id, Data: data, Attributes: attrs}

	m.mu.RLock()
	subs := make([]*memorySubscriber, 0, len(m.subscribers[channel]))
	for sub := range m.subscribers[channel] {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.messages <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return id, nil
}

// Subscribe blocks, calling handler for each message, until ctx is done or
// the backend is closed. Handler errors are dropped; there is no redelivery.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	sub := &memorySubscriber{
		messages: make(chan Message, memoryBufferSize),
		done:     make(chan struct{}),
	}
	m.mu.Lock()
	if m.subscribers[channel] == nil {
		m.subscribers[channel] = make(map[*memorySubscriber]struct{})
	}
	m.subscribers[channel][sub] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subscribers[channel], sub)
		if len(m.subscribers[channel]) == 0 {
			delete(m.subscribers, channel)
		}
		m.mu.Unlock()
		close(sub.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return errors.New("memory backend closed")
		case msg := <-sub.messages:
			_ = handler(ctx, msg)
		}
	}
}

// Subscribers returns the number of active subscriptions on channel.
func (m *MemoryBackend) Subscribers(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[channel])
}

// Close stops every subscription.
func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	return nil
}
