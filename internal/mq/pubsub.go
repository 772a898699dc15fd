package mq

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/bazaar-market/apiserver/config"
	"google.golang.org/api/option"
)

// fanoutSubscriptionTTL is how long Pub/Sub keeps an instance subscription
// after its last consumer goes away. One day is the minimum it accepts.
const fanoutSubscriptionTTL = 24 * time.Hour

const subscriptionCleanupTimeout = 10 * time.Second

// PubSubClient wraps the Google Cloud Pub/Sub SDK client.
//
// In shared mode every instance attaches to one subscription per channel and
// instances compete for messages. In fanout mode each instance creates its
// own subscription, so every server sees every change event; those
// subscriptions are deleted on Close and expire if an instance dies first.
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string
	fanout             bool
	instanceID         string

	mu            sync.Mutex
	topics        map[string]*pubsub.Topic
	subscriptions []*pubsub.Subscription
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	return newPubSubClient(client, cfg), nil
}

func newPubSubClient(client *pubsub.Client, cfg config.PubSubConfig) *PubSubClient {
	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	instanceID := strings.TrimSpace(cfg.InstanceID)
	if instanceID == "" {
		instanceID = newMessageID()
		if len(instanceID) > 12 {
			instanceID = instanceID[:12]
		}
	}

	return &PubSubClient{
		client:             client,
		subscriptionSuffix: suffix,
		fanout:             cfg.Fanout,
		instanceID:         instanceID,
		topics:             make(map[string]*pubsub.Topic),
	}
}

// Publish sends a message to the named topic.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	result := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return result.Get(ctx)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}

	sub, err := p.ensureSubscription(ctx, p.subscriptionName(channel), topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, Message{ID: msg.ID, Data: msg.Data, Attributes: msg.Attributes}); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes pending publishes, deletes this instance's fanout
// subscriptions and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	topics := p.topics
	subscriptions := p.subscriptions
	p.topics = make(map[string]*pubsub.Topic)
	p.subscriptions = nil
	p.mu.Unlock()

	for _, topic := range topics {
		topic.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), subscriptionCleanupTimeout)
	defer cancel()
	for _, sub := range subscriptions {
		if err := sub.Delete(ctx); err != nil {
			log.Printf("mq: delete pubsub subscription %s: %v", sub.ID(), err)
		}
	}
	return p.client.Close()
}

// topic returns the cached topic handle, creating the topic on first use.
func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	topic, ok := p.topics[name]
	p.mu.Unlock()
	if ok {
		return topic, nil
	}

	topic, err := p.ensureTopic(ctx, name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.topics[name]; ok {
		topic.Stop()
		return cached, nil
	}
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) ensureTopic(ctx context.Context, name string) (*pubsub.Topic, error) {
	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateTopic(ctx, name)
	}
	return topic, nil
}

func (p *PubSubClient) ensureSubscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		sub, err = p.client.CreateSubscription(ctx, name, p.subscriptionConfig(topic))
		if err != nil {
			return nil, err
		}
	}
	if p.fanout {
		p.mu.Lock()
		p.subscriptions = append(p.subscriptions, sub)
		p.mu.Unlock()
	}
	return sub, nil
}

func (p *PubSubClient) subscriptionConfig(topic *pubsub.Topic) pubsub.SubscriptionConfig {
	cfg := pubsub.SubscriptionConfig{Topic: topic}
	if p.fanout {
		cfg.ExpirationPolicy = fanoutSubscriptionTTL
	}
	return cfg
}

// subscriptionName is shared by all instances in shared mode and unique to
// this instance in fanout mode.
func (p *PubSubClient) subscriptionName(channel string) string {
	name := channel + p.subscriptionSuffix
	if p.fanout {
		name += "-" + p.instanceID
	}
	return name
}
