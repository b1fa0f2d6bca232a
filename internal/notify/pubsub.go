package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSub publishes messages to a Google Cloud Pub/Sub topic.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	owned  bool
}

// NewPubSub dials Pub/Sub with Application Default Credentials, or with
// credentialsJSON when it is non-empty.
func NewPubSub(ctx context.Context, projectID, topicName, credentialsJSON string) (*PubSub, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("notify: PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: pubsub client: %w", err)
	}
	p, err := NewPubSubWithClient(client, topicName)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	p.owned = true
	return p, nil
}

// NewPubSubWithClient publishes through an existing client. The caller keeps
// ownership of client.
func NewPubSubWithClient(client *pubsub.Client, topicName string) (*PubSub, error) {
	if client == nil {
		return nil, errors.New("notify: pubsub client is nil")
	}
	if strings.TrimSpace(topicName) == "" {
		return nil, errors.New("notify: PUBSUB_TOPIC is required")
	}
	return &PubSub{client: client, topic: client.Topic(topicName)}, nil
}

func (p *PubSub) Publish(ctx context.Context, text string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       []byte(text),
		Attributes: map[string]string{"content_type": "text/plain"},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("notify: pubsub publish: %w", err)
	}
	return nil
}

// Close flushes pending messages and, if the client was created here, closes it.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if p.owned {
		return p.client.Close()
	}
	return nil
}
