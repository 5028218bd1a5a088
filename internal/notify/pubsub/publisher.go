// Package pubsub implements the completion notifier on Google Cloud Pub/Sub.
// It authenticates via Application Default Credentials.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"paper-archiver/internal/archive"
)

// Publisher sends one message per archived artifact to a Pub/Sub topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	runID  string
}

// New creates a Publisher and verifies the topic exists, failing fast on
// startup if it does not.
func New(ctx context.Context, projectID, topicID, runID string) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &Publisher{client: client, topic: topic, runID: runID}, nil
}

// UploadComplete publishes the remote reference of an archived artifact.
func (p *Publisher) UploadComplete(ctx context.Context, ref archive.RemoteRef) error {
	payload, err := json.Marshal(map[string]string{
		"run_id":    p.runID,
		"id":        ref.ID,
		"name":      ref.Name,
		"view_link": ref.ViewLink,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: payload})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close stops the topic's publish goroutines and releases the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
