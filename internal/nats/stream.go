package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

const (
	// StreamName is the name of the copilot audit stream.
	StreamName = "COPILOT_AUDIT"

	// SubjectPrefix is the prefix for all audit subjects.
	SubjectPrefix = "copilot.audit"
)

// AuditPublisher publishes copilot turn and action telemetry to JetStream.
// The audit stream is operational telemetry only; conversation state is
// never read back from it.
type AuditPublisher struct {
	client *Client
}

// NewAuditPublisher creates a new audit publisher.
func NewAuditPublisher(client *Client) *AuditPublisher {
	return &AuditPublisher{client: client}
}

// EnsureStream ensures the audit stream exists with proper configuration.
func (p *AuditPublisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	// Create stream
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024, // 1GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Copilot turn and action dispatch telemetry",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an audit event.
func EventSubject(eventType model.AuditEventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// Publish publishes an audit event to JetStream.
func (p *AuditPublisher) Publish(ctx context.Context, event *model.AuditEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal audit event: %w", err)
	}

	ack, err := p.client.JetStream().Publish(ctx, EventSubject(event.Type), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish audit event: %w", err)
	}

	return ack.Sequence, nil
}
