// Package events publishes data-change notifications to NATS.
//
// Events are published to subjects:
//   - {prefix}.schema.refreshed   after a connect action builds a snapshot
//   - {prefix}.ingest.completed   after documents are indexed and persisted
//
// Publishing is fire-and-forget. A failed publish is returned to the caller,
// which logs it; no operation is rolled back because an event was lost.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/config"
	"github.com/fyrsmithlabs/hybridq/internal/logging"
)

// Event types.
const (
	SchemaRefreshed = "schema.refreshed"
	IngestCompleted = "ingest.completed"
)

// ErrPublish indicates an event could not be delivered to the broker.
var ErrPublish = errors.New("event publish failed")

// Event is the JSON envelope of every published message.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Version   uint64    `json:"version"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, version uint64, payload any) error
	Close() error
}

// NATSPublisher publishes events on a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
	logger *logging.Logger
}

// NewNATSPublisher wraps an existing connection. The caller keeps ownership
// of nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = "hybridq"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NATSPublisher{conn: nc, prefix: prefix, logger: logger.Named("events")}
}

// New connects to cfg.NATSURL. An empty URL returns a Nop publisher.
func New(cfg config.EventsConfig, logger *logging.Logger) (Publisher, error) {
	if cfg.NATSURL == "" {
		return Nop{}, nil
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("hybridq"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	p := NewNATSPublisher(nc, cfg.SubjectPrefix, logger)
	p.owned = true
	return p, nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish marshals and sends one event. The session id is taken from ctx.
func (p *NATSPublisher) Publish(ctx context.Context, eventType string, version uint64, payload any) error {
	ev := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		SessionID: logging.SessionIDFromContext(ctx),
		Version:   version,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := p.Subject(eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublish, subject, err)
	}
	p.logger.Debug(ctx, "event published", zap.String("subject", subject), zap.String("event_id", ev.ID))
	return nil
}

// Close drains the connection if New opened it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.conn.Drain()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, uint64, any) error { return nil }
func (Nop) Close() error                                       { return nil }
