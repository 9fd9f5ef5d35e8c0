package events

import (
	"fmt"
	"log/slog"
	"time"

	"student-management-api/internal/config"
)

// Event records a student lifecycle change published after a successful
// write. Types: student.created, student.updated, student.deleted.
type Event struct {
	Type      string    `json:"type"`
	StudentID string    `json:"studentId"`
	Email     string    `json:"email,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	TypeCreated = "student.created"
	TypeUpdated = "student.updated"
	TypeDeleted = "student.deleted"
)

type Publisher interface {
	Publish(event Event) error
	Close() error
}

// NewPublisher builds the configured producer. An empty backend disables
// event publishing and returns nil without error.
func NewPublisher(cfg config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "kafka":
		return NewKafkaProducer(cfg.Brokers, cfg.Topic, logger)
	case "nats":
		return NewNATSProducer(cfg.URL, cfg.Subject, logger)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
