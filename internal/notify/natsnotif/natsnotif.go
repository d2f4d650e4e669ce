// Package natsnotif publishes status events to NATS.
package natsnotif

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/runtrack/api"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NatsNotifier publishes each event to "<subject>.<kind>".
type NatsNotifier struct {
	pub     Publisher
	subject string
}

func New(pub Publisher, subject string) *NatsNotifier {
	return &NatsNotifier{
		pub:     pub,
		subject: subject,
	}
}

// Connect dials the NATS server at url.
func Connect(url string, subject string) (*NatsNotifier, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("runtrack"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return New(nc, subject), nc, nil
}

func (s *NatsNotifier) Notify(ctx context.Context, ev api.StatusEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	subj := s.subject
	if ev.Kind != "" {
		subj += "." + ev.Kind
	}
	if err := s.pub.Publish(subj, b); err != nil {
		return fmt.Errorf("failed to publish message to NATS: %w", err)
	}
	return nil
}
