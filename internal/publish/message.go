package publish

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/d21d3q/goweatherboard/pkg/weatherboard"
)

// Message is the climate payload shipped after every polling cycle.
type Message struct {
	ID        uuid.UUID      `json:"id"`
	Device    string         `json:"device"`
	FieldMap  string         `json:"field_map"`
	Timestamp time.Time      `json:"timestamp"`
	Values    map[string]any `json:"values"`
	Errors    []string       `json:"errors,omitempty"`
}

// NewMessage captures the snapshot's values and the cycle's frame failures.
func NewMessage(device, fieldMap string, at time.Time, snap *weatherboard.Snapshot, readings []weatherboard.Reading) Message {
	msg := Message{
		ID:        uuid.New(),
		Device:    device,
		FieldMap:  fieldMap,
		Timestamp: at.UTC(),
		Values:    snap.Map(),
	}
	for _, r := range readings {
		if !r.OK() {
			msg.Errors = append(msg.Errors, r.Err.Error())
		}
	}
	return msg
}

// Sink ships messages somewhere.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
	Close() error
}
