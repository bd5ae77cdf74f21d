package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the gateway
const (
	TypeTransferCreated       = "transfer.created"
	TypeTransferStatusChanged = "transfer.status_changed"
	TypeNotification          = "notification.message"
)

type Event struct {
	Id   uuid.UUID `json:"id"`
	Type string    `json:"type"`
	// Partition key. Events of the same transaction keep their order
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

func New(eventType, key string, payload any, now time.Time) (event Event, err error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return event, fmt.Errorf("failed to marshal payload: %w", err)
	}
	event = Event{
		Id:         uuid.New(),
		Type:       eventType,
		Key:        key,
		OccurredAt: now.UTC(),
		Payload:    raw,
	}
	return event, nil
}

func (e *Event) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(e)
	return bytes
}

func (e *Event) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, e)
}

// Publisher delivers reporting events downstream. Nothing in the gateway
// reads them back, so publishing never drives a decision
type Publisher interface {
	Publish(ctx context.Context, events ...Event) (err error)
	Close() (err error)
}

type Nop struct{}

var _ Publisher = Nop{}

func (Nop) Publish(ctx context.Context, events ...Event) (err error) { return nil }

func (Nop) Close() (err error) { return nil }

// Recorder keeps every published event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Returned by Publish when set
	Err error
}

var _ Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(ctx context.Context, events ...Event) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, events...)
	return nil
}

func (r *Recorder) Close() (err error) { return nil }

// Events returns the recorded events of eventType, or all of them when empty
func (r *Recorder) Events(eventType string) (events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, event := range r.events {
		if eventType == "" || event.Type == eventType {
			events = append(events, event)
		}
	}
	return events
}
