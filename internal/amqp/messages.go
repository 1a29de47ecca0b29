package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cashflow/internal/ledger"
)

// ChangeMessage announces one applied store mutation. It carries no record
// payload; consumers read the current state through the HTTP API.
type ChangeMessage struct {
	Sequence   uint64    `json:"sequence"`
	Kind       string    `json:"kind"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewChangeMessage wraps a store event with its position in the feed.
func NewChangeMessage(seq uint64, ev ledger.Event) ChangeMessage {
	return ChangeMessage{
		Sequence:   seq,
		Kind:       string(ev.Kind),
		Collection: string(ev.Collection),
		ID:         ev.ID,
		OccurredAt: ev.At.UTC(),
	}
}

// MessageID is stable per feed position, so redeliveries can be deduplicated.
func (m ChangeMessage) MessageID() string {
	return fmt.Sprintf("%s/%s/%d", m.Collection, m.ID, m.Sequence)
}

func (m ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ChangeMessage{}, err
	}
	if msg.Collection == "" || msg.Kind == "" {
		return ChangeMessage{}, fmt.Errorf("change message missing kind or collection")
	}
	return msg, nil
}

// GapTracker detects change messages lost between a publisher and a consumer.
// Sequence numbers restart at 1 when the publisher restarts; a number at or
// below the last one seen is treated as such a restart.
type GapTracker struct {
	last uint64
}

func NewGapTracker() *GapTracker {
	return &GapTracker{}
}

// Observe records seq and returns how many sequence numbers were skipped
// since the previous message.
func (g *GapTracker) Observe(seq uint64) uint64 {
	var missing uint64
	switch {
	case seq <= g.last:
		missing = seq - 1
	default:
		missing = seq - g.last - 1
	}
	g.last = seq
	return missing
}
