package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is published after a claim mutation has been committed.
// FromStatus and ToStatus are only set for TypeClaimTransitioned.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	ClaimID    int64     `json:"claim_id"`
	ActorID    int64     `json:"actor_id"`
	Action     string    `json:"action,omitempty"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// NewEvent creates an event with a generated ID
func NewEvent(eventType Type, claimID, actorID int64, at time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ClaimID:   claimID,
		ActorID:   actorID,
		Timestamp: at,
	}
}

// NewTransition creates a TypeClaimTransitioned event
func NewTransition(claimID, actorID int64, action, from, to string, at time.Time) *Event {
	evt := NewEvent(TypeClaimTransitioned, claimID, actorID, at)
	evt.Action = action
	evt.FromStatus = from
	evt.ToStatus = to
	return evt
}

// WithRequestID returns a copy of the event tagged with the originating request
func (e *Event) WithRequestID(requestID string) *Event {
	cp := *e
	cp.RequestID = requestID
	return &cp
}
