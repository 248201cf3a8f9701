package event

import (
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	FriendRequestSent     Type = "friend_request.sent"
	FriendRequestAccepted Type = "friend_request.accepted"
	FriendRequestRejected Type = "friend_request.rejected"
)

// Event is a relationship transition that already committed.
// Requester is always the member who sent the friend request; Target is the
// member it was addressed to (the responder for accept and reject).
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	RequestID  int64     `json:"request_id"`
	Requester  int64     `json:"requester"`
	Target     int64     `json:"target"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps a fresh event ID and timestamp.
func New(t Type, requestID, requester, target int64) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		RequestID:  requestID,
		Requester:  requester,
		Target:     target,
		OccurredAt: time.Now().UTC(),
	}
}

// Recipient is the member who should be told about the event.
func (e Event) Recipient() int64 {
	if e.Type == FriendRequestSent {
		return e.Target
	}
	return e.Requester
}

// Actor is the member whose action produced the event.
func (e Event) Actor() int64 {
	if e.Type == FriendRequestSent {
		return e.Requester
	}
	return e.Target
}
