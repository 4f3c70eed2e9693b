package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrMissingOwner is returned for a catch-up request without an owner.
var ErrMissingOwner = errors.New("catch-up request has no owner_id")

// CatchUpRequestMessage asks a worker to run the catch-up for one owner.
// It carries no schedule state; the worker reads everything from the store.
type CatchUpRequestMessage struct {
	OwnerID     string    `json:"owner_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewCatchUpRequestMessage creates a request stamped with the current time
func NewCatchUpRequestMessage(ownerID string) *CatchUpRequestMessage {
	return &CatchUpRequestMessage{
		OwnerID:     ownerID,
		RequestedAt: time.Now().UTC(),
	}
}

// Validate rejects requests that cannot be routed to an owner.
func (m *CatchUpRequestMessage) Validate() error {
	if strings.TrimSpace(m.OwnerID) == "" {
		return ErrMissingOwner
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *CatchUpRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CatchUpRequestMessageFromJSON decodes and validates a request.
func CatchUpRequestMessageFromJSON(data []byte) (*CatchUpRequestMessage, error) {
	var msg CatchUpRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
