package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change operations carried by LedgerChangedMessage.
const (
	OpCreated   = "created"
	OpUpdated   = "updated"
	OpDeleted   = "deleted"
	OpRefreshed = "refreshed"
)

// LedgerChangedMessage announces that a collection changed. It only carries
// identifiers; consumers reload whatever they need from the backend.
type LedgerChangedMessage struct {
	Op        string    `json:"op"`
	Kind      string    `json:"type,omitempty"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage creates a message stamped with the current time.
func NewLedgerChangedMessage(op, kind, id string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Op:        op,
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message and checks it names an
// operation.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Op {
	case OpCreated, OpUpdated, OpDeleted, OpRefreshed:
	default:
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	return &msg, nil
}
