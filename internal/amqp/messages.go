package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
)

// TransactionRecordedMessage announces a newly stored transaction.
// Consumers load the full row from the store by ID.
type TransactionRecordedMessage struct {
	ID        int64     `json:"id"`
	Kind      core.Kind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(id int64, kind core.Kind) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
