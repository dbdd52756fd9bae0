package amqp

import (
	"encoding/json"
	"time"
)

// InvalidationMessage tells every instance that cached list pages of the
// named views are stale. Origin identifies the publishing instance.
type InvalidationMessage struct {
	Origin    string    `json:"origin"`
	Views     []string  `json:"views"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvalidationMessage creates a message stamped with the current time.
func NewInvalidationMessage(origin string, views []string, reason string) *InvalidationMessage {
	return &InvalidationMessage{
		Origin:    origin,
		Views:     views,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON decodes a message body.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
