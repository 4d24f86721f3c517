package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dbehnke/signalduino/internal/parser"
)

// ClientIdentity is the persistent id of this host installation
type ClientIdentity struct {
	ID        uint      `gorm:"primarykey"`
	ClientID  string    `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (ClientIdentity) TableName() string {
	return "client_identity"
}

// MessageRecord is one journaled decoded message
type MessageRecord struct {
	ID          uint      `gorm:"primarykey"`
	ProtocolID  string    `gorm:"index;size:16;not null"`
	Payload     string    `gorm:"not null"`
	BitLength   int
	MessageType string    `gorm:"size:4"`
	RSSI        *float64
	AFC         *float64
	Raw         string
	Metadata    string
	ReceivedAt  time.Time `gorm:"index"`
}

// TableName specifies the table name for GORM
func (MessageRecord) TableName() string {
	return "messages"
}

// NewMessageRecord converts a decoded message for storage. Metadata and
// passed checks are stored as one JSON object.
func NewMessageRecord(m parser.DecodedMessage) (*MessageRecord, error) {
	extra := map[string]any{}
	for k, v := range m.Metadata {
		extra[k] = v
	}
	if len(m.Checks) > 0 {
		extra["checks"] = m.Checks
	}
	meta := ""
	if len(extra) > 0 {
		b, err := json.Marshal(extra)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		meta = string(b)
	}

	received := m.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	return &MessageRecord{
		ProtocolID:  m.ProtocolID,
		Payload:     m.Payload,
		BitLength:   m.BitLength,
		MessageType: m.MessageType,
		RSSI:        m.RSSI,
		AFC:         m.AFC,
		Raw:         m.Raw,
		Metadata:    meta,
		ReceivedAt:  received.UTC(),
	}, nil
}

// IsValid checks if the record has the required fields
func (r MessageRecord) IsValid() bool {
	return r.ProtocolID != "" && r.Payload != ""
}

func (r MessageRecord) String() string {
	return fmt.Sprintf("%s %s (%d bits)", r.ProtocolID, r.Payload, r.BitLength)
}
