package amqp

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// ExportField mirrors one key/value pair of an export record.
type ExportField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExportRequestMessage asks the worker to write a user's record in the
// listed formats.
type ExportRequestMessage struct {
	ID        string        `json:"id"`
	Username  string        `json:"username"`
	Formats   []string      `json:"formats"`
	Fields    []ExportField `json:"fields"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewExportRequestMessage(username string, formats []string, fields []ExportField) *ExportRequestMessage {
	return &ExportRequestMessage{
		ID:        newMessageID(),
		Username:  username,
		Formats:   formats,
		Fields:    fields,
		Timestamp: time.Now(),
	}
}

func (m *ExportRequestMessage) Validate() error {
	if m.Username == "" {
		return errors.New("export request: missing username")
	}
	if len(m.Formats) == 0 {
		return errors.New("export request: no formats")
	}
	return nil
}

func (m *ExportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportRequestMessageFromJSON(data []byte) (*ExportRequestMessage, error) {
	var msg ExportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func newMessageID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
