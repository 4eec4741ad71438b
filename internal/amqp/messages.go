package amqp

import (
	"encoding/json"
	"time"
)

// EntrySyncMessage queues one member-day row for export. It carries
// only the row key and the ledger version at publish time; the worker
// fetches the current row from the database, so a message that arrives
// after a later overwrite still exports the latest value.
type EntrySyncMessage struct {
	MemberID  string    `json:"member_id"`
	Day       string    `json:"day"` // canonical day key, e.g. "2024-03-04"
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntrySyncMessage(memberID, day string, version int64) *EntrySyncMessage {
	return &EntrySyncMessage{
		MemberID:  memberID,
		Day:       day,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RecapEntry is one leaderboard row inside a recap message.
type RecapEntry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Steps int    `json:"steps"`
}

// RecapMessage is a rendered leaderboard snapshot published on a
// schedule for the chat transport to deliver to the group.
type RecapMessage struct {
	Window      string       `json:"window"` // daily | weekly | monthly
	Label       string       `json:"label"`  // e.g. "2024-03-04" or "March 2024"
	GeneratedAt time.Time    `json:"generated_at"`
	Entries     []RecapEntry `json:"entries"`
}

func (m *RecapMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecapMessageFromJSON(data []byte) (*RecapMessage, error) {
	var msg RecapMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
