package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EncodeJob renders a job payload: the record id in decimal.
func EncodeJob(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

// DecodeJob parses a job payload.
func DecodeJob(data []byte) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode job %q: %w", data, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("decode job %q: id must be positive", data)
	}
	return id, nil
}

// ChangeReason tells why a record changed.
type ChangeReason string

// Change reasons.
const (
	ReasonCreated   ChangeReason = "created"
	ReasonExtracted ChangeReason = "extracted"
)

// ChangeEvent notifies the index side that a record changed.
// It carries only the id; consumers reload the record.
type ChangeEvent struct {
	ID     int64        `json:"id"`
	Reason ChangeReason `json:"reason"`
}

// EncodeChange renders a change event as JSON.
func EncodeChange(ev ChangeEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeChange parses a change event.
func DecodeChange(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if ev.ID <= 0 {
		return ChangeEvent{}, fmt.Errorf("decode change event: invalid id %d", ev.ID)
	}
	return ev, nil
}

// DeadLetter wraps a job that will not be retried.
type DeadLetter struct {
	Subject    string    `json:"subject"`
	Payload    string    `json:"payload"`
	Error      string    `json:"error"`
	Deliveries uint64    `json:"deliveries"`
	FailedAt   time.Time `json:"failedAt"`
}
