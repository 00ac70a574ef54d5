package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Priority orders jobs across the queue's backing lists
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Job is the envelope stored on the queue
type Job struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Priority     Priority        `json:"priority"`
	Payload      json.RawMessage `json:"payload"`
	Attempts     int             `json:"attempts"`
	EnqueuedAtMs int64           `json:"enqueued_at_ms"`
	LastError    string          `json:"last_error,omitempty"`
}

// NewJob builds a job envelope, marshaling the payload
func NewJob(name string, payload interface{}, priority Priority) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:           uuid.NewString(),
		Name:         name,
		Priority:     priority,
		Payload:      data,
		EnqueuedAtMs: time.Now().UnixMilli(),
	}, nil
}

// DecodePayload unmarshals the job payload into v
func (j *Job) DecodePayload(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}
