package job

import (
	"encoding/json"
	"time"
)

// Job is an ingestion that the worker gave up on. Payload is the original
// queue message so a retry can republish it unchanged.
type Job struct {
	ID        string          `json:"id"`
	Path      string          `json:"path"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
