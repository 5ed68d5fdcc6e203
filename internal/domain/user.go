package domain

import "time"

// UserStats aggregates a user's generation history.
type UserStats struct {
	User           string     `json:"user"`
	Batches        int64      `json:"batches"`
	Images         int64      `json:"images"`
	PrivateBatches int64      `json:"private_batches"`
	LastRequestAt  *time.Time `json:"last_request_at,omitempty"`
}
