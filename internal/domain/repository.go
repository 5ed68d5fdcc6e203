package domain

import "context"

// BatchRepository persists completed batches so their parameters can be
// recalled later.
type BatchRepository interface {
	SaveBatch(ctx context.Context, completed *CompletedJob, urls []string) error
	GetJob(ctx context.Context, id string) (*Job, error)
}

// UserRepository tracks per-user usage.
type UserRepository interface {
	CountPrivateSince(ctx context.Context, user string, hours int) (int, error)
	IncrementStats(ctx context.Context, user string, images int, private bool) error
	GetStats(ctx context.Context, user string) (*UserStats, error)
}
