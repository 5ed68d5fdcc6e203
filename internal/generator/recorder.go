package generator

import (
	"context"
	"fmt"

	"dreambot/internal/domain"
	"dreambot/internal/infra"
)

// privateWindowHours is the sliding window of the private image limit.
const privateWindowHours = 24

// UsageRecorder implements Recorder on top of a UserRepository. Private
// requests are capped at dailyLimit images per sliding day; a limit of zero
// or less disables the check.
type UsageRecorder struct {
	users      domain.UserRepository
	dailyLimit int
	logger     *infra.Logger
}

// NewUsageRecorder constructs a UsageRecorder.
func NewUsageRecorder(users domain.UserRepository, dailyLimit int, logger *infra.Logger) *UsageRecorder {
	return &UsageRecorder{users: users, dailyLimit: dailyLimit, logger: infra.Component(logger, "usage")}
}

func (r *UsageRecorder) CheckRateLimit(ctx context.Context, job domain.Job, private bool) error {
	if !private || r.dailyLimit <= 0 {
		return nil
	}
	used, err := r.users.CountPrivateSince(ctx, job.User(), privateWindowHours)
	if err != nil {
		return fmt.Errorf("generator: check private limit: %w", err)
	}
	if used+job.Count > r.dailyLimit {
		r.logger.Info().Str("user", job.User()).Int("used", used).Int("requested", job.Count).Msg("private limit reached")
		return fmt.Errorf("%w: %d of %d private images used in the last %d hours",
			domain.ErrRateLimited, used, r.dailyLimit, privateWindowHours)
	}
	return nil
}

func (r *UsageRecorder) RecordStats(ctx context.Context, job domain.Job, private bool) error {
	return r.users.IncrementStats(ctx, job.User(), job.Count, private)
}

var _ Recorder = (*UsageRecorder)(nil)
