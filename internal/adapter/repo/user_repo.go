package repo

import (
	"context"
	"fmt"
	"time"

	"dreambot/internal/domain"
	"dreambot/internal/infra"
	"dreambot/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	db infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(db infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{db: db}
}

// CountPrivateSince sums the images of the user's private requests in the
// last hours hours.
func (r *UserRepositoryPG) CountPrivateSince(ctx context.Context, user string, hours int) (int, error) {
	var total int64
	if err := r.db.QueryRow(ctx, sqlinline.QCountPrivateImagesSince, user, hours).Scan(&total); err != nil {
		return 0, fmt.Errorf("repo: count private usage: %w", err)
	}
	return int(total), nil
}

// IncrementStats records one finished request.
func (r *UserRepositoryPG) IncrementStats(ctx context.Context, user string, images int, private bool) error {
	if _, err := r.db.Exec(ctx, sqlinline.QRecordUsage, user, images, private); err != nil {
		return fmt.Errorf("repo: record usage: %w", err)
	}
	return nil
}

// GetStats returns the user's totals, or domain.ErrNotFound for unknown users.
func (r *UserRepositoryPG) GetStats(ctx context.Context, user string) (*domain.UserStats, error) {
	stats := domain.UserStats{User: user}
	var last *time.Time
	err := r.db.QueryRow(ctx, sqlinline.QSelectUserStats, user).
		Scan(&stats.Batches, &stats.Images, &stats.PrivateBatches, &last)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: select user stats: %w", err)
	}
	stats.LastRequestAt = last
	return &stats, nil
}

// ResetPrivateUsage forgets the user's private usage in the last hours hours,
// lifting the private limit. Totals in user_stats are kept. It returns the
// number of usage events removed.
func (r *UserRepositoryPG) ResetPrivateUsage(ctx context.Context, user string, hours int) (int64, error) {
	tag, err := r.db.Exec(ctx, sqlinline.QDeletePrivateUsageSince, user, hours)
	if err != nil {
		return 0, fmt.Errorf("repo: reset private usage: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
