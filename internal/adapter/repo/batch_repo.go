package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"dreambot/internal/domain"
	"dreambot/internal/infra"
	"dreambot/internal/sqlinline"
)

// BatchRepositoryPG implements domain.BatchRepository.
type BatchRepositoryPG struct {
	db infra.SQLExecutor
}

// NewBatchRepository creates a batch repository on top of db, normally an
// *infra.SQLRunner.
func NewBatchRepository(db infra.SQLExecutor) *BatchRepositoryPG {
	return &BatchRepositoryPG{db: db}
}

// SaveBatch stores the job parameters and image URLs of a completed batch.
// Saving the same batch twice is a no-op.
func (r *BatchRepositoryPG) SaveBatch(ctx context.Context, completed *domain.CompletedJob, urls []string) error {
	job, err := json.Marshal(completed.Job)
	if err != nil {
		return fmt.Errorf("repo: encode job: %w", err)
	}
	if urls == nil {
		urls = []string{}
	}
	images, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("repo: encode urls: %w", err)
	}
	req := completed.Job.Request
	_, err = r.db.Exec(ctx, sqlinline.QInsertBatch,
		completed.ID.String(),
		req.User,
		string(req.Source),
		req.Private,
		completed.Job.Model,
		job,
		images,
	)
	if err != nil {
		return fmt.Errorf("repo: insert batch: %w", err)
	}
	return nil
}

// GetJob returns the parameters of a stored batch.
func (r *BatchRepositoryPG) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var raw []byte
	if err := r.db.QueryRow(ctx, sqlinline.QSelectBatchJob, id).Scan(&raw); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: select batch: %w", err)
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("repo: decode job: %w", err)
	}
	return &job, nil
}

var _ domain.BatchRepository = (*BatchRepositoryPG)(nil)
