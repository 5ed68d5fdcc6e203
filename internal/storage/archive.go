package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"dreambot/internal/domain"
	"dreambot/internal/infra"
	"dreambot/pkg/zip"
)

// Archive stores completed batches: images go to the FileStore, parameters
// and public URLs to the batch repository.
type Archive struct {
	files   *FileStore
	batches domain.BatchRepository
	baseURL string
	logger  *infra.Logger
}

// NewArchive wires an archive. batches may be nil, in which case only files
// are written and lookups report domain.ErrNotFound.
func NewArchive(files *FileStore, batches domain.BatchRepository, baseURL string, logger *infra.Logger) *Archive {
	return &Archive{
		files:   files,
		batches: batches,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  infra.Component(logger, "archive"),
	}
}

// ImageKey is the storage key of the i-th image of a batch.
func ImageKey(id uuid.UUID, i int) string {
	return fmt.Sprintf("batches/%s/%d.jpeg", id, i)
}

// RecordCompletedBatch persists the batch and returns one public URL per image.
func (a *Archive) RecordCompletedBatch(ctx context.Context, completed *domain.CompletedJob) ([]string, error) {
	urls := make([]string, 0, len(completed.Images))
	for i, img := range completed.Images {
		key, err := a.files.Write(ctx, ImageKey(completed.ID, i), img)
		if err != nil {
			return nil, err
		}
		urls = append(urls, a.baseURL+"/"+key)
	}
	if a.batches != nil {
		if err := a.batches.SaveBatch(ctx, completed, urls); err != nil {
			return nil, err
		}
	}
	a.logger.Info().
		Str("batch_id", completed.ID.String()).
		Str("user", completed.Job.User()).
		Int("images", len(urls)).
		Msg("batch archived")
	return urls, nil
}

// BatchImages loads every stored image of a batch, in order.
func (a *Archive) BatchImages(ctx context.Context, id string) ([]zip.Asset, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	entries, err := a.files.List(ctx, "batches/"+parsed.String())
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return imageIndex(entries[i].Key) < imageIndex(entries[j].Key) })
	assets := make([]zip.Asset, 0, len(entries))
	for _, e := range entries {
		data, err := a.files.Read(ctx, e.Key)
		if err != nil {
			return nil, err
		}
		assets = append(assets, zip.Asset{Filename: path.Base(e.Key), Data: data, Modified: e.Modified})
	}
	if len(assets) == 0 {
		return nil, domain.ErrNotFound
	}
	return assets, nil
}

// imageIndex orders 10.jpeg after 9.jpeg.
func imageIndex(key string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(path.Base(key), path.Ext(key)))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// LookupJob returns the parameters of an archived batch.
func (a *Archive) LookupJob(ctx context.Context, id string) (*domain.Job, error) {
	if _, err := uuid.Parse(id); err != nil || a.batches == nil {
		return nil, domain.ErrNotFound
	}
	return a.batches.GetJob(ctx, id)
}
