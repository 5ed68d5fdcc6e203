package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"dreambot/internal/domain"
)

type memoryBatches struct {
	saved map[string]domain.Job
	urls  map[string][]string
}

func (m *memoryBatches) SaveBatch(ctx context.Context, completed *domain.CompletedJob, urls []string) error {
	m.saved[completed.ID.String()] = completed.Job
	m.urls[completed.ID.String()] = urls
	return nil
}

func (m *memoryBatches) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	job, ok := m.saved[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func TestArchiveRecordsAndLooksUp(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	batches := &memoryBatches{saved: map[string]domain.Job{}, urls: map[string][]string{}}
	archive := NewArchive(files, batches, "https://img.example/static/", nil)

	job := domain.NewJob(domain.RawRequest{User: "alice"})
	job.Prompt = "a cat"
	completed := &domain.CompletedJob{ID: uuid.New(), Job: job, Images: [][]byte{[]byte("one"), []byte("two")}}

	urls, err := archive.RecordCompletedBatch(context.Background(), completed)
	if err != nil {
		t.Fatalf("RecordCompletedBatch() error = %v", err)
	}
	want0 := "https://img.example/static/batches/" + completed.ID.String() + "/0.jpeg"
	if len(urls) != 2 || urls[0] != want0 {
		t.Fatalf("urls = %v, want first %q", urls, want0)
	}
	data, err := os.ReadFile(filepath.Join(dir, "batches", completed.ID.String(), "1.jpeg"))
	if err != nil || string(data) != "two" {
		t.Fatalf("stored image = %q, %v", data, err)
	}
	if got := batches.urls[completed.ID.String()]; len(got) != 2 {
		t.Fatalf("repository urls = %v", got)
	}

	found, err := archive.LookupJob(context.Background(), completed.ID.String())
	if err != nil || found.Prompt != "a cat" {
		t.Fatalf("LookupJob() = %+v, %v", found, err)
	}
	if _, err := archive.LookupJob(context.Background(), "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("LookupJob(invalid) error = %v", err)
	}
}

func TestFileStoreRead(t *testing.T) {
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()
	key, err := files.Write(ctx, "./a/../b/img.jpeg", []byte("x"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if key != "b/img.jpeg" {
		t.Fatalf("key = %q", key)
	}
	data, err := files.Read(ctx, "/b/img.jpeg")
	if err != nil || string(data) != "x" {
		t.Fatalf("Read() = %q, %v", data, err)
	}
	for _, bad := range []string{"missing.jpeg", "../etc/passwd", ".."} {
		if _, err := files.Read(ctx, bad); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Read(%q) error = %v, want ErrNotFound", bad, err)
		}
	}
	if _, err := files.Write(ctx, "../escape", []byte("x")); err == nil {
		t.Fatalf("Write() outside root should fail")
	}
}

func TestArchiveBatchImages(t *testing.T) {
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	archive := NewArchive(files, nil, "http://localhost/static", nil)
	ctx := context.Background()

	images := make([][]byte, 11)
	for i := range images {
		images[i] = []byte{byte('a' + i)}
	}
	completed := &domain.CompletedJob{ID: uuid.New(), Job: domain.NewJob(domain.RawRequest{User: "u"}), Images: images}
	if _, err := archive.RecordCompletedBatch(ctx, completed); err != nil {
		t.Fatalf("RecordCompletedBatch() error = %v", err)
	}

	assets, err := archive.BatchImages(ctx, completed.ID.String())
	if err != nil {
		t.Fatalf("BatchImages() error = %v", err)
	}
	if len(assets) != 11 {
		t.Fatalf("assets = %d, want 11", len(assets))
	}
	if assets[2].Filename != "2.jpeg" || assets[10].Filename != "10.jpeg" || string(assets[10].Data) != "k" {
		t.Fatalf("unexpected order: %s, %s", assets[2].Filename, assets[10].Filename)
	}

	for _, id := range []string{uuid.NewString(), "../../etc"} {
		if _, err := archive.BatchImages(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("BatchImages(%q) error = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := archive.LookupJob(ctx, completed.ID.String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("LookupJob() without repository error = %v", err)
	}
}
