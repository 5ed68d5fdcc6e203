package domain

import "testing"

func TestSubBatches(t *testing.T) {
	tests := []struct {
		name  string
		model string
		count int
		w, h  int
		want  []int
		limit int
	}{
		{name: "fits in one", model: "sdxl", count: 4, w: 1024, h: 1024, want: []int{4}, limit: 4},
		{name: "split", model: "sdxl", count: 9, w: 1024, h: 1024, want: []int{4, 4, 1}, limit: 4},
		{name: "large image", model: "sdxl", count: 3, w: 2048, h: 2048, want: []int{1, 1, 1}, limit: 1},
		{name: "small image", model: "sdxl", count: 9, w: 512, h: 512, want: []int{9}, limit: 16},
		{name: "flux never batches", model: "Flux-Dev", count: 2, w: 512, h: 512, want: []int{1, 1}, limit: 1},
		{name: "pixart never batches", model: "pixart-sigma", count: 1, w: 512, h: 512, want: []int{1}, limit: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob(RawRequest{User: "u"})
			job.Model, job.Count, job.Width, job.Height = tt.model, tt.count, tt.w, tt.h

			if got := job.MaxBatchSize(); got != tt.limit {
				t.Fatalf("MaxBatchSize() = %d, want %d", got, tt.limit)
			}
			got := job.SubBatches()
			if len(got) != len(tt.want) {
				t.Fatalf("SubBatches() = %v, want %v", got, tt.want)
			}
			sum := 0
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("SubBatches() = %v, want %v", got, tt.want)
				}
				if got[i] > job.MaxBatchSize() {
					t.Fatalf("sub-batch %d exceeds limit %d", got[i], job.MaxBatchSize())
				}
				sum += got[i]
			}
			if sum != tt.count {
				t.Fatalf("SubBatches() sums to %d, want %d", sum, tt.count)
			}
		})
	}
}

func TestSubBatchesTooLarge(t *testing.T) {
	job := NewJob(RawRequest{})
	job.Width, job.Height = 4096, 4096
	if job.MaxBatchSize() != 0 || job.SubBatches() != nil {
		t.Fatalf("expected no sub-batches for oversized job")
	}
}
