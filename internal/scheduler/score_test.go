package scheduler

import (
	"testing"

	"dreambot/internal/domain"
)

func job(user, model string, count int) domain.Job {
	j := domain.NewJob(domain.RawRequest{User: user})
	j.Model = model
	j.Count = count
	return j
}

func ptr(j domain.Job) *domain.Job { return &j }

func TestSelect(t *testing.T) {
	alice := job("alice", "sdxl", 4)

	tests := []struct {
		name     string
		queue    []domain.Job
		previous *domain.Job
		want     int
	}{
		{name: "empty", queue: nil, want: -1},
		{
			name:  "idle prefers oldest",
			queue: []domain.Job{job("alice", "sdxl", 4), job("bob", "flux", 4)},
			want:  0,
		},
		{
			name:  "idle big batch loses to small one",
			queue: []domain.Job{job("alice", "sdxl", 9), job("bob", "sdxl", 1)},
			// alice: -2.25+2-3-0 = -3.25, bob: -0.25+2-3-1 = -2.25
			want: 1,
		},
		{
			name:  "idle favours the default model",
			queue: []domain.Job{job("alice", "sdxl", 4), job("bob", domain.DefaultModel, 4)},
			// alice: -1+2-3-0 = -2, bob: -1+2-0-1 = 0
			want: 1,
		},
		{
			name:     "fractional batch penalty decides",
			queue:    []domain.Job{job("carol", "sdxl", 7), job("carol", "sdxl", 1)},
			previous: ptr(job("carol", "sdxl", 4)),
			// -1.75-0 = -1.75 against -0.25-1 = -1.25
			want: 1,
		},
		{
			name:     "turn taking",
			queue:    []domain.Job{job("alice", "sdxl", 4), job("bob", "sdxl", 4)},
			previous: &alice,
			want:     1,
		},
		{
			name:     "model switch penalty ties with same user",
			queue:    []domain.Job{job("bob", "flux", 4), job("alice", "sdxl", 4)},
			previous: &alice,
			want:     0,
		},
		{
			name:     "same model beats other user on other model",
			queue:    []domain.Job{job("alice", "sdxl", 4), job("bob", "flux", 4)},
			previous: &alice,
			want:     0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.queue, tt.previous)
			if got != tt.want {
				t.Fatalf("Select() = %d, want %d", got, tt.want)
			}
			for i := 0; i < 5; i++ {
				if again := Select(tt.queue, tt.previous); again != got {
					t.Fatalf("Select() not deterministic: %d then %d", got, again)
				}
			}
		})
	}
}

func TestScoreChangesOncePreviousIsSet(t *testing.T) {
	alice := job("alice", "sdxl", 4)
	bob := job("bob", "sdxl", 4)

	queue := []domain.Job{alice, bob}
	if got := Select(queue, nil); got != 0 {
		t.Fatalf("first pick = %d, want alice", got)
	}

	before := Score(bob, 1, nil)
	after := Score(bob, 0, &alice)
	if before != -3 || after != 1 {
		t.Fatalf("bob score before=%v after=%v, want -3 and 1", before, after)
	}
}

func TestScoreCountPenaltyIsFractional(t *testing.T) {
	previous := job("carol", "sdxl", 4)
	tests := []struct {
		count int
		want  float64
	}{
		{count: 1, want: -0.25},
		{count: 2, want: -0.5},
		{count: 4, want: -1},
		{count: 7, want: -1.75},
		{count: 9, want: -2.25},
	}
	for _, tt := range tests {
		if got := Score(job("carol", "sdxl", tt.count), 0, &previous); got != tt.want {
			t.Errorf("Score(count=%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}
