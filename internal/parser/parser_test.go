package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"dreambot/internal/catalog"
	"dreambot/internal/domain"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Models: map[string]catalog.Model{
			"default":  {Name: "default", Workflow: "sdxl.json", Baseline: "base.safetensors"},
			"sdxl":     {Name: "sdxl", Workflow: "sdxl.json", Baseline: "sdxl.safetensors"},
			"flux-dev": {Name: "flux-dev", Workflow: "flux.json", Baseline: "flux.safetensors"},
		},
		Aliases: map[string]string{"fast": "sdxl"},
	}
}

func pinClock(t *testing.T, unix int64) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Unix(unix, 0) }
	t.Cleanup(func() { now = prev })
}

func request(raw string) domain.RawRequest {
	return domain.RawRequest{User: "alice", Source: domain.SourceIRC, Raw: raw}
}

func TestParseFullCommand(t *testing.T) {
	pinClock(t, 1700000000)
	req := request("a cat --style watercolor --ar 16:9 --count 2 --model sdxl")

	got, err := Parse(req, testCatalog())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := domain.NewJob(req)
	want.Model = "sdxl"
	want.Prompt = "a cat"
	want.Style = "watercolor"
	want.Count = 2
	want.Seed = 1700000000
	want.Width = 1344
	want.Height = 768
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFlags(t *testing.T) {
	pinClock(t, 42)
	steps := 12

	tests := []struct {
		name   string
		raw    string
		mutate func(j *domain.Job)
	}{
		{
			name:   "defaults",
			raw:    "a lighthouse",
			mutate: func(j *domain.Job) { j.Prompt = "a lighthouse"; j.Seed = 42 },
		},
		{
			name: "negative then back to prompt",
			raw:  "cat --no dogs birds --prompt on a mat",
			mutate: func(j *domain.Job) {
				j.Prompt = "cat on a mat"
				j.Negative = "dogs birds"
				j.Seed = 42
			},
		},
		{
			name:   "em dash counts as double dash",
			raw:    "cat —no dogs",
			mutate: func(j *domain.Job) { j.Prompt = "cat"; j.Negative = "dogs"; j.Seed = 42 },
		},
		{
			name:   "lone dashes stay in the prompt",
			raw:    "cat - dog --",
			mutate: func(j *domain.Job) { j.Prompt = "cat - dog --"; j.Seed = 42 },
		},
		{
			name: "disable defaults",
			raw:  "cat --np -nn",
			mutate: func(j *domain.Job) {
				j.Prompt = "cat"
				j.UsePositiveDefault = false
				j.UseNegativeDefault = false
				j.Seed = 42
			},
		},
		{
			name: "equals form and short flags",
			raw:  "cat --scale=7.5 -a 10 --steps 12 --seed=9 -s ink",
			mutate: func(j *domain.Job) {
				j.Prompt = "cat"
				j.Style = "ink"
				j.GuidanceScale = 7.5
				j.AestheticScale = 10
				j.Steps = &steps
				j.Seed = 9
			},
		},
		{
			name:   "count clamped high",
			raw:    "cat --count 20",
			mutate: func(j *domain.Job) { j.Prompt = "cat"; j.Count = domain.MaxCount; j.Seed = 42 },
		},
		{
			name:   "count clamped low",
			raw:    "cat -c 0",
			mutate: func(j *domain.Job) { j.Prompt = "cat"; j.Count = 1; j.Seed = 42 },
		},
		{
			name: "explicit size floored to stride",
			raw:  "cat -w 1000 --height 700",
			mutate: func(j *domain.Job) {
				j.Prompt = "cat"
				j.Width = 960
				j.Height = 640
				j.Seed = 42
			},
		},
		{
			name: "explicit width wins over ar",
			raw:  "cat --ar 16:9 --width 512",
			mutate: func(j *domain.Job) {
				j.Prompt = "cat"
				j.Width = 512
				j.Height = 768
				j.Seed = 42
			},
		},
		{
			name:   "mistyped model",
			raw:    "cat --model sdx",
			mutate: func(j *domain.Job) { j.Prompt = "cat"; j.Model = "sdxl"; j.Seed = 42 },
		},
		{
			name:   "alias",
			raw:    "cat -m fast",
			mutate: func(j *domain.Job) { j.Prompt = "cat"; j.Model = "sdxl"; j.Seed = 42 },
		},
		{
			name: "single image model at full size",
			raw:  "cat --model flux-dev -w 2048 -h 2048",
			mutate: func(j *domain.Job) {
				j.Prompt = "cat"
				j.Model = "flux-dev"
				j.Width = 2048
				j.Height = 2048
				j.Seed = 42
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(tt.raw)
			want := domain.NewJob(req)
			tt.mutate(&want)

			got, err := Parse(req, testCatalog())
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.raw, err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("Parse(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "Linguistic prompt is required"},
		{raw: "--style watercolor", want: "Linguistic prompt is required"},
		{raw: "cat --bogus 1", want: "Unknown option: bogus"},
		{raw: "cat --seed", want: "Missing value for option: seed"},
		{raw: "cat --scale 100", want: "Scale must be between 1 and 80"},
		{raw: "cat --scale=abc", want: "Scale must be a number"},
		{raw: "cat --scale NaN", want: "Scale must be a number"},
		{raw: "cat --scale +Inf", want: "Scale must be a number"},
		{raw: "cat -a nan", want: "Aesthetic scale must be a number"},
		{raw: "cat --aesthetic=-Inf", want: "Aesthetic scale must be a number"},
		{raw: "cat -a 31", want: "Aesthetic scale must be between 1 and 30"},
		{raw: "cat --steps 0", want: "Steps must be at least 1"},
		{raw: "cat --count many", want: "Count must be a number"},
		{raw: "cat --ar 5:1", want: "Aspect ratio must be between 1:4 and 4:1"},
		{raw: "cat --ar wide", want: "AR must be in the form W:H"},
		{raw: "cat -w 10", want: "Resolution is too low"},
		{raw: "cat --width 2048 --height 4096", want: "Resolution is too high"},
		{raw: "cat --model zzzzzz", want: "Unknown model: zzzzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := Parse(request(tt.raw), testCatalog())
			if err == nil {
				t.Fatalf("Parse(%q) expected error", tt.raw)
			}
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("Parse(%q) error %v is not a user error", tt.raw, err)
			}
			if err.Error() != tt.want {
				t.Fatalf("Parse(%q) error = %q, want %q", tt.raw, err.Error(), tt.want)
			}
		})
	}
}

func TestParseDefaultSeedUsesClock(t *testing.T) {
	pinClock(t, 1234)
	job, err := Parse(request("cat"), testCatalog())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if job.Seed != 1234 {
		t.Fatalf("Seed = %d, want 1234", job.Seed)
	}
}
