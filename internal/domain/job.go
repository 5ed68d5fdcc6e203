package domain

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultCount is the number of images produced when --count is absent.
	DefaultCount = 4
	// MaxCount caps --count; larger values are clamped.
	MaxCount = 9
	// Stride is the granularity of every derived width and height.
	Stride = 64
	// MaxPixels bounds width*height of a single image.
	MaxPixels = 2048 * 2048
	// BatchPixels is the pixel budget of one sub-batch sent to the backend.
	BatchPixels = 4 * 1024 * 1024

	DefaultGuidanceScale  = 5.5
	DefaultAestheticScale = 20.0
	DefaultModel          = "default"
)

// Job is a fully parsed and validated generation request.
type Job struct {
	Request            RawRequest `json:"request"`
	Model              string     `json:"model"`
	Prompt             string     `json:"prompt"`
	Style              string     `json:"style"`
	Negative           string     `json:"negative"`
	UsePositiveDefault bool       `json:"use_positive_default"`
	UseNegativeDefault bool       `json:"use_negative_default"`
	GuidanceScale      float64    `json:"guidance_scale"`
	AestheticScale     float64    `json:"aesthetic_scale"`
	Steps              *int       `json:"steps,omitempty"`
	Count              int        `json:"count"`
	Seed               int64      `json:"seed"`
	Width              int        `json:"width"`
	Height             int        `json:"height"`
}

// NewJob returns a job populated with the defaults every command starts from.
func NewJob(req RawRequest) Job {
	return Job{
		Request:            req,
		Model:              DefaultModel,
		UsePositiveDefault: true,
		UseNegativeDefault: true,
		GuidanceScale:      DefaultGuidanceScale,
		AestheticScale:     DefaultAestheticScale,
		Count:              DefaultCount,
		Width:              1024,
		Height:             1024,
	}
}

// User returns the requesting user's identifier.
func (j Job) User() string {
	return j.Request.User
}

// MaxBatchSize is the largest number of images the backend may render in one
// submission for this job. Some model families gain nothing from batching.
func (j Job) MaxBatchSize() int {
	name := strings.ToLower(j.Model)
	if strings.Contains(name, "flux") || strings.Contains(name, "pixart") {
		return 1
	}
	pixels := j.Width * j.Height
	if pixels <= 0 {
		return 0
	}
	return BatchPixels / pixels
}

// SubBatches splits the job's image count into backend submissions no larger
// than MaxBatchSize.
func (j Job) SubBatches() []int {
	limit := j.MaxBatchSize()
	if limit < 1 {
		return nil
	}
	var sizes []int
	for remaining := j.Count; remaining > 0; {
		n := min(remaining, limit)
		sizes = append(sizes, n)
		remaining -= n
	}
	return sizes
}

// CompletedJob carries the images produced for a job.
type CompletedJob struct {
	ID     uuid.UUID
	Job    Job
	Images [][]byte
}
