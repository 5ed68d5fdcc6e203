// Package parser turns a chat command line such as
//
//	a lighthouse at dusk --style oil painting --no people --ar 3:2 -c 2
//
// into a validated domain.Job.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dreambot/internal/catalog"
	"dreambot/internal/domain"
)

// now is replaced in tests to pin the default seed.
var now = time.Now

type target int

const (
	toPrimary target = iota
	toSupporting
	toNegative
)

type state struct {
	job        domain.Job
	primary    []string
	supporting []string
	negative   []string
	into       target
	ar         string
	width      int
	height     int
}

func (s *state) add(token string) {
	switch s.into {
	case toSupporting:
		s.supporting = append(s.supporting, token)
	case toNegative:
		s.negative = append(s.negative, token)
	default:
		s.primary = append(s.primary, token)
	}
}

// Parse validates req.Raw against the catalog and returns the resulting job.
// Every failure is a *domain.UserError.
func Parse(req domain.RawRequest, cat *catalog.Catalog) (domain.Job, error) {
	s := &state{job: domain.NewJob(req), ar: "1:1"}
	s.job.Seed = now().Unix()

	// Phones like to turn "--" into an em dash.
	raw := strings.ReplaceAll(req.Raw, "—", "--")

	var (
		option  string
		pending bool
	)
	for _, token := range strings.Fields(raw) {
		var (
			value    string
			hasValue bool
		)
		switch {
		case pending:
			value, hasValue = token, true
		case token == "-" || token == "--":
			s.add(token)
			continue
		case token == "--no":
			s.into = toNegative
			continue
		case token == "--style":
			s.into = toSupporting
			continue
		case token == "--prompt":
			s.into = toPrimary
			continue
		case strings.HasPrefix(token, "--"):
			option, value, hasValue = strings.Cut(token[2:], "=")
			pending = true
		case strings.HasPrefix(token, "-"):
			option, pending = token[1:], true
		default:
			s.add(token)
			continue
		}

		switch option {
		case "np":
			s.job.UsePositiveDefault = false
			pending = false
			continue
		case "nn":
			s.job.UseNegativeDefault = false
			pending = false
			continue
		}
		if !hasValue {
			continue
		}
		if err := s.apply(option, value); err != nil {
			return domain.Job{}, err
		}
		pending = false
	}
	if pending {
		return domain.Job{}, domain.Invalid(fmt.Sprintf("Missing value for option: %s", option))
	}

	return s.finish(cat)
}

func (s *state) apply(option, value string) error {
	switch option {
	case "model", "m":
		s.job.Model = value
	case "style", "s":
		s.supporting = append(s.supporting, value)
	case "scale":
		f, err := parseFinite(value)
		if err != nil {
			return domain.Invalid("Scale must be a number")
		}
		s.job.GuidanceScale = f
	case "aesthetic", "a":
		f, err := parseFinite(value)
		if err != nil {
			return domain.Invalid("Aesthetic scale must be a number")
		}
		s.job.AestheticScale = f
	case "steps":
		n, err := strconv.Atoi(value)
		if err != nil {
			return domain.Invalid("Steps must be a number")
		}
		s.job.Steps = &n
	case "count", "c":
		n, err := strconv.Atoi(value)
		if err != nil {
			return domain.Invalid("Count must be a number")
		}
		s.job.Count = n
	case "seed":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return domain.Invalid("Seed must be a number")
		}
		s.job.Seed = n
	case "w", "width":
		n, err := strconv.Atoi(value)
		if err != nil {
			return domain.Invalid("Width must be an integer")
		}
		s.width = n
	case "h", "height":
		n, err := strconv.Atoi(value)
		if err != nil {
			return domain.Invalid("Height must be an integer")
		}
		s.height = n
	case "ar":
		s.ar = value
	default:
		return domain.Invalid(fmt.Sprintf("Unknown option: %s", option))
	}
	return nil
}

// parseFinite is strconv.ParseFloat without NaN and the infinities.
func parseFinite(value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}

func (s *state) finish(cat *catalog.Catalog) (domain.Job, error) {
	job := s.job
	if len(s.primary) == 0 {
		return domain.Job{}, domain.Invalid("Linguistic prompt is required")
	}
	if job.GuidanceScale < 1 || job.GuidanceScale > 80 {
		return domain.Job{}, domain.Invalid("Scale must be between 1 and 80")
	}
	if job.AestheticScale < 1 || job.AestheticScale > 30 {
		return domain.Job{}, domain.Invalid("Aesthetic scale must be between 1 and 30")
	}
	if job.Steps != nil && *job.Steps < 1 {
		return domain.Job{}, domain.Invalid("Steps must be at least 1")
	}
	job.Count = max(1, min(job.Count, domain.MaxCount))

	name, err := cat.Resolve(job.Model)
	if err != nil {
		return domain.Job{}, err
	}
	job.Model = name
	model, _ := cat.Model(name)

	width, height := s.width, s.height
	if width == 0 || height == 0 {
		w, h, err := AspectRatio(s.ar, model.Resolution(), domain.Stride)
		if err != nil {
			return domain.Job{}, err
		}
		if width == 0 {
			width = w
		}
		if height == 0 {
			height = h
		}
	}
	width -= width % domain.Stride
	height -= height % domain.Stride
	if width < domain.Stride || height < domain.Stride {
		return domain.Job{}, domain.Invalid("Resolution is too low")
	}
	job.Width, job.Height = width, height
	if job.Width*job.Height > domain.MaxPixels || job.MaxBatchSize() < 1 {
		return domain.Job{}, domain.Invalid("Resolution is too high")
	}

	job.Prompt = strings.Join(s.primary, " ")
	job.Style = strings.Join(s.supporting, " ")
	job.Negative = strings.Join(s.negative, " ")
	return job, nil
}
