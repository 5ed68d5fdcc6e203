package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dreambot/internal/catalog"
	"dreambot/internal/domain"
)

// Prompts holds the prompt texts a workflow is filled with.
type Prompts struct {
	Positive   string
	Supporting string
	Negative   string
	Combined   string
}

// BuildPrompts applies the model's default texts and connector to the job's
// prompts.
func BuildPrompts(model catalog.Model, job domain.Job) Prompts {
	positive := job.Prompt
	if job.UsePositiveDefault && model.DefaultPositive != "" {
		positive = model.DefaultPositive + ", " + positive
	}
	negative := job.Negative
	if job.UseNegativeDefault && model.DefaultNegative != "" {
		negative = joinNonEmpty(", ", negative, model.DefaultNegative)
	}
	combined := positive
	if job.Style != "" {
		combined = fmt.Sprintf("%s. %s%s", positive, model.Connector(), job.Style)
	}
	return Prompts{
		Positive:   positive,
		Supporting: job.Style,
		Negative:   negative,
		Combined:   combined,
	}
}

// BuildWorkflow fills the placeholders of a workflow template for one
// sub-batch. The result is checked to be valid JSON.
func BuildWorkflow(template []byte, model catalog.Model, job domain.Job, batchSize int, seed int64) (json.RawMessage, error) {
	prompts := BuildPrompts(model, job)
	steps := model.Steps()
	if job.Steps != nil {
		steps = *job.Steps
	}
	w, h := job.Width, job.Height

	replacer := strings.NewReplacer(
		"__REFINER_CHECKPOINT__", jsonString(model.RefinerCheckpoint()),
		"__BASE_CHECKPOINT__", jsonString(model.Baseline),
		"__VAE__", jsonString(model.VAE),
		"__NEGATIVE_PROMPT__", jsonString(prompts.Negative),
		"__PROMPT_A__", jsonString(prompts.Positive),
		"__PROMPT_B__", jsonString(prompts.Supporting),
		"__COMBINED_PROMPT__", jsonString(prompts.Combined),
		"__STEPS_TOTAL__", strconv.Itoa(steps),
		"__STEPS_HALF__", strconv.Itoa(steps/2),
		"__FIRST_PASS_END_AT_STEP__", strconv.Itoa(int(float64(steps)*0.5)),
		"__WIDTH__", strconv.Itoa(w),
		"__HEIGHT__", strconv.Itoa(h),
		"__WIDTH_d2__", strconv.Itoa(w/2),
		"__HEIGHT_d2__", strconv.Itoa(h/2),
		"__2xWIDTH__", strconv.Itoa(w*2),
		"__2xHEIGHT__", strconv.Itoa(h*2),
		"__4xWIDTH__", strconv.Itoa(w*4),
		"__4xHEIGHT__", strconv.Itoa(h*4),
		"__SEED__", strconv.FormatInt(seed, 10),
		"__BASE_CFG__", formatFloat(job.GuidanceScale),
		"__REFINER_CFG__", formatFloat(job.GuidanceScale),
		"__BATCH_SIZE__", strconv.Itoa(batchSize),
		"__POSITIVE_A_SCORE__", formatFloat(job.AestheticScale),
		"__NEGATIVE_A_SCORE__", "1.0",
	)
	filled := []byte(replacer.Replace(string(template)))
	if !json.Valid(filled) {
		return nil, fmt.Errorf("runner: workflow for model %q is not valid JSON after templating", model.Name)
	}
	return json.RawMessage(filled), nil
}

// jsonString escapes s for use inside a JSON string literal, without the
// surrounding quotes.
func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	out := strings.TrimSuffix(buf.String(), "\n")
	return out[1 : len(out)-1]
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
