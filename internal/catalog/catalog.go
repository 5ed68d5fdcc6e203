// Package catalog holds the read-only model and alias configuration that
// requests are resolved against.
package catalog

import (
	"fmt"
	"sort"

	"github.com/xrash/smetrics"

	"dreambot/internal/domain"
)

// SimilarityThreshold is the minimum Jaro-Winkler score for a mistyped model
// name to be replaced by its closest match.
const SimilarityThreshold = 0.7

const (
	defaultBaseResolution = 1024
	defaultSteps          = 30
	defaultStyleConnector = ": "
)

// Model describes one backend checkpoint setup.
type Model struct {
	Name            string
	Description     string
	Workflow        string
	Baseline        string
	Refiner         string
	VAE             string
	DefaultPositive string
	DefaultNegative string
	DefaultSteps    int
	BaseResolution  int
	StyleConnector  *string
}

// Steps returns the configured default step count.
func (m Model) Steps() int {
	if m.DefaultSteps > 0 {
		return m.DefaultSteps
	}
	return defaultSteps
}

// Resolution returns the side length of the square whose area is the model's
// native pixel budget.
func (m Model) Resolution() int {
	if m.BaseResolution > 0 {
		return m.BaseResolution
	}
	return defaultBaseResolution
}

// Connector joins the primary and supporting prompts in the combined prompt.
func (m Model) Connector() string {
	if m.StyleConnector != nil {
		return *m.StyleConnector
	}
	return defaultStyleConnector
}

// RefinerCheckpoint falls back to the baseline when no refiner is configured.
func (m Model) RefinerCheckpoint() string {
	if m.Refiner != "" {
		return m.Refiner
	}
	return m.Baseline
}

// Catalog is an immutable set of models and aliases.
type Catalog struct {
	Models  map[string]Model
	Aliases map[string]string
}

// Model looks up a concrete model by its canonical name.
func (c *Catalog) Model(name string) (Model, bool) {
	m, ok := c.Models[name]
	return m, ok
}

// Names lists every model and alias name in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Models)+len(c.Aliases))
	for name := range c.Models {
		names = append(names, name)
	}
	for name := range c.Aliases {
		if _, dup := c.Models[name]; !dup {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve maps a user-typed model name to a concrete model name. Unknown names
// are replaced by the most similar known name when it is close enough; aliases
// are then followed until a model is reached.
func (c *Catalog) Resolve(name string) (string, error) {
	if _, ok := c.Models[name]; !ok {
		best, score := c.closest(name)
		if best == "" {
			return "", domain.Invalid(fmt.Sprintf("Unknown model: %s", name))
		}
		if score < SimilarityThreshold {
			return "", domain.Invalid(fmt.Sprintf("Unknown model: %s. Did you mean %s?", name, best))
		}
		name = best
	}
	resolved, err := c.dereference(name)
	if err != nil {
		return "", err
	}
	if _, ok := c.Models[resolved]; !ok {
		return "", domain.Invalid(fmt.Sprintf("No such model: %s", resolved))
	}
	return resolved, nil
}

func (c *Catalog) dereference(name string) (string, error) {
	start := name
	for hops := 0; ; hops++ {
		target, ok := c.Aliases[name]
		if !ok {
			return name, nil
		}
		if hops >= len(c.Aliases) {
			return "", fmt.Errorf("catalog: resolve %q: %w", start, domain.ErrAliasCycle)
		}
		name = target
	}
}

// closest returns the known name most similar to name. Ties keep the
// alphabetically first candidate.
func (c *Catalog) closest(name string) (string, float64) {
	var best string
	bestScore := 0.0
	for _, candidate := range c.Names() {
		score := Similarity(name, candidate)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best, bestScore
}

// Similarity is the Jaro-Winkler score of two names.
func Similarity(a, b string) float64 {
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// Validate checks that every alias reaches a model without cycling.
func (c *Catalog) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("catalog: no models configured")
	}
	for alias := range c.Aliases {
		target, err := c.dereference(alias)
		if err != nil {
			return err
		}
		if _, ok := c.Models[target]; !ok {
			return fmt.Errorf("catalog: alias %q points at unknown model %q", alias, target)
		}
	}
	for name, m := range c.Models {
		if m.Workflow == "" {
			return fmt.Errorf("catalog: model %q has no workflow", name)
		}
	}
	return nil
}
