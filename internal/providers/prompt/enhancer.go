// Package prompt turns loose descriptions into full generation prompts.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dreambot/internal/domain"
)

// ErrEmptyDream is returned for blank descriptions.
var ErrEmptyDream = errors.New("prompt: description is empty")

type Enhancer interface {
	Enhance(ctx context.Context, user, dream string) (domain.Suggestion, error)
}

// StaticEnhancer expands descriptions locally with a random style preset and
// a keyword based aspect ratio guess.
type StaticEnhancer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewStaticEnhancer returns an enhancer drawing styles from rng. A nil rng
// uses the global source.
func NewStaticEnhancer(rng *rand.Rand) *StaticEnhancer {
	return &StaticEnhancer{rng: rng}
}

func (s *StaticEnhancer) Enhance(ctx context.Context, user, dream string) (domain.Suggestion, error) {
	dream = strings.Join(strings.Fields(dream), " ")
	if dream == "" {
		return domain.Suggestion{}, ErrEmptyDream
	}
	s.mu.Lock()
	style := RandomStyle(s.rng)
	s.mu.Unlock()

	title := cases.Title(language.English)
	return domain.Suggestion{
		Prompt:      fmt.Sprintf("%s, %s", dream, style.Text),
		AspectRatio: guessAspectRatio(dream),
		Comment:     fmt.Sprintf("%s, dreamt in %s.", title.String(truncateWords(dream, 6)), style.Name),
	}, nil
}

var aspectHints = []struct {
	words []string
	ratio string
}{
	{[]string{"panorama", "panoramic", "skyline", "banner"}, "21:9"},
	{[]string{"landscape", "vista", "wide", "horizon", "cinematic"}, "16:9"},
	{[]string{"portrait", "selfie", "tall", "standing", "poster"}, "2:3"},
	{[]string{"phone", "wallpaper", "vertical"}, "9:16"},
}

func guessAspectRatio(dream string) string {
	lower := strings.ToLower(dream)
	for _, hint := range aspectHints {
		for _, w := range hint.words {
			if strings.Contains(lower, w) {
				return hint.ratio
			}
		}
	}
	return "1:1"
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "…"
}

var _ Enhancer = (*StaticEnhancer)(nil)
