package prompt

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestStaticEnhancer(t *testing.T) {
	enhancer := NewStaticEnhancer(rand.New(rand.NewPCG(1, 2)))

	tests := []struct {
		dream string
		ar    string
	}{
		{dream: "a lighthouse at dusk", ar: "1:1"},
		{dream: "mountain landscape with lakes", ar: "16:9"},
		{dream: "portrait of an old sailor", ar: "2:3"},
		{dream: "city skyline at night", ar: "21:9"},
	}
	for _, tt := range tests {
		t.Run(tt.dream, func(t *testing.T) {
			got, err := enhancer.Enhance(context.Background(), "alice", "  "+tt.dream+"  ")
			if err != nil {
				t.Fatalf("Enhance returned error: %v", err)
			}
			if !strings.HasPrefix(got.Prompt, tt.dream+", ") {
				t.Fatalf("Prompt = %q", got.Prompt)
			}
			if got.AspectRatio != tt.ar {
				t.Fatalf("AspectRatio = %q, want %q", got.AspectRatio, tt.ar)
			}
			if !strings.Contains(got.Comment, "dreamt in") {
				t.Fatalf("Comment = %q", got.Comment)
			}
		})
	}
}

func TestStaticEnhancerTitleCasesComment(t *testing.T) {
	got, err := NewStaticEnhancer(nil).Enhance(context.Background(), "bob", "a quiet harbor")
	if err != nil {
		t.Fatalf("Enhance returned error: %v", err)
	}
	if !strings.HasPrefix(got.Comment, "A Quiet Harbor, dreamt in ") {
		t.Fatalf("Comment = %q", got.Comment)
	}
}

func TestStaticEnhancerRejectsEmpty(t *testing.T) {
	if _, err := NewStaticEnhancer(nil).Enhance(context.Background(), "bob", "   "); !errors.Is(err, ErrEmptyDream) {
		t.Fatalf("error = %v, want ErrEmptyDream", err)
	}
}

func TestRandomStyleCoversPresets(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	seen := map[string]bool{}
	for i := 0; i < 2000; i++ {
		seen[RandomStyle(rng).Name] = true
	}
	if len(seen) != len(Styles) {
		t.Fatalf("saw %d styles, want %d", len(seen), len(Styles))
	}
}
