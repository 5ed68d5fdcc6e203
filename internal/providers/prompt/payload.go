package prompt

import (
	"encoding/json"
	"errors"
	"strings"

	"dreambot/internal/domain"
)

var errNoPrompt = errors.New("no prompt in payload")

type suggestionPayload struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Comment     string `json:"comment"`
}

// decodeSuggestion reads the JSON object a chat model answered with. Models
// sometimes wrap it in a markdown fence or add chatter around it, so only the
// outermost {...} is decoded.
func decodeSuggestion(content string) (domain.Suggestion, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return domain.Suggestion{}, errors.New("no JSON object in response")
	}
	var p suggestionPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &p); err != nil {
		return domain.Suggestion{}, err
	}
	s := domain.Suggestion{
		Prompt:      strings.TrimSpace(p.Prompt),
		AspectRatio: orDefault(p.AspectRatio, "1:1"),
		Comment:     strings.TrimSpace(p.Comment),
	}
	if s.Prompt == "" {
		return domain.Suggestion{}, errNoPrompt
	}
	return s, nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
