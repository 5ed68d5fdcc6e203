package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"dreambot/internal/domain"
)

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	// SystemPrompt replaces the built-in instructions.
	SystemPrompt string
	HTTPClient   *http.Client
	Fallback     Enhancer
	OnFallback   func(reason string, err error)
	OnWarning    func(reason, detail string)
}

// OpenAIEnhancer asks an OpenAI compatible chat completion endpoint to expand
// descriptions. It remembers each user's previous exchange so follow-ups like
// "same but at night" work.
type OpenAIEnhancer struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	systemPrompt string
	client       *http.Client
	fallback     Enhancer
	onFallback   func(reason string, err error)

	mu      sync.Mutex
	history map[string]exchange
}

type exchange struct {
	dream    string
	response string
}

const openAIDefaultTimeout = 30 * time.Second

const defaultOpenAIModel = "gpt-4o-mini"

const defaultSystemPrompt = `You write prompts for an image generation model. Given a user's loose description, respond strictly with JSON of the form {"prompt": string, "aspect_ratio": string, "comment": string}. "prompt" is a detailed, comma separated description of the image. "aspect_ratio" is W:H between 1:4 and 4:1. "comment" is one short friendly sentence addressed to the user about the picture. Never produce NSFW content.`

var openAIModelCanonical = map[string]string{
	"gpt-3.5-turbo": "gpt-3.5-turbo",
	"gpt-4o-mini":   "gpt-4o-mini",
	"gpt-4o":        "gpt-4o",
}

var openAIModelAliases = map[string]string{
	"gpt-3.5":      "gpt-3.5-turbo",
	"gpt3.5":       "gpt-3.5-turbo",
	"gpt-35-turbo": "gpt-3.5-turbo",
	"gpt4o-mini":   "gpt-4o-mini",
	"gpt4omini":    "gpt-4o-mini",
	"gpt4o":        "gpt-4o",
}

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIEnhancer(opts OpenAIOptions) (*OpenAIEnhancer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	modelInput := strings.TrimSpace(opts.Model)
	normalizedModel, normalizationReason := normalizeOpenAIModel(modelInput)
	if normalizationReason != "" && opts.OnWarning != nil {
		detail := fmt.Sprintf("requested=%s resolved=%s", orDefault(modelInput, defaultOpenAIModel), normalizedModel)
		opts.OnWarning("model_"+normalizationReason, detail)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewStaticEnhancer(nil)
	}
	return &OpenAIEnhancer{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        normalizedModel,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		systemPrompt: orDefault(opts.SystemPrompt, defaultSystemPrompt),
		client:       client,
		fallback:     fallback,
		onFallback:   opts.OnFallback,
		history:      make(map[string]exchange),
	}, nil
}

func (o *OpenAIEnhancer) Enhance(ctx context.Context, user, dream string) (domain.Suggestion, error) {
	dream = strings.TrimSpace(dream)
	if dream == "" {
		return domain.Suggestion{}, ErrEmptyDream
	}
	payload := openAIChatRequest{
		Model:       o.model,
		Temperature: 0.7,
		ResponseFormat: &openAIFormat{
			Type: "json_object",
		},
		Messages: []openAIMessage{
			{Role: "system", Content: o.systemPrompt},
			{Role: "user", Content: o.userMessage(user, dream)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return o.useFallback(ctx, user, dream, "encode_request", err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return o.useFallback(ctx, user, dream, "build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return o.useFallback(ctx, user, dream, "http_request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return o.useFallback(ctx, user, dream, fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("openai status %d", resp.StatusCode))
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return o.useFallback(ctx, user, dream, "decode_response", err)
	}
	if len(out.Choices) == 0 {
		return o.useFallback(ctx, user, dream, "empty_choices", errors.New("no choices"))
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return o.useFallback(ctx, user, dream, "empty_response", errors.New("empty response"))
	}
	suggestion, err := decodeSuggestion(text)
	if errors.Is(err, errNoPrompt) {
		return o.useFallback(ctx, user, dream, "empty_prompt", err)
	}
	if err != nil {
		return o.useFallback(ctx, user, dream, "parse_payload", err)
	}
	o.remember(user, dream, suggestion)
	return suggestion, nil
}

func (o *OpenAIEnhancer) userMessage(user, dream string) string {
	o.mu.Lock()
	prev, ok := o.history[user]
	o.mu.Unlock()
	lastDream, lastResponse := "None", "None"
	if ok {
		lastDream, lastResponse = prev.dream, prev.response
	}
	return fmt.Sprintf("Username: %s\nNSFW disallowed\n\nPrevious prompt:\n%s\n\nPrevious response:\n%s\n\nCurrent prompt:\n%s",
		user, lastDream, lastResponse, dream)
}

func (o *OpenAIEnhancer) remember(user, dream string, s domain.Suggestion) {
	response, _ := json.Marshal(map[string]string{"prompt": s.Prompt, "comment": s.Comment})
	o.mu.Lock()
	o.history[user] = exchange{dream: dream, response: string(response)}
	o.mu.Unlock()
}

func (o *OpenAIEnhancer) useFallback(ctx context.Context, user, dream, reason string, fallbackErr error) (domain.Suggestion, error) {
	if o.onFallback != nil {
		o.onFallback(reason, fallbackErr)
	}
	return o.fallback.Enhance(ctx, user, dream)
}

var _ Enhancer = (*OpenAIEnhancer)(nil)

func normalizeOpenAIModel(name string) (string, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultOpenAIModel, ""
	}
	normalized := strings.ToLower(trimmed)
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	if canonical, ok := openAIModelCanonical[normalized]; ok {
		return canonical, ""
	}
	if alias, ok := openAIModelAliases[normalized]; ok {
		return alias, "alias"
	}
	// Compatible servers host arbitrary models; pass unknown names through.
	return trimmed, "passthrough"
}
