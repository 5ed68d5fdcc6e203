// Package comfy talks to the image generation backend: it submits workflow
// graphs, listens for completion pushes over a WebSocket, polls job status and
// downloads the resulting files.
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dreambot/internal/infra"
)

// Options configures a backend client.
type Options struct {
	BaseURL        string
	Dialect        Dialect
	ClientID       string
	HTTPClient     *http.Client
	Dialer         *websocket.Dialer
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	dialect    Dialect
	clientID   string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *infra.Logger
}

// Image identifies one output file of a finished job.
type Image struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type submitResponse struct {
	PromptID string         `json:"prompt_id"`
	JobID    string         `json:"job_id"`
	Error    *errorResponse `json:"error"`
}

type errorResponse struct {
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []Image `json:"images"`
	} `json:"outputs"`
}

type pushMessage struct {
	Type string `json:"type"`
}

// NewClient constructs a client with defaults for anything left unset.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("comfy: base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("comfy: invalid base url %q", opts.BaseURL)
	}
	dialect := opts.Dialect
	if dialect.Name == "" {
		dialect = DefaultDialect
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return &Client{
		baseURL:    baseURL,
		dialect:    dialect,
		clientID:   clientID,
		httpClient: httpClient,
		dialer:     dialer,
		logger:     infra.Component(opts.Logger, "comfy"),
	}, nil
}

// ClientID is sent with every submission.
func (c *Client) ClientID() string {
	return c.clientID
}

// Dialect returns the endpoint set in use.
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// Submit queues a workflow graph and returns the backend's job id.
func (c *Client) Submit(ctx context.Context, workflow json.RawMessage) (string, error) {
	body, err := json.Marshal(map[string]any{
		c.dialect.JobField: workflow,
		"client_id":        c.clientID,
	})
	if err != nil {
		return "", fmt.Errorf("comfy: encode submit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.dialect.SubmitPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("comfy: build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, status, err := c.do(req)
	if err != nil {
		return "", err
	}
	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if status >= 300 {
			return "", fmt.Errorf("comfy: submit status %d: %s", status, strings.TrimSpace(string(raw)))
		}
		return "", &DecodeError{Op: "submit", Err: err}
	}
	if decoded.Error != nil {
		return "", decoded.Error.toBackendError()
	}
	if status >= 300 {
		return "", fmt.Errorf("comfy: submit status %d", status)
	}
	id := decoded.PromptID
	if id == "" {
		id = decoded.JobID
	}
	if id == "" {
		return "", &DecodeError{Op: "submit", Err: errors.New("response carries no job id")}
	}
	c.logger.Debug().Str("job_id", id).Msg("comfy: submitted workflow")
	return id, nil
}

// Status reports whether the job finished and, if so, the images of its first
// output that has any. A finished job without images yields ErrNoImages.
func (c *Client) Status(ctx context.Context, jobID string) ([]Image, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.dialect.StatusPath+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, false, fmt.Errorf("comfy: build status request: %w", err)
	}
	raw, status, err := c.do(req)
	if err != nil {
		return nil, false, err
	}
	if status >= 300 {
		return nil, false, c.statusError("status", status, raw)
	}
	var history map[string]historyEntry
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, false, &DecodeError{Op: "status", Err: err}
	}
	if len(history) == 0 {
		return nil, false, nil
	}
	entry, ok := history[jobID]
	if !ok {
		for _, e := range history {
			entry = e
			break
		}
	}
	nodes := make([]string, 0, len(entry.Outputs))
	for node := range entry.Outputs {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if images := entry.Outputs[node].Images; len(images) > 0 {
			return images, true, nil
		}
	}
	return nil, true, ErrNoImages
}

// Fetch downloads one output file.
func (c *Client) Fetch(ctx context.Context, img Image) ([]byte, error) {
	query := url.Values{}
	query.Set("filename", img.Filename)
	if img.Subfolder != "" {
		query.Set("subfolder", img.Subfolder)
	}
	if img.Type != "" {
		query.Set("type", img.Type)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.dialect.FetchPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("comfy: build fetch request: %w", err)
	}
	raw, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, c.statusError("fetch", status, raw)
	}
	return raw, nil
}

// Subscribe opens the push channel for a submitted job. The returned channel
// receives a value whenever the backend announces a status change and is
// closed when the connection drops or ctx ends.
func (c *Client) Subscribe(ctx context.Context, jobID string) (<-chan struct{}, error) {
	wsURL, err := url.Parse(c.baseURL + c.dialect.SubscribePath)
	if err != nil {
		return nil, fmt.Errorf("comfy: build subscribe url: %w", err)
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	q := wsURL.Query()
	q.Set("clientId", jobID)
	wsURL.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("comfy: subscribe: %w", err)
	}

	wake := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	go func() {
		defer close(wake)
		defer close(done)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Debug().Err(err).Msg("comfy: push connection closed")
				}
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			var msg pushMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "status" {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()
	return wake, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("comfy: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("comfy: read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) statusError(op string, status int, raw []byte) error {
	var wrapper struct {
		Error *errorResponse `json:"error"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Error != nil {
		return wrapper.Error.toBackendError()
	}
	return fmt.Errorf("comfy: %s status %d: %s", op, status, strings.TrimSpace(string(raw)))
}

func (e *errorResponse) toBackendError() *BackendError {
	details := strings.TrimSpace(string(e.Details))
	var text string
	if err := json.Unmarshal(e.Details, &text); err == nil {
		details = text
	}
	if details == "null" {
		details = ""
	}
	return &BackendError{Message: e.Message, Details: details}
}
