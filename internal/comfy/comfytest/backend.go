// Package comfytest provides an in-process fake of the generation backend for
// tests.
package comfytest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"dreambot/internal/comfy"
)

// Backend records submissions and answers like a real backend would. Set the
// exported knobs before the first request.
type Backend struct {
	Server  *httptest.Server
	Dialect comfy.Dialect

	// SubmitFailures is the number of leading submissions rejected with
	// SubmitError.
	SubmitFailures int
	SubmitError    comfy.BackendError
	// PendingPolls is how many status polls per job report "still running".
	PendingPolls int
	// NeverFinish keeps every job running forever.
	NeverFinish bool
	// NoImages makes finished jobs report outputs without images.
	NoImages bool
	// PushInterval paces the status pushes on the WebSocket. Zero disables
	// pushes.
	PushInterval time.Duration
	// Image is served for every fetched file. Defaults to a small PNG.
	Image []byte

	mu        sync.Mutex
	submitted []map[string]json.RawMessage
	submits   int
	polls     map[string]int
	clientIDs []string
	fetched   []string
	upgrader  websocket.Upgrader
}

// New starts a fake backend speaking dialect d.
func New(t testing.TB, d comfy.Dialect) *Backend {
	t.Helper()
	b := &Backend{
		Dialect:      d,
		PushInterval: 5 * time.Millisecond,
		Image:        PNG(t, 8, 8),
		polls:        make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(d.SubmitPath, b.handleSubmit)
	mux.HandleFunc(d.SubscribePath, b.handleSubscribe)
	mux.HandleFunc(d.StatusPath, b.handleStatus)
	mux.HandleFunc(d.FetchPath, b.handleFetch)
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the backend base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

// Submitted returns the workflow graphs accepted so far.
func (b *Backend) Submitted() []map[string]json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]json.RawMessage(nil), b.submitted...)
}

// Submits counts every submission attempt, rejected ones included.
func (b *Backend) Submits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submits
}

// Polls reports how often the status of jobID was requested.
func (b *Backend) Polls(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls[jobID]
}

// ClientIDs lists the client ids sent with accepted submissions.
func (b *Backend) ClientIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.clientIDs...)
}

// Fetched lists the downloaded file names.
func (b *Backend) Fetched() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.fetched...)
}

func (b *Backend) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.submits++
	reject := b.submits <= b.SubmitFailures
	id := fmt.Sprintf("job-%d", b.submits)
	if !reject {
		var graph map[string]json.RawMessage
		_ = json.Unmarshal(body[b.Dialect.JobField], &graph)
		b.submitted = append(b.submitted, graph)
		var clientID string
		_ = json.Unmarshal(body["client_id"], &clientID)
		b.clientIDs = append(b.clientIDs, clientID)
	}
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if reject {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"message": b.SubmitError.Message,
				"details": b.SubmitError.Details,
			},
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"prompt_id": id})
}

func (b *Backend) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	if b.PushInterval <= 0 {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
	ticker := time.NewTicker(b.PushInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status","data":{}}`)); err != nil {
			return
		}
	}
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, b.Dialect.StatusPath)

	b.mu.Lock()
	b.polls[id]++
	polls := b.polls[id]
	running := b.NeverFinish || polls <= b.PendingPolls
	batch := b.batchSize(id)
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if running {
		_, _ = w.Write([]byte(`{}`))
		return
	}
	images := make([]comfy.Image, 0, batch)
	if !b.NoImages {
		for i := 0; i < batch; i++ {
			images = append(images, comfy.Image{Filename: fmt.Sprintf("%s_%05d.png", id, i), Type: "output"})
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		id: map[string]any{
			"outputs": map[string]any{
				"3": map[string]any{"text": []string{"ignored"}},
				"9": map[string]any{"images": images},
			},
		},
	})
}

func (b *Backend) handleFetch(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	b.mu.Lock()
	b.fetched = append(b.fetched, name)
	b.mu.Unlock()
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(b.Image)
}

// batchSize finds a "batch_size" input in the submitted graph. Caller holds mu.
func (b *Backend) batchSize(id string) int {
	var n int
	if _, err := fmt.Sscanf(id, "job-%d", &n); err != nil {
		return 1
	}
	accepted := n - b.SubmitFailures - 1
	if accepted < 0 || accepted >= len(b.submitted) {
		return 1
	}
	for _, raw := range b.submitted[accepted] {
		var node struct {
			Inputs map[string]json.RawMessage `json:"inputs"`
		}
		if err := json.Unmarshal(raw, &node); err != nil {
			continue
		}
		if v, ok := node.Inputs["batch_size"]; ok {
			var size int
			if err := json.Unmarshal(v, &size); err == nil && size > 0 {
				return size
			}
		}
	}
	return 1
}

// PNG encodes a solid w×h image.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
