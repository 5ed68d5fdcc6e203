package comfy_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dreambot/internal/comfy"
	"dreambot/internal/comfy/comfytest"
)

func newClient(t *testing.T, baseURL string, d comfy.Dialect) *comfy.Client {
	t.Helper()
	c, err := comfy.NewClient(comfy.Options{BaseURL: baseURL, Dialect: d, ClientID: "bot"})
	require.NoError(t, err)
	return c
}

func TestSubmitStatusFetch(t *testing.T) {
	for _, d := range []comfy.Dialect{comfy.DefaultDialect, comfy.ComfyUIDialect} {
		t.Run(d.Name, func(t *testing.T) {
			backend := comfytest.New(t, d)
			backend.PendingPolls = 1
			c := newClient(t, backend.URL(), d)
			ctx := context.Background()

			id, err := c.Submit(ctx, json.RawMessage(`{"5":{"inputs":{"batch_size":2}}}`))
			require.NoError(t, err)
			require.Equal(t, "job-1", id)
			require.Equal(t, []string{"bot"}, backend.ClientIDs())

			images, done, err := c.Status(ctx, id)
			require.NoError(t, err)
			require.False(t, done)
			require.Empty(t, images)

			images, done, err = c.Status(ctx, id)
			require.NoError(t, err)
			require.True(t, done)
			require.Len(t, images, 2)
			require.Equal(t, "job-1_00000.png", images[0].Filename)

			data, err := c.Fetch(ctx, images[0])
			require.NoError(t, err)
			require.Equal(t, backend.Image, data)
			require.Equal(t, []string{"job-1_00000.png"}, backend.Fetched())
		})
	}
}

func TestSubmitBackendError(t *testing.T) {
	backend := comfytest.New(t, comfy.DefaultDialect)
	backend.SubmitFailures = 1
	backend.SubmitError = comfy.BackendError{Message: "Prompt outputs failed validation", Details: "ckpt missing"}
	c := newClient(t, backend.URL(), comfy.DefaultDialect)

	_, err := c.Submit(context.Background(), json.RawMessage(`{}`))
	var be *comfy.BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "Prompt outputs failed validation", be.Message)
	require.Equal(t, "ckpt missing", be.Details)
	require.Equal(t, "Prompt outputs failed validation: ckpt missing", err.Error())
}

func TestSubmitAcceptsJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"job_id":"abc"}`))
	}))
	t.Cleanup(srv.Close)

	id, err := newClient(t, srv.URL, comfy.DefaultDialect).Submit(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, "abc", id)
}

func TestDecodeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv.URL, comfy.DefaultDialect)

	_, err := c.Submit(context.Background(), json.RawMessage(`{}`))
	var de *comfy.DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "submit", de.Op)

	_, _, err = c.Status(context.Background(), "x")
	require.ErrorAs(t, err, &de)
	require.Equal(t, "status", de.Op)
}

func TestStatusWithoutImages(t *testing.T) {
	backend := comfytest.New(t, comfy.DefaultDialect)
	backend.NoImages = true
	c := newClient(t, backend.URL(), comfy.DefaultDialect)

	_, done, err := c.Status(context.Background(), "job-1")
	require.True(t, done)
	require.True(t, errors.Is(err, comfy.ErrNoImages))
}

func TestSubscribeWakes(t *testing.T) {
	backend := comfytest.New(t, comfy.DefaultDialect)
	c := newClient(t, backend.URL(), comfy.DefaultDialect)

	ctx, cancel := context.WithCancel(context.Background())
	wake, err := c.Subscribe(ctx, "job-1")
	require.NoError(t, err)

	select {
	case _, ok := <-wake:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("no status push received")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-wake:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNewClientValidation(t *testing.T) {
	_, err := comfy.NewClient(comfy.Options{})
	require.Error(t, err)
	_, err = comfy.NewClient(comfy.Options{BaseURL: "ftp://host"})
	require.Error(t, err)

	c, err := comfy.NewClient(comfy.Options{BaseURL: "http://127.0.0.1:8188/"})
	require.NoError(t, err)
	require.NotEmpty(t, c.ClientID())
	require.Equal(t, comfy.DefaultDialect, c.Dialect())
}

func TestDialectByName(t *testing.T) {
	d, err := comfy.DialectByName("comfyui")
	require.NoError(t, err)
	require.Equal(t, "/history/", d.StatusPath)

	d, err = comfy.DialectByName("")
	require.NoError(t, err)
	require.Equal(t, "job", d.JobField)

	_, err = comfy.DialectByName("a1111")
	require.Error(t, err)
}
