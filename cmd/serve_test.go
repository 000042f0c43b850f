package cmd

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/stretchr/testify/require"

	"github.com/Monsterkot/diplom/internal/tasks"
)

func TestServeMux(t *testing.T) {
	tc := setupCatalogs(t)

	app, err := openApp(tc.cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	id, err := app.Queue.Submit("echo", func(_ context.Context, _ tasks.ProgressFunc) (any, error) {
		return map[string]int{"answer": 42}, nil
	})
	require.NoError(t, err)
	_, err = app.Queue.Wait(t.Context(), id)
	require.NoError(t, err)

	server := httptest.NewServer(newServeMux(app))
	t.Cleanup(server.Close)

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get("/tasks/" + id)
	assert.Equal(t, http.StatusOK, code)
	status := decode[tasks.Status](t, []byte(body))
	assert.Equal(t, tasks.StateSucceeded, status.State)
	assert.Equal(t, 42, decode[map[string]int](t, status.Result)["answer"])

	code, _ = get("/tasks/missing")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "diplom_")
}
