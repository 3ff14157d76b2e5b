package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "message": "UPSC Mind Map API is running"})
	})
	mux.HandleFunc("POST /api/upsc-mindmap", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["topic"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "topic is required"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"topic":       req["topic"],
			"definition":  "stage " + req["preparation_stage"].(string),
			"keyConcepts": []string{"a", "b"},
		})
	})
	mux.HandleFunc("GET /api/saved-generations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"generations": []map[string]string{{"id": "g1", "user_id": r.URL.Query().Get("user_id")}},
		})
	})
	mux.HandleFunc("DELETE /api/saved-generations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Generation not found"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		output = "json"
		generationsUser = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestGenerate(t *testing.T) {
	srv := fakeServer(t)

	out, err := execute(t, "--server", srv.URL, "generate", "Indian", "Federalism", "--stage", "advanced")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Indian Federalism", got["topic"])
	assert.Equal(t, "stage advanced", got["definition"])
}

func TestGenerate_YAML(t *testing.T) {
	srv := fakeServer(t)

	out, err := execute(t, "--server", srv.URL, "-o", "yaml", "generate", "Monsoon")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Monsoon", got["topic"])
	assert.Equal(t, []any{"a", "b"}, got["keyConcepts"])
}

func TestGenerationsList(t *testing.T) {
	srv := fakeServer(t)

	out, err := execute(t, "--server", srv.URL, "generations", "list", "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, `"user_id": "alice"`)
}

func TestGenerationsDelete_NotFound(t *testing.T) {
	srv := fakeServer(t)

	_, err := execute(t, "--server", srv.URL, "generations", "delete", "missing")
	require.Error(t, err)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Generation not found", apiErr.Detail)
}

func TestHealth(t *testing.T) {
	srv := fakeServer(t)

	out, err := execute(t, "--server", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: healthy")
}

func TestInvalidOutput(t *testing.T) {
	_, err := execute(t, "-o", "xml", "health")
	assert.Error(t, err)
}
