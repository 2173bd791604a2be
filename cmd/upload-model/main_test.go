package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"model_upload_backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	srv          *httptest.Server
	triggerFails bool
	gotTags      []string
	triggers     atomic.Int32
}

func newBackend(t *testing.T) *backend {
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/upload-url", func(w http.ResponseWriter, r *http.Request) {
		var req models.UploadURLReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.gotTags = req.Tags
		_ = json.NewEncoder(w).Encode(models.UploadURLResp{
			URL:     b.srv.URL + "/bucket",
			ModelID: "m-42",
			Fields:  map[string]string{"key": "uploads/m-42/" + req.ModelName},
		})
	})
	mux.HandleFunc("POST /bucket", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v2/models/{id}/createRun", func(w http.ResponseWriter, r *http.Request) {
		b.triggers.Add(1)
		if b.triggerFails {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(models.CreateRunResp{RunID: "01JRUN", ModelID: r.PathValue("id")})
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func writeModel(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04 fake model"), 0o600))
	return path
}

func noEnv(string) string { return "" }

func TestUploadModelPrintsRunID(t *testing.T) {
	b := newBackend(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--server", b.srv.URL, "--tag", "office", writeModel(t, "office.fmu")}, noEnv, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "modelID: m-42\n")
	assert.Contains(t, stdout.String(), "runId: 01JRUN\n")
	assert.Equal(t, []string{"office"}, b.gotTags)
}

func TestUploadModelProgress(t *testing.T) {
	b := newBackend(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--server", b.srv.URL, "--progress", writeModel(t, "office.fmu")}, noEnv, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	out := stderr.String()
	assert.Contains(t, out, "[file-selected]\n")
	assert.Contains(t, out, "[uploading]\n")
	assert.Contains(t, out, "[uploaded] model m-42\n")
	assert.Contains(t, out, "[run-triggered] model m-42\n")
	assert.Contains(t, out, "[done] model m-42\n")
	assert.Less(t, strings.Index(out, "[uploading]"), strings.Index(out, "[done]"))
}

func TestUploadModelUsesProfile(t *testing.T) {
	b := newBackend(t)
	prof := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(prof, []byte("server: "+b.srv.URL+"\ntags: [hvac, retrofit]\ntimeout: 30s\n"), 0o600))

	var stdout bytes.Buffer
	code := run(context.Background(), []string{"--profile", prof, writeModel(t, "m.zip")}, noEnv, &stdout, &bytes.Buffer{})
	require.Equal(t, exitOK, code)
	assert.Equal(t, []string{"hvac", "retrofit"}, b.gotTags)
}

func TestUploadModelServerFromEnv(t *testing.T) {
	b := newBackend(t)
	env := func(k string) string {
		if k == "MODEL_SERVER" {
			return b.srv.URL
		}
		return ""
	}
	code := run(context.Background(), []string{writeModel(t, "m.zip")}, env, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, exitOK, code)
}

func TestUploadModelFailures(t *testing.T) {
	b := newBackend(t)

	var stderr bytes.Buffer
	code := run(context.Background(), []string{"--server", b.srv.URL, writeModel(t, "notes.txt")}, noEnv, &bytes.Buffer{}, &stderr)
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr.String(), ".zip and .fmu")

	code = run(context.Background(), []string{writeModel(t, "m.zip")}, noEnv, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, exitConfig, code, "no server configured")

	code = run(context.Background(), []string{"--server", b.srv.URL}, noEnv, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, exitConfig, code, "no file argument")

	b.triggerFails = true
	stderr.Reset()
	code = run(context.Background(), []string{"--server", b.srv.URL, writeModel(t, "m.fmu")}, noEnv, &bytes.Buffer{}, &stderr)
	assert.Equal(t, exitFailed, code)
	assert.True(t, strings.Contains(stderr.String(), "model m-42 was uploaded but no run was created"), stderr.String())
	assert.Equal(t, int32(1), b.triggers.Load())
}
