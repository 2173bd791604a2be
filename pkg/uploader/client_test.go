package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"
	"model_upload_backend/pkg/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1 << 20

// fakeBackend plays both the upload server and the object store.
type fakeBackend struct {
	srv *httptest.Server

	uploadStatus  int
	triggerStatus int

	targetCalls  atomic.Int32
	uploadCalls  atomic.Int32
	triggerCalls atomic.Int32

	mu        sync.Mutex
	gotFields map[string]string
	gotSize   int

	// when set, the object store blocks until release is closed
	entered chan struct{}
	release chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	fb := &fakeBackend{uploadStatus: http.StatusNoContent, triggerStatus: http.StatusOK}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v2/upload-url", func(w http.ResponseWriter, r *http.Request) {
		fb.targetCalls.Add(1)
		var req models.UploadURLReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, models.UploadURLResp{
			URL:     fb.srv.URL + "/bucket",
			ModelID: "model-1",
			Fields: map[string]string{
				"key":             "uploads/model-1/" + req.ModelName,
				"policy":          "cG9saWN5",
				"x-amz-signature": "abc123",
			},
		})
	})

	mux.HandleFunc("POST /bucket", func(w http.ResponseWriter, r *http.Request) {
		fb.uploadCalls.Add(1)
		if fb.entered != nil {
			close(fb.entered)
			<-fb.release
		}
		if err := r.ParseMultipartForm(32 * mib); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)

		fb.mu.Lock()
		fb.gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fb.gotFields[k] = v[0]
		}
		fb.gotSize = len(data)
		fb.mu.Unlock()

		if len(data) > policy.MaxUploadSize {
			http.Error(w, "<Error><Code>EntityTooLarge</Code></Error>", http.StatusBadRequest)
			return
		}
		w.WriteHeader(fb.uploadStatus)
	})

	mux.HandleFunc("POST /api/v2/models/{id}/createRun", func(w http.ResponseWriter, r *http.Request) {
		fb.triggerCalls.Add(1)
		if fb.triggerStatus != http.StatusOK {
			http.Error(w, `{"error":"boom"}`, fb.triggerStatus)
			return
		}
		writeJSON(w, http.StatusOK, models.CreateRunResp{RunID: "run-" + r.PathValue("id"), ModelID: r.PathValue("id"), Status: "queued"})
	})

	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (fb *fakeBackend) networkCalls() int32 {
	return fb.targetCalls.Load() + fb.uploadCalls.Load() + fb.triggerCalls.Load()
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) Report(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
}

func newTestClient(t *testing.T, fb *fakeBackend, opts ...Option) *Client {
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	c, err := New(fb.srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresServerURL(t *testing.T) {
	_, err := New("  ")
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSelectFile_RejectsOtherExtensions(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb)

	for _, name := range []string{"model.txt", "model.zip.bak", "model", "fmu", "model.idf"} {
		t.Run(name, func(t *testing.T) {
			err := c.SelectFile(FileFromBytes(name, []byte("x")))
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, StateIdle, c.Status().State)

			_, err = c.Upload(context.Background())
			assert.ErrorIs(t, err, ErrNoFileSelected)
		})
	}
	assert.Zero(t, fb.networkCalls())
}

func TestSelectFile_AcceptsAnyCase(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb)

	for _, name := range []string{"model.zip", "MODEL.ZIP", "Model.Fmu", "a.b.fmu"} {
		require.NoError(t, c.SelectFile(FileFromBytes(name, []byte("x"))), name)
		assert.Equal(t, StateFileSelected, c.Status().State)
	}
}

func TestUpload_NineMiBModelCompletes(t *testing.T) {
	fb := newFakeBackend(t)
	rec := &recorder{}
	c := newTestClient(t, fb, WithReporter(rec))

	require.NoError(t, c.SelectFile(FileFromBytes("model.fmu", make([]byte, 9*mib))))
	runID, err := c.Upload(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, runID)
	st := c.Status()
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, runID, st.RunID)
	assert.Equal(t, "model-1", st.ModelID)
	assert.False(t, st.Uploading)
	assert.Equal(t, float64(1), st.Progress)

	assert.Equal(t, int32(1), fb.triggerCalls.Load())
	assert.Equal(t, 9*mib, fb.gotSize)
	assert.Equal(t, "uploads/model-1/model.fmu", fb.gotFields["key"])
	assert.Equal(t, "abc123", fb.gotFields["x-amz-signature"])

	assert.Equal(t, []State{StateFileSelected, StateUploading, StateUploaded, StateRunTriggered, StateDone}, rec.states)
}

func TestUpload_ElevenMiBModelFailsBeforeNetwork(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb)

	require.NoError(t, c.SelectFile(FileFromBytes("model.fmu", make([]byte, 11*mib))))
	_, err := c.Upload(context.Background())

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, StateFailed, c.Status().State)
	assert.Zero(t, fb.networkCalls())
}

func TestPerformUpload_ObjectStoreRejectsOversize(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb)

	target, err := c.RequestUploadTarget(context.Background(), "model.fmu")
	require.NoError(t, err)

	err = c.PerformUpload(context.Background(), target, FileFromBytes("model.fmu", make([]byte, 11*mib)))
	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, http.StatusBadRequest, nErr.StatusCode)
	assert.Contains(t, nErr.Body, "EntityTooLarge")
	assert.Zero(t, fb.triggerCalls.Load())
}

func TestUpload_ObjectStoreErrorSkipsTrigger(t *testing.T) {
	fb := newFakeBackend(t)
	fb.uploadStatus = http.StatusForbidden
	c := newTestClient(t, fb)

	require.NoError(t, c.SelectFile(FileFromBytes("model.zip", []byte("zip"))))
	_, err := c.Upload(context.Background())

	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, "upload", nErr.Step)
	assert.Equal(t, http.StatusForbidden, nErr.StatusCode)
	assert.Equal(t, StateFailed, c.Status().State)
	assert.Zero(t, fb.triggerCalls.Load())
}

func TestUpload_TriggerFailureIsNotRetried(t *testing.T) {
	fb := newFakeBackend(t)
	fb.triggerStatus = http.StatusInternalServerError
	c := newTestClient(t, fb)

	require.NoError(t, c.SelectFile(FileFromBytes("model.fmu", []byte("fmu"))))
	_, err := c.Upload(context.Background())

	var orphan *OrphanArtifactWarning
	require.ErrorAs(t, err, &orphan)
	assert.Equal(t, "model-1", orphan.ModelID)
	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, http.StatusInternalServerError, nErr.StatusCode)

	st := c.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, err, st.Err)
	assert.Equal(t, int32(1), fb.triggerCalls.Load())

	// a failed session must be restarted from file selection
	_, err = c.Upload(context.Background())
	assert.ErrorIs(t, err, ErrNoFileSelected)
	assert.Equal(t, int32(1), fb.triggerCalls.Load())
}

func TestUpload_RejectsOverlappingCalls(t *testing.T) {
	fb := newFakeBackend(t)
	fb.entered = make(chan struct{})
	fb.release = make(chan struct{})
	c := newTestClient(t, fb)

	require.NoError(t, c.SelectFile(FileFromBytes("model.zip", []byte("zip"))))

	done := make(chan error, 1)
	go func() {
		_, err := c.Upload(context.Background())
		done <- err
	}()

	<-fb.entered
	st := c.Status()
	assert.True(t, st.Uploading)
	assert.Equal(t, float64(ProgressIndeterminate), st.Progress)

	_, err := c.Upload(context.Background())
	assert.ErrorIs(t, err, ErrUploadInProgress)
	assert.ErrorIs(t, c.SelectFile(FileFromBytes("other.zip", []byte("zip"))), ErrUploadInProgress)

	close(fb.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), fb.uploadCalls.Load())
	assert.Equal(t, int32(1), fb.triggerCalls.Load())
}

func TestUpload_TransportFailure(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb)
	fb.srv.Close()

	require.NoError(t, c.SelectFile(FileFromBytes("model.zip", []byte("zip"))))
	_, err := c.Upload(context.Background())

	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, "upload target", nErr.Step)
	assert.True(t, errors.Unwrap(nErr) != nil)
	assert.Equal(t, StateFailed, c.Status().State)
}
