// Package uploader sends a model artifact straight to the object store with
// server issued POST credentials and then asks the server to create a run.
//
// The client never signs anything itself; the server is the only holder of
// the signing secret.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"
)

const (
	UploadURLPath = "/api/v2/upload-url"
	maxErrorBody  = 4 << 10
)

// UploadTarget is a one-shot upload grant issued by the server.
type UploadTarget struct {
	URL     string
	Fields  map[string]string
	ModelID string
}

// Session is one pass through select -> upload -> trigger.
type Session struct {
	File   *ModelFile
	Target *UploadTarget
	RunID  string

	state State
	err   error
}

type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	reporter Reporter
	tags     []string

	mu       sync.Mutex
	inFlight bool
	session  *Session
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.http = c } }

func WithLogger(l *slog.Logger) Option { return func(cl *Client) { cl.logger = l } }

func WithReporter(r Reporter) Option { return func(cl *Client) { cl.reporter = r } }

func WithTags(tags ...string) Option { return func(cl *Client) { cl.tags = tags } }

func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, &ConfigurationError{Reason: "server URL is required"}
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid server URL %q: %v", baseURL, err)}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  logging.Logger,
		session: &Session{state: StateIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reporter == nil {
		c.reporter = LogReporter{Logger: c.logger}
	}
	return c, nil
}

// Status is a snapshot of the current session.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return newStatus(c.session)
}

// SelectFile starts a new session for f. Names other than *.zip / *.fmu
// leave the client idle; this is a precondition, nothing is sent.
func (c *Client) SelectFile(f *ModelFile) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrUploadInProgress
	}
	if err := validateName(f); err != nil {
		c.session = &Session{state: StateIdle}
		c.mu.Unlock()
		c.logger.Warn("model file rejected", "error", err)
		return err
	}
	c.session = &Session{File: f, state: StateFileSelected}
	st := newStatus(c.session)
	c.mu.Unlock()

	c.reporter.Report(st)
	return nil
}

// Upload runs request-target, upload and trigger as one task. Overlapping
// calls get ErrUploadInProgress. Every failure ends the session in
// StateFailed; starting over requires SelectFile.
func (c *Client) Upload(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrUploadInProgress
	}
	s := c.session
	if s.state != StateFileSelected {
		c.mu.Unlock()
		return "", ErrNoFileSelected
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	runID, err := c.run(ctx, s)
	if err != nil {
		c.fail(s, err)
		return "", err
	}
	return runID, nil
}

func (c *Client) run(ctx context.Context, s *Session) (string, error) {
	c.transition(s, StateUploading)
	if err := validateSize(s.File); err != nil {
		return "", err
	}

	target, err := c.RequestUploadTarget(ctx, s.File.Name)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	s.Target = target
	c.mu.Unlock()

	if err := c.PerformUpload(ctx, target, s.File); err != nil {
		return "", err
	}
	c.transition(s, StateUploaded)

	c.transition(s, StateRunTriggered)
	runID, err := c.TriggerRun(ctx, target.ModelID)
	if err != nil {
		return "", &OrphanArtifactWarning{ModelID: target.ModelID, Err: err}
	}

	c.mu.Lock()
	s.RunID = runID
	c.mu.Unlock()
	c.transition(s, StateDone)
	return runID, nil
}

func (c *Client) transition(s *Session, to State) {
	c.mu.Lock()
	s.state = to
	st := newStatus(s)
	c.mu.Unlock()
	c.reporter.Report(st)
}

func (c *Client) fail(s *Session, err error) {
	c.mu.Lock()
	s.state = StateFailed
	if s.err == nil {
		s.err = err
	}
	st := newStatus(s)
	c.mu.Unlock()
	c.reporter.Report(st)
}

// RequestUploadTarget asks the server for a fresh upload grant for modelName.
func (c *Client) RequestUploadTarget(ctx context.Context, modelName string) (*UploadTarget, error) {
	body, err := json.Marshal(models.UploadURLReq{ModelName: modelName, Tags: c.tags})
	if err != nil {
		return nil, fmt.Errorf("encode upload target request: %w", err)
	}
	var resp models.UploadURLResp
	if err := c.postJSON(ctx, "upload target", c.baseURL+UploadURLPath, bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	if resp.URL == "" || resp.ModelID == "" {
		return nil, &NetworkError{Step: "upload target", Err: errors.New("response is missing url or modelID")}
	}
	return &UploadTarget{URL: resp.URL, Fields: resp.Fields, ModelID: resp.ModelID}, nil
}

// PerformUpload posts the form fields and the file part to the object store
// in a single request. It is never retried.
func (c *Client) PerformUpload(ctx context.Context, target *UploadTarget, f *ModelFile) error {
	content, err := f.open()
	if err != nil {
		return fmt.Errorf("open model file: %w", err)
	}
	defer content.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	keys := make([]string, 0, len(target.Fields))
	for k := range target.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, target.Fields[k]); err != nil {
			return fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	// the object store ignores any field after the file part
	part, err := w.CreateFormFile("file", f.Name)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read model file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &buf)
	if err != nil {
		return &NetworkError{Step: "upload", Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.logger.Debug("uploading model", "modelID", target.ModelID, "bytes", f.Size)
	res, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Step: "upload", Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &NetworkError{Step: "upload", StatusCode: res.StatusCode, Body: readLimited(res.Body)}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

// TriggerRun asks the server to create a run from an uploaded model. Call it
// once per successful upload.
func (c *Client) TriggerRun(ctx context.Context, modelID string) (string, error) {
	endpoint := c.baseURL + "/api/v2/models/" + url.PathEscape(modelID) + "/createRun"
	var resp models.CreateRunResp
	if err := c.postJSON(ctx, "create run", endpoint, nil, &resp); err != nil {
		return "", err
	}
	if resp.RunID == "" {
		return "", &NetworkError{Step: "create run", Err: errors.New("response is missing runId")}
	}
	return resp.RunID, nil
}

func (c *Client) postJSON(ctx context.Context, step, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return &NetworkError{Step: step, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Step: step, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &NetworkError{Step: step, StatusCode: res.StatusCode, Body: readLimited(res.Body)}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &NetworkError{Step: step, StatusCode: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func readLimited(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
