package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"model_upload_backend/models"
	"model_upload_backend/platform/cache"
	redisplatform "model_upload_backend/platform/redis"
	"model_upload_backend/repository"
)

type fakeModelRepo struct {
	mu     sync.Mutex
	models map[string]*models.Model
	gets   int
}

func newFakeModelRepo() *fakeModelRepo {
	return &fakeModelRepo{models: map[string]*models.Model{}}
}

func (r *fakeModelRepo) Create(_ context.Context, m *models.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.models[m.ModelID] = &cp
	return nil
}

func (r *fakeModelRepo) GetByID(_ context.Context, id string) (*models.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	m, ok := r.models[id]
	if !ok {
		return nil, repository.ErrModelNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeModelRepo) setStatus(id, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[id].Status = status
}

func (r *fakeModelRepo) ExpirePending(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[id]
	if !ok || m.Status != models.ModelStatusPending {
		return false, nil
	}
	m.Status = models.ModelStatusExpired
	return true, nil
}

func (r *fakeModelRepo) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]*models.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Model
	for _, m := range r.models {
		if m.Status == models.ModelStatusPending && m.CreatedAt.Before(olderThan) && len(out) < limit {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeModelRepo) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.models[id].Status
}

type fakeRunRepo struct {
	mu     sync.Mutex
	models *fakeModelRepo
	runs   map[string]*models.Run
	// beforeCreate runs ahead of the pending check, standing in for a
	// concurrent writer.
	beforeCreate func()
}

func newFakeRunRepo(m *fakeModelRepo) *fakeRunRepo {
	return &fakeRunRepo{models: m, runs: map[string]*models.Run{}}
}

func (r *fakeRunRepo) CreateForModel(_ context.Context, run *models.Run) error {
	if r.beforeCreate != nil {
		r.beforeCreate()
	}
	r.models.mu.Lock()
	defer r.models.mu.Unlock()
	m, ok := r.models.models[run.ModelID]
	if !ok || m.Status != models.ModelStatusPending {
		return repository.ErrModelNotPending
	}
	m.Status = models.ModelStatusRunCreated
	m.RunID = run.RunID

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.RunID] = &cp
	return nil
}

func (r *fakeRunRepo) GetByID(_ context.Context, id string) (*models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (r *fakeRunRepo) MarkDispatched(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return repository.ErrRunNotFound
	}
	run.Dispatched = true
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]bool
	removed []string
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string]bool{}} }

func (s *fakeStore) GeneratePresignedPostUpload(_ context.Context, filename, modelID string) (*models.UploadURLResp, error) {
	key := "uploads/" + modelID + "/" + strings.ToLower(filename)
	return &models.UploadURLResp{
		URL:      "http://store.local/bucket/",
		Fields:   map[string]string{"key": key, "policy": "cG9saWN5", "x-amz-signature": "abc"},
		ModelID:  modelID,
		FileKey:  key,
		Expires:  time.Now().Add(15 * time.Minute),
		Provider: "native",
	}, nil
}

func (s *fakeStore) FileExists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key], nil
}

func (s *fakeStore) RemoveFile(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.removed = append(s.removed, key)
	return nil
}

func (s *fakeStore) put(key string) {
	s.mu.Lock()
	s.objects[key] = true
	s.mu.Unlock()
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.ModelEvent
}

func (p *fakePublisher) PublishModelEvent(_ context.Context, ev *models.ModelEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return nil
}

func (p *fakePublisher) types() []models.ModelEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.ModelEventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]string
	calls int
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]string{}} }

func (l *fakeLocker) AcquireLock(_ context.Context, name string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if _, ok := l.held[name]; ok {
		return "", redisplatform.ErrLockHeld
	}
	token := name + "-token"
	l.held[name] = token
	return token, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] == token {
		delete(l.held, name)
	}
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []models.RunTask
	// failures is how many upcoming Enqueue calls return errQueueDown.
	failures int
}

var errQueueDown = errors.New("queue unavailable")

func (q *fakeQueue) Enqueue(_ context.Context, t *models.RunTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failures > 0 {
		q.failures--
		return errQueueDown
	}
	q.tasks = append(q.tasks, *t)
	return nil
}

type mapL2 struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *mapL2) GetCache(_ context.Context, key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *mapL2) SetCache(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = string(b)
	s.mu.Unlock()
	return nil
}

func (s *mapL2) DelCache(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

type harness struct {
	models    *fakeModelRepo
	runs      *fakeRunRepo
	store     *fakeStore
	publisher *fakePublisher
	locker    *fakeLocker
	queue     *fakeQueue
	l2        *mapL2

	modelSvc  *ModelService
	runSvc    *RunService
	reaperSvc *ReaperService
}

func newHarness() *harness {
	h := &harness{
		models:    newFakeModelRepo(),
		store:     newFakeStore(),
		publisher: &fakePublisher{},
		locker:    newFakeLocker(),
		queue:     &fakeQueue{},
		l2:        &mapL2{data: map[string]string{}},
	}
	h.runs = newFakeRunRepo(h.models)
	cs := cache.NewCacheService(cache.InitL1Cache(), h.l2)
	h.modelSvc = NewModelService(h.models, h.store, h.publisher, cs)
	h.runSvc = NewRunService(h.models, h.runs, h.store, h.queue, h.locker, h.modelSvc, time.Minute)
	h.reaperSvc = NewReaperService(h.models, h.store, h.modelSvc, 24*time.Hour, time.Hour)
	return h
}

type chanSource struct {
	ch chan *models.ModelEvent
}

func (s *chanSource) SubscribeModelEvents(_ context.Context, _ string) (<-chan *models.ModelEvent, error) {
	return s.ch, nil
}
