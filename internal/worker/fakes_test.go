package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"server/internal/domain"
	"server/internal/providers/image"
)

// memRepo is an in-memory domain.JobRepository honoring the same
// compare-and-set semantics as the Postgres implementation.
type memRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: make(map[string]*domain.Job)}
}

func (r *memRepo) put(job *domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
}

func (r *memRepo) get(id string) domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.jobs[id]
}

func (r *memRepo) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	cp.Status = domain.JobStatusQueued
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memRepo) Claim(ctx context.Context, jobID string, now time.Time) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != domain.JobStatusQueued {
		return nil, domain.ErrStateConflict
	}
	job.Status = domain.JobStatusProcessing
	started := now
	job.StartedAt = &started
	job.UpdatedAt = now
	cp := *job
	return &cp, nil
}

func (r *memRepo) SetProviderJobID(ctx context.Context, jobID, providerJobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		job.ProviderJobID = providerJobID
	}
	return nil
}

func (r *memRepo) Complete(ctx context.Context, jobID string, resultURLs []string, thumbnailURL string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return domain.ErrStateConflict
	}
	job.Status = domain.JobStatusCompleted
	job.ResultURLs = resultURLs
	job.ThumbnailURL = thumbnailURL
	completed := now
	job.CompletedAt = &completed
	job.UpdatedAt = now
	return nil
}

func (r *memRepo) Fail(ctx context.Context, jobID, errMsg string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return domain.ErrStateConflict
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errMsg
	completed := now
	job.CompletedAt = &completed
	job.UpdatedAt = now
	return nil
}

func (r *memRepo) Requeue(ctx context.Context, jobID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return domain.ErrStateConflict
	}
	job.Status = domain.JobStatusQueued
	job.RetryCount++
	job.StartedAt = nil
	job.UpdatedAt = now
	return nil
}

func (r *memRepo) ListStale(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []domain.Job
	for _, job := range r.jobs {
		if job.Status == domain.JobStatusProcessing && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			stale = append(stale, *job)
		}
	}
	return stale, nil
}

func (r *memRepo) CountProcessing(ctx context.Context, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, job := range r.jobs {
		if job.OwnerID == ownerID && job.Status == domain.JobStatusProcessing {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) OwnersWithActivity(ctx context.Context, since time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var owners []string
	for _, job := range r.jobs {
		if !job.UpdatedAt.Before(since) && !seen[job.OwnerID] {
			seen[job.OwnerID] = true
			owners = append(owners, job.OwnerID)
		}
	}
	return owners, nil
}

var _ domain.JobRepository = (*memRepo)(nil)

// fakeGenerator returns canned results, errors, or panics, and can run a
// hook mid-call to simulate races with the stale monitor.
type fakeGenerator struct {
	result     *image.GenerateResult
	err        error
	panicValue any
	beforeDone func()
	calls      int
}

func (g *fakeGenerator) Generate(ctx context.Context, req image.GenerateRequest) (*image.GenerateResult, error) {
	g.calls++
	if g.beforeDone != nil {
		g.beforeDone()
	}
	if g.panicValue != nil {
		panic(g.panicValue)
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return "", fmt.Errorf("storage unavailable")
	}
	s.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *memStore) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("no object at %s", ref)
	}
	return data, nil
}
