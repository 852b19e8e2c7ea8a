package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
)

type fakeClassifier struct {
	result *entity.ClassificationResult
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(_ context.Context, sample *entity.Sample) (*entity.ClassificationResult, error) {
	f.calls++
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeResultStore struct {
	mu      sync.Mutex
	rows    map[string]entity.StoredResult
	upserts int
	err     error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{rows: make(map[string]entity.StoredResult)}
}

func (f *fakeResultStore) UpsertResult(_ context.Context, rec *entity.StoredResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts++
	f.rows[rec.SampleID] = *rec
	return nil
}

func (f *fakeResultStore) QueryResults(_ context.Context, filter *entity.ResultFilter) ([]entity.StoredResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []entity.StoredResult
	for _, rec := range f.rows {
		if filter != nil {
			if filter.SampleID != "" && rec.SampleID != filter.SampleID {
				continue
			}
			if filter.Start != nil && rec.TestedOn.Before(*filter.Start) {
				continue
			}
			if filter.End != nil && rec.TestedOn.After(*filter.End) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// memStore is a minimal cache.Store for wiring the real cache layer.
type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *memStore) SetEx(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *memStore) Ping(context.Context) error { return s.getErr }

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*entity.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*entity.Task)}
}

func (f *fakeTaskRepo) CreateTask(_ context.Context, task *entity.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *task
	f.tasks[task.TaskID] = &copied
	return nil
}

func (f *fakeTaskRepo) GetTask(_ context.Context, taskID string) (*entity.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, taskID)
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskRepo) UpdateTaskStatus(_ context.Context, taskID string, status entity.TaskStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, taskID)
	}
	task.Status = status
	return nil
}

func (f *fakeTaskRepo) MarkSucceeded(_ context.Context, taskID, resultJSON, resultKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, taskID)
	}
	now := time.Now().UTC()
	task.Status = entity.StatusSucceeded
	task.ResultJSON = resultJSON
	task.ResultKey = resultKey
	task.Error = ""
	task.CompletedAt = &now
	return nil
}

func (f *fakeTaskRepo) MarkFailed(_ context.Context, taskID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, taskID)
	}
	now := time.Now().UTC()
	task.Status = entity.StatusFailed
	task.Error = reason
	task.CompletedAt = &now
	return nil
}

type fakeStatusStore struct {
	mu       sync.Mutex
	statuses map[string]string
	err      error
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{statuses: make(map[string]string)}
}

func (f *fakeStatusStore) SetTaskStatus(_ context.Context, taskID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statuses[taskID] = status
	return nil
}

func (f *fakeStatusStore) GetTaskStatus(_ context.Context, taskID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.statuses[taskID], nil
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	messages []entity.TaskMessage
}

func (f *fakePublisher) Publish(_ context.Context, body json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return fmt.Errorf("%w: connection refused", apperrors.ErrBrokerUnavailable)
	}
	var msg entity.TaskMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}
	f.messages = append(f.messages, msg)
	return nil
}

type fakeSigner struct {
	urls map[string]string
}

func (f *fakeSigner) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if url, ok := f.urls[key]; ok {
		return url, nil
	}
	return "https://storage.local/" + key, nil
}

type fakeExportStore struct {
	mu      sync.Mutex
	uploads map[string][]byte
	err     error
}

func newFakeExportStore() *fakeExportStore {
	return &fakeExportStore{uploads: make(map[string][]byte)}
}

func (f *fakeExportStore) UploadCSV(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.uploads[key] = data
	return nil
}
