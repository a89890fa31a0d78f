package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/repo"
)

// fakeStore хранит runs в памяти.
type fakeStore struct {
	mu      sync.Mutex
	runs    map[uuid.UUID]domain.Run
	updates []domain.RunStatus
	failGet error
	lists   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: make(map[uuid.UUID]domain.Run)}
}

func (s *fakeStore) Create(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return repo.ErrAlreadyExists
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	run, ok := s.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &run, nil
}

func (s *fakeStore) Update(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return repo.ErrNotFound
	}
	s.runs[run.ID] = *run
	s.updates = append(s.updates, run.Status)
	return nil
}

func (s *fakeStore) List(_ context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	var out []domain.Run
	for _, run := range s.runs {
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		if filter.Status == "" || run.Status == filter.Status {
			out = append(out, run)
		}
	}
	return out, nil
}

func (s *fakeStore) get(id uuid.UUID) domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// fakePublisher запоминает опубликованные события.
type fakePublisher struct {
	mu        sync.Mutex
	completed []mq.RunCompletedPayload
	err       error
}

func (p *fakePublisher) PublishRunCompleted(_ context.Context, payload mq.RunCompletedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, payload)
	return p.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(store RunStore, pub CompletionPublisher) *Worker {
	return New(Config{
		Runs:      store,
		Publisher: pub,
		Logger:    testLogger(),
	})
}

const dryRunInput = `[{"id":"a","outputAs":"x","body":{"n":1}},{"id":"b","outputAs":"x","body":{"prev":"{{steps.a.n}}"}}]`

func TestProcess_Succeeded(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	w := newTestWorker(store, pub)

	run := domain.NewRun(json.RawMessage(dryRunInput), domain.RunOptions{})
	if err := store.Create(context.Background(), run); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := w.Process(context.Background(), mq.RunPendingPayload{RunID: run.ID})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	got := store.get(run.ID)
	if got.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (%s)", got.Status, got.Error)
	}

	want := `[{"x":{"value":{"n":1},"chain2":{"prev":"1"}}}]`
	if string(got.Output) != want {
		t.Errorf("expected output %s, got %s", want, got.Output)
	}
	if got.StepCount != 2 || got.GroupCount != 1 {
		t.Errorf("expected 2 steps in 1 group, got %d/%d", got.StepCount, got.GroupCount)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("timestamps should be set")
	}

	if len(store.updates) != 2 || store.updates[0] != domain.RunStatusRunning {
		t.Errorf("expected RUNNING then SUCCEEDED, got %v", store.updates)
	}

	if len(pub.completed) != 1 {
		t.Fatalf("expected 1 completion event, got %d", len(pub.completed))
	}
	if pub.completed[0].Status != domain.RunStatusSucceeded || string(pub.completed[0].Output) != want {
		t.Errorf("unexpected completion %+v", pub.completed[0])
	}
}

func TestProcess_InvalidInputFails(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "scalar document", input: `"steps"`, want: "input must be an array"},
		{name: "scalar element", input: `[{"id":"a"}, 5]`, want: "expected object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			pub := &fakePublisher{}
			w := newTestWorker(store, pub)

			run := domain.NewRun(json.RawMessage(tt.input), domain.RunOptions{})
			_ = store.Create(context.Background(), run)

			if err := w.Process(context.Background(), mq.RunPendingPayload{RunID: run.ID}); err != nil {
				t.Fatalf("invalid input should not be an infrastructure error: %v", err)
			}

			got := store.get(run.ID)
			if got.Status != domain.RunStatusFailed {
				t.Fatalf("expected FAILED, got %s", got.Status)
			}
			if !strings.Contains(got.Error, tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, got.Error)
			}
			if len(pub.completed) != 1 || pub.completed[0].Error == "" {
				t.Errorf("completion should carry the error: %+v", pub.completed)
			}
		})
	}
}

func TestProcess_SkipsFinishedRun(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	w := newTestWorker(store, pub)

	run := domain.NewRun(json.RawMessage(dryRunInput), domain.RunOptions{})
	run.MarkRunning()
	run.MarkSucceeded(json.RawMessage(`[]`), 0, 0)
	_ = store.Create(context.Background(), run)

	err := w.Process(context.Background(), mq.RunPendingPayload{RunID: run.ID})
	if !errors.Is(err, ErrRunNotPending) {
		t.Fatalf("expected ErrRunNotPending, got %v", err)
	}
	if !isSkip(err) {
		t.Error("finished run should be skipped")
	}
	if len(pub.completed) != 0 {
		t.Error("skipped run should not publish")
	}
}

func TestProcess_InProgress(t *testing.T) {
	w := newTestWorker(nil, nil)
	id := uuid.New()

	if !w.acquire(id) {
		t.Fatal("first acquire should succeed")
	}
	defer w.release(id)

	err := w.Process(context.Background(), mq.RunPendingPayload{RunID: id, Input: json.RawMessage(`[]`)})
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}
}

func TestProcess_CreatesMissingRun(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store, &fakePublisher{})

	payload := mq.RunPendingPayload{
		RunID:   uuid.New(),
		Input:   json.RawMessage(`{"ping":{"body":"pong"}}`),
		Options: domain.RunOptions{Concurrency: domain.IntPtr(1)},
	}
	if err := w.Process(context.Background(), payload); err != nil {
		t.Fatalf("process: %v", err)
	}

	got := store.get(payload.RunID)
	if got.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", got.Status)
	}
	if string(got.Output) != `[{"step_ping":{"output":"pong"}}]` {
		t.Errorf("unexpected output %s", got.Output)
	}
}

func TestProcess_WithoutStore(t *testing.T) {
	pub := &fakePublisher{}
	w := newTestWorker(nil, pub)

	payload := mq.RunPendingPayload{
		RunID: uuid.New(),
		Input: json.RawMessage(`[{"id":"a","body":[1,2]}]`),
	}
	if err := w.Process(context.Background(), payload); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(pub.completed) != 1 {
		t.Fatalf("expected completion, got %d", len(pub.completed))
	}
	if string(pub.completed[0].Output) != `[{"step_a":{"output":[1,2]}}]` {
		t.Errorf("unexpected output %s", pub.completed[0].Output)
	}
}

func TestProcess_StoreError(t *testing.T) {
	store := newFakeStore()
	store.failGet = errors.New("connection refused")
	w := newTestWorker(store, &fakePublisher{})

	err := w.Process(context.Background(), mq.RunPendingPayload{RunID: uuid.New()})
	if err == nil || isSkip(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestProcess_MissingRunID(t *testing.T) {
	w := newTestWorker(nil, nil)

	err := w.Process(context.Background(), mq.RunPendingPayload{})
	if !errors.Is(err, ErrInvalidPayload) || !errors.Is(err, mq.ErrPermanent) {
		t.Errorf("expected permanent ErrInvalidPayload, got %v", err)
	}
}

func TestProcess_PublishFailureIsNotFatal(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("channel closed")}
	w := newTestWorker(store, pub)

	run := domain.NewRun(json.RawMessage(`[]`), domain.RunOptions{})
	_ = store.Create(context.Background(), run)

	if err := w.Process(context.Background(), mq.RunPendingPayload{RunID: run.ID}); err != nil {
		t.Fatalf("publish failure should be logged only: %v", err)
	}
	if store.get(run.ID).Status != domain.RunStatusSucceeded {
		t.Error("run should be saved before publishing")
	}
}

func TestPoll_ProcessesPendingRuns(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store, &fakePublisher{})

	pending := domain.NewRun(json.RawMessage(`[{"id":"a"}]`), domain.RunOptions{})
	done := domain.NewRun(json.RawMessage(`[]`), domain.RunOptions{})
	done.MarkRunning()
	done.MarkFailed("boom")
	_ = store.Create(context.Background(), pending)
	_ = store.Create(context.Background(), done)

	w.poll(context.Background())

	if store.get(pending.ID).Status != domain.RunStatusSucceeded {
		t.Errorf("pending run should be processed, got %s", store.get(pending.ID).Status)
	}
	if store.get(done.ID).Error != "boom" {
		t.Error("finished run should be left as is")
	}
}

func TestStart_NoSource(t *testing.T) {
	w := newTestWorker(nil, nil)
	if err := w.Start(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Errorf("expected ErrNoSource, got %v", err)
	}
}

func TestProcess_AppliesDefaults(t *testing.T) {
	store := newFakeStore()
	w := New(Config{
		Runs:     store,
		Defaults: domain.RunOptions{Fetch: domain.BoolPtr(false)},
		Logger:   testLogger(),
	})

	run := domain.NewRun(json.RawMessage(`[{"id":"a","body":"x"}]`), domain.RunOptions{})
	_ = store.Create(context.Background(), run)

	if err := w.Process(context.Background(), mq.RunPendingPayload{RunID: run.ID}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if string(store.get(run.ID).Output) != `[{"step_a":{"output":"x"}}]` {
		t.Errorf("unexpected output %s", store.get(run.ID).Output)
	}
}

func TestPoll_DrainsBacklog(t *testing.T) {
	store := newFakeStore()
	w := New(Config{Runs: store, BatchSize: 2, Logger: testLogger()})

	var ids []uuid.UUID
	for range 5 {
		run := domain.NewRun(json.RawMessage(`[{"id":"a","body":1}]`), domain.RunOptions{})
		_ = store.Create(context.Background(), run)
		ids = append(ids, run.ID)
	}

	w.poll(context.Background())

	for _, id := range ids {
		if got := store.get(id).Status; got != domain.RunStatusSucceeded {
			t.Errorf("run %s: expected SUCCEEDED, got %s", id, got)
		}
	}
	// 2 + 2 + 1
	if store.lists != 3 {
		t.Errorf("expected 3 batches, got %d", store.lists)
	}
}

func TestPoll_StopsWithoutProgress(t *testing.T) {
	store := newFakeStore()
	w := New(Config{Runs: store, BatchSize: 1, Logger: testLogger()})

	run := domain.NewRun(json.RawMessage(`[]`), domain.RunOptions{})
	_ = store.Create(context.Background(), run)

	// Run уже выполняется: poll не должен крутиться на нём
	w.acquire(run.ID)
	defer w.release(run.ID)

	w.poll(context.Background())

	if store.lists != 1 {
		t.Errorf("expected a single batch, got %d", store.lists)
	}
	if store.get(run.ID).Status != domain.RunStatusPending {
		t.Error("run in progress should stay PENDING")
	}
}

func TestStop_Idempotent(t *testing.T) {
	w := newTestWorker(newFakeStore(), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	w.Stop()
	w.Stop()

	if !w.IsStopped() {
		t.Error("worker should be stopped")
	}
}

func TestStop_FinishesRunInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-release:
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"ok":true}`)
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	store := newFakeStore()
	pub := &fakePublisher{}
	w := New(Config{Runs: store, Publisher: pub, Logger: testLogger()})

	input := `[{"id":"slow","endpoint":"` + server.URL + `","retries":0}]`
	run := domain.NewRun(json.RawMessage(input), domain.RunOptions{Fetch: domain.BoolPtr(true)})
	_ = store.Create(context.Background(), run)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	// Stop уже отменил контекст worker'а, но ждёт run
	time.Sleep(50 * time.Millisecond)
	select {
	case <-stopped:
		t.Fatal("Stop returned before the run finished")
	default:
	}
	close(release)
	<-stopped

	got := store.get(run.ID)
	if got.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (%s)", got.Status, got.Error)
	}
	if want := `[{"step_slow":{"output":{"ok":true}}}]`; string(got.Output) != want {
		t.Errorf("expected output %s, got %s", want, got.Output)
	}
	if len(pub.completed) != 1 {
		t.Errorf("run.completed should be published, got %d events", len(pub.completed))
	}
}
