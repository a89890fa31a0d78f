package api

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

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/repo"
)

type memStore struct {
	mu   sync.Mutex
	runs []domain.Run
}

func (s *memStore) Create(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == id {
			run := s.runs[i]
			return &run, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) List(_ context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Run
	for _, run := range s.runs {
		if filter.Status == "" || run.Status == filter.Status {
			out = append(out, run)
		}
	}
	return out, nil
}

type memPublisher struct {
	pending []mq.RunPendingPayload
	err     error
}

func (p *memPublisher) PublishRunPending(_ context.Context, payload mq.RunPendingPayload) error {
	p.pending = append(p.pending, payload)
	return p.err
}

// envelope — ответ API с данными или ошибкой.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorDetail    `json:"error"`
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(cfg)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, env
}

func TestCreateRun_Sync(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/1":
			w.Write([]byte(`{"name":"Ann","id":1}`))
		case "/posts":
			w.Write([]byte(`[{"title":"hello"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer upstream.Close()

	store := &memStore{}
	srv := newTestServer(t, Config{Runs: store})

	body := `{
		"steps": [
			{"id": "user", "endpoint": "` + upstream.URL + `", "url_ext": "/users/1", "outputAs": "profile"},
			{"id": "posts", "endpoint": "` + upstream.URL + `", "url_ext": "/posts?author={{steps.user.name}}", "collect": "first", "outputAs": "profile"}
		],
		"options": {"fetch": true, "retries": 0}
	}`

	status, env := do(t, http.MethodPost, srv.URL+"/api/v1/runs", body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", status, env.Error)
	}

	var run RunResponse
	if err := json.Unmarshal(env.Data, &run); err != nil {
		t.Fatalf("unmarshal run: %v", err)
	}

	if run.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", run.Status)
	}
	wantOutput := `[{"profile":{"value":{"name":"Ann","id":1},"chain2":{"title":"hello"}}}]`
	if string(run.Output) != wantOutput {
		t.Errorf("expected output %s, got %s", wantOutput, run.Output)
	}
	wantContext := `{"steps":{"user":{"name":"Ann","id":1},"posts":{"title":"hello"}}}`
	if string(run.Context) != wantContext {
		t.Errorf("expected context %s, got %s", wantContext, run.Context)
	}
	if len(store.runs) != 1 || store.runs[0].ID != run.ID {
		t.Error("run should be stored in history")
	}
}

func TestCreateRun_SyncWithoutHistory(t *testing.T) {
	srv := newTestServer(t, Config{})

	status, env := do(t, http.MethodPost, srv.URL+"/api/v1/runs", `{"steps": {"a": {"body": {"x": 1}}}}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	var run RunResponse
	_ = json.Unmarshal(env.Data, &run)
	if string(run.Output) != `[{"step_a":{"output":{"x":1}}}]` {
		t.Errorf("unexpected dry-run output %s", run.Output)
	}
}

func TestCreateRun_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "broken body", body: `{`},
		{name: "missing steps", body: `{}`},
		{name: "scalar steps", body: `{"steps": 42}`},
		{name: "scalar element", body: `{"steps": [{"id": "a"}, "b"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Config{})

			status, env := do(t, http.MethodPost, srv.URL+"/api/v1/runs", tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", status)
			}
			if env.Error == nil || env.Error.Code != ErrCodeBadRequest {
				t.Fatalf("unexpected error %+v", env.Error)
			}
			if env.Error.RequestID == "" {
				t.Error("error should carry request_id")
			}
		})
	}
}

func TestCreateRun_Async(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	srv := newTestServer(t, Config{Runs: store, Publisher: pub})

	steps := `{"b":{"url_ext":"/b"},"a":{"url_ext":"/a"}}`
	status, env := do(t, http.MethodPost, srv.URL+"/api/v1/runs", `{"steps": `+steps+`, "async": true, "options": {"concurrency": 2}}`)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", status)
	}

	var run RunResponse
	_ = json.Unmarshal(env.Data, &run)
	if run.Status != domain.RunStatusPending {
		t.Errorf("expected PENDING, got %s", run.Status)
	}

	if len(pub.pending) != 1 {
		t.Fatalf("expected 1 published run, got %d", len(pub.pending))
	}
	if pub.pending[0].RunID != run.ID {
		t.Error("published run id mismatch")
	}
	if string(pub.pending[0].Input) != steps {
		t.Errorf("input should be published as sent: %s", pub.pending[0].Input)
	}
	if len(store.runs) != 1 || store.runs[0].Status != domain.RunStatusPending {
		t.Error("pending run should be stored")
	}
}

func TestCreateRun_AsyncUnavailable(t *testing.T) {
	t.Run("no publisher", func(t *testing.T) {
		srv := newTestServer(t, Config{})
		status, env := do(t, http.MethodPost, srv.URL+"/api/v1/runs", `{"steps": [], "async": true}`)
		if status != http.StatusServiceUnavailable || env.Error.Code != ErrCodeUnavailable {
			t.Errorf("expected 503 UNAVAILABLE, got %d %+v", status, env.Error)
		}
	})

	t.Run("publish fails without history", func(t *testing.T) {
		srv := newTestServer(t, Config{Publisher: &memPublisher{err: errors.New("closed")}})
		status, _ := do(t, http.MethodPost, srv.URL+"/api/v1/runs", `{"steps": [], "async": true}`)
		if status != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", status)
		}
	})

	t.Run("publish fails with history", func(t *testing.T) {
		srv := newTestServer(t, Config{Runs: &memStore{}, Publisher: &memPublisher{err: errors.New("closed")}})
		status, _ := do(t, http.MethodPost, srv.URL+"/api/v1/runs", `{"steps": [], "async": true}`)
		if status != http.StatusAccepted {
			t.Errorf("expected 202, got %d", status)
		}
	})
}

func TestReadRuns_WithoutHistory(t *testing.T) {
	srv := newTestServer(t, Config{})

	for _, path := range []string{"/api/v1/runs", "/api/v1/runs/" + uuid.NewString()} {
		status, env := do(t, http.MethodGet, srv.URL+path, "")
		if status != http.StatusServiceUnavailable || env.Error.Code != ErrCodeUnavailable {
			t.Errorf("%s: expected 503 UNAVAILABLE, got %d", path, status)
		}
	}
}

func TestGetRun(t *testing.T) {
	store := &memStore{}
	run := domain.NewRun(json.RawMessage(`[]`), domain.RunOptions{})
	run.MarkRunning()
	run.MarkSucceeded(json.RawMessage(`[]`), 0, 0)
	_ = store.Create(context.Background(), run)

	srv := newTestServer(t, Config{Runs: store})

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{name: "found", id: run.ID.String(), status: http.StatusOK},
		{name: "not found", id: uuid.NewString(), status: http.StatusNotFound},
		{name: "invalid id", id: "nope", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, http.MethodGet, srv.URL+"/api/v1/runs/"+tt.id, "")
			if status != tt.status {
				t.Errorf("expected %d, got %d", tt.status, status)
			}
		})
	}
}

func TestListRuns(t *testing.T) {
	store := &memStore{}
	done := domain.NewRun(json.RawMessage(`[]`), domain.RunOptions{})
	done.MarkRunning()
	done.MarkFailed("bad")
	_ = store.Create(context.Background(), done)
	_ = store.Create(context.Background(), domain.NewRun(json.RawMessage(`[]`), domain.RunOptions{}))

	srv := newTestServer(t, Config{Runs: store})

	tests := []struct {
		name   string
		query  string
		status int
		count  int
	}{
		{name: "all", query: "", status: http.StatusOK, count: 2},
		{name: "by status", query: "?status=FAILED", status: http.StatusOK, count: 1},
		{name: "invalid status", query: "?status=DONE", status: http.StatusBadRequest},
		{name: "invalid limit", query: "?limit=x", status: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-1", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, http.MethodGet, srv.URL+"/api/v1/runs"+tt.query, "")
			if status != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, status)
			}
			if status != http.StatusOK {
				return
			}
			var runs []RunResponse
			if err := json.Unmarshal(env.Data, &runs); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(runs) != tt.count {
				t.Errorf("expected %d runs, got %d", tt.count, len(runs))
			}
		})
	}
}

func TestIntParam(t *testing.T) {
	if n, err := intParam("", 50); err != nil || n != 50 {
		t.Errorf("expected default, got %d %v", n, err)
	}
	if n, err := intParam("7", 50); err != nil || n != 7 {
		t.Errorf("expected 7, got %d %v", n, err)
	}
	if _, err := intParam("-1", 0); !errors.Is(err, errNegative) {
		t.Errorf("expected errNegative, got %v", err)
	}
}
