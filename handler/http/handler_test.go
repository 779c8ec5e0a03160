package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	handler "paperchat/handler/http"
	"paperchat/src/core/rag"
	"paperchat/src/infrastructure/job"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubStore struct {
	healthErr error
}

func (s *stubStore) EnsureIndex(ctx context.Context, name string, dims int) error { return nil }
func (s *stubStore) BulkIndex(ctx context.Context, name string, chunks []rag.Chunk) (rag.BulkResult, error) {
	return rag.BulkResult{}, nil
}
func (s *stubStore) HybridSearch(ctx context.Context, name, query string, vector []float32, topK int) ([]rag.SearchResult, error) {
	return nil, nil
}
func (s *stubStore) DeleteByDocumentName(ctx context.Context, name, documentName string) (int, error) {
	return 0, nil
}
func (s *stubStore) DeleteIndex(ctx context.Context, name string) error       { return nil }
func (s *stubStore) ListIndices(ctx context.Context) ([]rag.IndexInfo, error) { return nil, nil }
func (s *stubStore) Health(ctx context.Context) (rag.StoreInfo, error) {
	if s.healthErr != nil {
		return rag.StoreInfo{}, s.healthErr
	}
	return rag.StoreInfo{Engine: "elasticsearch", Version: "8.17.0"}, nil
}

type stubRuntime struct{}

func (s *stubRuntime) Models(ctx context.Context) ([]rag.ModelInfo, error) {
	return []rag.ModelInfo{{Name: "llama3.2", Size: 2048}}, nil
}

type stubEmbedder struct{}

func (s *stubEmbedder) Load(ctx context.Context) error                           { return nil }
func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) { return nil, nil }
func (s *stubEmbedder) Dimensions() int                                          { return 768 }

type stubArchive struct{}

func (s *stubArchive) Store(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	return "", nil
}
func (s *stubArchive) List(ctx context.Context) ([]rag.ArchivedDocument, error) { return nil, nil }
func (s *stubArchive) Remove(ctx context.Context, filename string) error        { return nil }
func (s *stubArchive) Health(ctx context.Context) error                         { return nil }

type stubJobs struct {
	jobs map[int64]*job.Job
}

func (s *stubJobs) Create(ctx context.Context, taskType string, payload json.RawMessage) (*job.Job, error) {
	return nil, nil
}
func (s *stubJobs) Get(ctx context.Context, id int64) (*job.Job, error) {
	return s.jobs[id], nil
}
func (s *stubJobs) UpdateStatus(ctx context.Context, id int64, status job.Status, errMsg *string) error {
	return nil
}

func newTestRouter(store *stubStore, jobs *stubJobs) *gin.Engine {
	system := rag.NewSystemService(store, &stubRuntime{}, &stubEmbedder{}, &stubArchive{})
	h := handler.NewHandler(system, jobs)
	router := gin.New()
	h.RegisterRoutes(router)
	return router
}

func TestCheckHealthHealthy(t *testing.T) {
	router := newTestRouter(&stubStore{}, &stubJobs{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got struct {
		Status     string `json:"status"`
		Components map[string]struct {
			Status string `json:"status"`
		} `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if got.Status != rag.StatusHealthy {
		t.Errorf("status = %q, want healthy", got.Status)
	}
	if len(got.Components) != 4 {
		t.Errorf("len(components) = %d, want 4", len(got.Components))
	}
}

func TestCheckHealthDegraded(t *testing.T) {
	router := newTestRouter(&stubStore{healthErr: errors.New("connection refused")}, &stubJobs{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var got struct {
		Status     string `json:"status"`
		Components map[string]struct {
			Status string `json:"status"`
		} `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if got.Status != rag.StatusUnhealthy {
		t.Errorf("status = %q, want unhealthy", got.Status)
	}
	if got.Components[rag.ComponentStore].Status != rag.StatusDown {
		t.Errorf("document store status = %q, want down", got.Components[rag.ComponentStore].Status)
	}
}

func TestGetJob(t *testing.T) {
	jobs := &stubJobs{jobs: map[int64]*job.Job{
		7: {ID: 7, TaskType: job.TaskTypeIngest, Status: job.StatusCompleted},
	}}
	router := newTestRouter(&stubStore{}, jobs)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/7", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if got.ID != 7 || got.Status != "completed" {
		t.Errorf("job = %+v, want id 7 completed", got)
	}
}

func TestGetJobNotFound(t *testing.T) {
	router := newTestRouter(&stubStore{}, &stubJobs{jobs: map[int64]*job.Job{}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/42", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var got struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if got.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", got.Code)
	}
}

func TestGetJobBadID(t *testing.T) {
	router := newTestRouter(&stubStore{}, &stubJobs{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/abc", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
