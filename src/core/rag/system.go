package rag

import (
	"context"

	"paperchat/src/log"
)

const (
	StatusUp   = "up"
	StatusDown = "down"

	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// ComponentStatus reports the state of a single collaborator probe.
type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthStatus aggregates the component probes. Status is StatusHealthy only
// when every component is up.
type HealthStatus struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Store      *StoreInfo                 `json:"store,omitempty"`
	Models     []ModelInfo                `json:"models,omitempty"`
}

const (
	ComponentStore          = "document_store"
	ComponentModelRuntime   = "model_runtime"
	ComponentEmbeddingModel = "embedding_model"
	ComponentArchive        = "archive"
)

// SystemService probes the collaborators the tool depends on.
type SystemService struct {
	store    DocumentStore
	runtime  ModelRuntime
	embedder EmbeddingProvider
	archive  Archive
}

func NewSystemService(store DocumentStore, runtime ModelRuntime, embedder EmbeddingProvider, archive Archive) *SystemService {
	return &SystemService{
		store:    store,
		runtime:  runtime,
		embedder: embedder,
		archive:  archive,
	}
}

// CheckHealth probes every component and never fails: a probe error is
// reported as a down component instead.
func (s *SystemService) CheckHealth(ctx context.Context) *HealthStatus {
	health := &HealthStatus{
		Status:     StatusHealthy,
		Components: make(map[string]ComponentStatus),
	}

	info, err := s.store.Health(ctx)
	if err != nil {
		log.Error(err, "document store health check failed")
		health.Components[ComponentStore] = ComponentStatus{Status: StatusDown, Message: err.Error()}
		health.Status = StatusUnhealthy
	} else {
		health.Components[ComponentStore] = ComponentStatus{Status: StatusUp}
		health.Store = &info
	}

	models, err := s.runtime.Models(ctx)
	if err != nil {
		log.Error(err, "model runtime health check failed")
		health.Components[ComponentModelRuntime] = ComponentStatus{Status: StatusDown, Message: err.Error()}
		health.Status = StatusUnhealthy
	} else {
		health.Components[ComponentModelRuntime] = ComponentStatus{Status: StatusUp}
		health.Models = models
	}

	if err := s.embedder.Load(ctx); err != nil {
		log.Error(err, "embedding model health check failed")
		health.Components[ComponentEmbeddingModel] = ComponentStatus{Status: StatusDown, Message: err.Error()}
		health.Status = StatusUnhealthy
	} else {
		health.Components[ComponentEmbeddingModel] = ComponentStatus{Status: StatusUp}
	}

	if err := s.archive.Health(ctx); err != nil {
		log.Error(err, "archive health check failed")
		health.Components[ComponentArchive] = ComponentStatus{Status: StatusDown, Message: err.Error()}
		health.Status = StatusUnhealthy
	} else {
		health.Components[ComponentArchive] = ComponentStatus{Status: StatusUp}
	}

	return health
}
