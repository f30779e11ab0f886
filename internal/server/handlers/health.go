package handlers

import (
	"context"

	"github.com/invopop/jsonschema"

	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/server/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Health handles health check requests.
func (h *HealthHandler) Health(ctx context.Context, req *dto.HealthRequest) (*dto.HealthResponse, error) {
	return &dto.HealthResponse{Status: "ok", Version: h.version}, nil
}

// Schema returns the JSON schema of the data model.
func (h *HealthHandler) Schema(ctx context.Context, req *dto.SchemaRequest) (*jsonschema.Schema, error) {
	return model.JSONSchema(), nil
}
