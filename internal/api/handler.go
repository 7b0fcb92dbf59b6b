package api

import (
	"context"

	"wind-speed-service/internal/model"
)

// ServiceName is reported by the health check.
const ServiceName = "wind-speed-service"

// Lookuper runs a single wind-speed lookup. scraper.Service implements it.
type Lookuper interface {
	Lookup(ctx context.Context, address string) model.Result
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	lookups Lookuper
}

// NewHandler creates a new API handler.
func NewHandler(l Lookuper) *Handler {
	return &Handler{
		lookups: l,
	}
}
