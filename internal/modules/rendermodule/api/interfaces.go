package api

import (
	"context"

	"github.com/manimforge/manimforge/internal/database"
	"github.com/manimforge/manimforge/internal/events"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/repository"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
)

// RenderAPIService is the service surface the handlers depend on.
type RenderAPIService interface {
	Execute(ctx context.Context, req *types.ExecuteRequest) (*types.ExecuteResponse, error)
	Combine(ctx context.Context, req *types.CombineRequest) (*types.CombineResponse, error)
	VideoURL(name string) string
	ListArtifacts(ctx context.Context) ([]types.Artifact, error)
	ListCompilations(ctx context.Context, filter repository.ListFilter) ([]database.CompilationRecord, int64, error)
	GetCompilation(ctx context.Context, projectID string) (*database.CompilationRecord, error)
	CompilationStats(ctx context.Context) (*repository.Stats, error)
}

// EventSource feeds the websocket stream.
type EventSource interface {
	Subscribe(filter events.EventFilter, handler events.EventHandler) *events.Subscription
	Unsubscribe(subscriptionID string) error
	Recent(filter events.EventFilter, limit int) []events.Event
}
