package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

// StatusProvider exposes read-only poll loop state.
type StatusProvider interface {
	Status() domain.Status
	Queries() []domain.Query
}

// StatusHandler serves loop status and the configured queries.
type StatusHandler struct {
	loop StatusProvider
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(loop StatusProvider) *StatusHandler {
	return &StatusHandler{loop: loop}
}

// StatusOutput is the response for GET /api/v1/status.
type StatusOutput struct {
	Body domain.Status
}

// QueryView is one configured query with its canonical key.
type QueryView struct {
	Key   string       `json:"key"   doc:"Canonical query identity"`
	Query domain.Query `json:"query"`
}

// QueriesOutput is the response for GET /api/v1/queries.
type QueriesOutput struct {
	Body []QueryView
}

// QueryInput selects a query by key.
type QueryInput struct {
	Key string `path:"key" doc:"Canonical query key, as listed by /api/v1/queries"`
}

// QueryStatusOutput is the response for GET /api/v1/queries/{key}.
type QueryStatusOutput struct {
	Body domain.QueryStatus
}

// GetStatus returns the failure score and per-query seen counts.
func (h *StatusHandler) GetStatus(_ context.Context, _ *struct{}) (*StatusOutput, error) {
	return &StatusOutput{Body: h.loop.Status()}, nil
}

// ListQueries returns the normalized queries the loop polls.
func (h *StatusHandler) ListQueries(_ context.Context, _ *struct{}) (*QueriesOutput, error) {
	queries := h.loop.Queries()
	out := make([]QueryView, len(queries))
	for i := range queries {
		out[i] = QueryView{Key: queries[i].Key(), Query: queries[i]}
	}
	return &QueriesOutput{Body: out}, nil
}

// GetQuery returns the status of a single query.
func (h *StatusHandler) GetQuery(_ context.Context, in *QueryInput) (*QueryStatusOutput, error) {
	for _, qs := range h.loop.Status().Queries {
		if qs.Key == in.Key {
			return &QueryStatusOutput{Body: qs}, nil
		}
	}
	return nil, huma.Error404NotFound("query not found: " + in.Key)
}

// RegisterStatusRoutes registers the status routes on the Huma API.
func RegisterStatusRoutes(api huma.API, h *StatusHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Get poll loop status",
		Description: "Returns the failure score, iteration count, last error and per-query seen counts.",
		Tags:        []string{"status"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "list-queries",
		Method:      http.MethodGet,
		Path:        "/api/v1/queries",
		Summary:     "List queries",
		Description: "Returns the configured queries with their canonical keys.",
		Tags:        []string{"queries"},
	}, h.ListQueries)

	huma.Register(api, huma.Operation{
		OperationID: "get-query",
		Method:      http.MethodGet,
		Path:        "/api/v1/queries/{key}",
		Summary:     "Get query status",
		Description: "Returns the seen count of one query.",
		Tags:        []string{"queries"},
	}, h.GetQuery)
}
