package inbound

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikolajkapica/gister/command"
	"github.com/mikolajkapica/gister/core"
	"github.com/mikolajkapica/gister/identity"
	"github.com/mikolajkapica/gister/query"
)

type RouterDeps struct {
	Resolver *identity.Resolver

	HealthCheck *query.HealthCheckQuery
	ListGists   *query.ListGistsQuery
	GetGist     *query.GetGistQuery

	CreateGist *command.CreateGistCommand
	UpdateGist *command.UpdateGistCommand
	DeleteGist *command.DeleteGistCommand

	Logger         core.Logger
	LoggerProvider core.LoggerProvider

	// Optional; when set a GET /metrics scrape endpoint is exposed.
	MetricsGatherer prometheus.Gatherer
}

type router struct {
	deps   *RouterDeps
	logger core.Logger
}

// NewRouter wires the RPC surface consumed by the UI. Identity resolution
// runs as middleware so every handler sees a resolved (possibly
// unauthenticated) identity.
func NewRouter(deps *RouterDeps) http.Handler {
	_, logger := glog.Resolve("inbound", deps.LoggerProvider, deps.Logger)
	h := &router{deps: deps, logger: glog.Ensure(logger)}

	r := chi.NewRouter()
	r.Use(IdentityMiddleware(deps.Resolver))

	r.Get("/rpc/healthCheck", h.handleHealthCheck)
	r.Get("/rpc/listGists", h.handleListGists)
	r.Get("/rpc/getGist", h.handleGetGist)
	r.Post("/rpc/createGist", h.handleCreateGist)
	r.Post("/rpc/updateGist", h.handleUpdateGist)
	r.Post("/rpc/deleteGist", h.handleDeleteGist)

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func (h *router) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.deps.HealthCheck == nil {
		renderError(w, queryUnavailableError())
		return
	}
	out, err := h.deps.HealthCheck.Query(r.Context(), query.HealthCheckMessage{})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

func (h *router) handleListGists(w http.ResponseWriter, r *http.Request) {
	if h.deps.ListGists == nil {
		renderError(w, queryUnavailableError())
		return
	}
	msg := query.ListGistsMessage{Identity: IdentityFromContext(r.Context())}
	out, err := h.deps.ListGists.Query(r.Context(), msg)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, toSummaryResponses(out))
}

func (h *router) handleGetGist(w http.ResponseWriter, r *http.Request) {
	if h.deps.GetGist == nil {
		renderError(w, queryUnavailableError())
		return
	}
	msg := query.GetGistMessage{
		Identity:   IdentityFromContext(r.Context()),
		ExternalID: strings.TrimSpace(r.URL.Query().Get("id")),
	}
	if err := msg.Validate(); err != nil {
		renderError(w, err)
		return
	}
	out, err := h.deps.GetGist.Query(r.Context(), msg)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, toDetailResponse(out))
}

type createGistRequest struct {
	Description *string                   `json:"description"`
	Files       map[string]fileInputShape `json:"files"`
	Public      *bool                     `json:"public"`
}

type updateGistRequest struct {
	ID          string                    `json:"id"`
	Description *string                   `json:"description"`
	Files       map[string]fileInputShape `json:"files"`
}

type deleteGistRequest struct {
	ID string `json:"id"`
}

type fileInputShape struct {
	Content string `json:"content"`
}

func (h *router) handleCreateGist(w http.ResponseWriter, r *http.Request) {
	if h.deps.CreateGist == nil {
		renderError(w, queryUnavailableError())
		return
	}
	var req createGistRequest
	if err := decodeBody(r, &req); err != nil {
		renderError(w, err)
		return
	}
	msg := command.CreateGistMessage{
		Identity: IdentityFromContext(r.Context()),
		Input: core.CreateGistInput{
			Description: req.Description,
			Files:       toFileInputs(req.Files),
			Public:      req.Public,
		},
	}
	if err := msg.Validate(); err != nil {
		renderError(w, err)
		return
	}

	collector := gocmd.NewResult[core.GistDetail]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)
	if err := h.deps.CreateGist.Execute(ctx, msg); err != nil {
		renderError(w, err)
		return
	}
	out, ok := collector.Load()
	if !ok {
		renderError(w, queryUnavailableError())
		return
	}
	renderJSON(w, http.StatusOK, toDetailResponse(out))
}

func (h *router) handleUpdateGist(w http.ResponseWriter, r *http.Request) {
	if h.deps.UpdateGist == nil {
		renderError(w, queryUnavailableError())
		return
	}
	var req updateGistRequest
	if err := decodeBody(r, &req); err != nil {
		renderError(w, err)
		return
	}
	msg := command.UpdateGistMessage{
		Identity:   IdentityFromContext(r.Context()),
		ExternalID: strings.TrimSpace(req.ID),
		Input: core.UpdateGistInput{
			Description: req.Description,
			Files:       toFileInputs(req.Files),
		},
	}
	if err := msg.Validate(); err != nil {
		renderError(w, err)
		return
	}

	collector := gocmd.NewResult[core.GistDetail]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)
	if err := h.deps.UpdateGist.Execute(ctx, msg); err != nil {
		renderError(w, err)
		return
	}
	out, ok := collector.Load()
	if !ok {
		renderError(w, queryUnavailableError())
		return
	}
	renderJSON(w, http.StatusOK, toDetailResponse(out))
}

func (h *router) handleDeleteGist(w http.ResponseWriter, r *http.Request) {
	if h.deps.DeleteGist == nil {
		renderError(w, queryUnavailableError())
		return
	}
	var req deleteGistRequest
	if err := decodeBody(r, &req); err != nil {
		renderError(w, err)
		return
	}
	msg := command.DeleteGistMessage{
		Identity:   IdentityFromContext(r.Context()),
		ExternalID: strings.TrimSpace(req.ID),
	}
	if err := msg.Validate(); err != nil {
		renderError(w, err)
		return
	}

	collector := gocmd.NewResult[command.DeleteGistResult]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)
	if err := h.deps.DeleteGist.Execute(ctx, msg); err != nil {
		renderError(w, err)
		return
	}
	out, ok := collector.Load()
	if !ok {
		out = command.DeleteGistResult{Success: true}
	}
	renderJSON(w, http.StatusOK, out)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return core.NewValidationError("body", "request body is required")
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return core.NewValidationError("body", "request body is not valid JSON")
	}
	return nil
}

func toFileInputs(in map[string]fileInputShape) map[string]core.FileInput {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]core.FileInput, len(in))
	for name, file := range in {
		out[name] = core.FileInput{Content: file.Content}
	}
	return out
}

func queryUnavailableError() error {
	return goerrors.New("inbound: handler dependency is not configured", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.GisterErrorInternal)
}
