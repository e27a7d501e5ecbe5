// Package api provides the HTTP surface for the honeymesh daemon.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/honeymesh/internal/core/domain"
	coretemplate "github.com/artpar/honeymesh/internal/core/template"
	"github.com/artpar/honeymesh/internal/core/validation"
	"github.com/artpar/honeymesh/internal/shell/api/openapi"
	"github.com/artpar/honeymesh/internal/shell/docker"
	"github.com/artpar/honeymesh/internal/shell/orchestrator"
	"github.com/artpar/honeymesh/internal/shell/store"
)

// maxTemplateBody caps an uploaded template document at 1 MiB.
const maxTemplateBody = 1 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the honeymesh API.
type Handler struct {
	manager *orchestrator.Manager
	store   store.Store
	docker  docker.Client
	logger  *slog.Logger
	dataDir string
	spec    http.HandlerFunc
}

// NewHandler creates the API handler. dataDir is where deployment
// directory trees are created.
func NewHandler(m *orchestrator.Manager, l *slog.Logger, dataDir string) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		manager: m,
		store:   m.Store(),
		docker:  m.Docker(),
		logger:  l,
		dataDir: dataDir,
		spec:    buildSpec().Handler(),
	}
}

// buildSpec registers the API surface with the OpenAPI generator.
func buildSpec() *openapi.Generator {
	g := openapi.NewGenerator()
	g.Register(openapi.Resource{
		Name:           "deployments",
		IDParam:        "name",
		Model:          DeploymentResponse{},
		CreateModel:    CreateDeploymentRequest{},
		SupportsList:   true,
		SupportsGet:    true,
		SupportsCreate: true,
		SupportsDelete: true,
		Actions:        []string{"start", "stop", "restart", "backup"},
		Views:          []string{"status", "events"},
	})
	g.Register(openapi.Resource{
		Name:           "templates",
		IDParam:        "slug",
		Model:          TemplateResponse{},
		SupportsList:   true,
		SupportsGet:    true,
		SupportsCreate: true,
		SupportsDelete: true,
	})
	return g
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestIDHeader)

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/openapi.json", h.spec)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/templates", func(r chi.Router) {
			r.Post("/", h.handleCreateTemplate)
			r.Get("/", h.handleListTemplates)
			r.Get("/{slug}", h.handleGetTemplate)
			r.Delete("/{slug}/{version}", h.handleDeleteTemplate)
		})

		r.Route("/deployments", func(r chi.Router) {
			r.Post("/", h.handleCreateDeployment)
			r.Get("/", h.handleListDeployments)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.handleGetDeployment)
				r.Delete("/", h.handleRemoveDeployment)
				r.Get("/status", h.handleDeploymentStatus)
				r.Get("/events", h.handleDeploymentEvents)
				r.Post("/start", h.handleStartDeployment)
				r.Post("/stop", h.handleStopDeployment)
				r.Post("/restart", h.handleRestartDeployment)
				r.Post("/backup", h.handleBackupDeployment)
			})
		})
	})

	return r
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}

	if err := h.docker.Ping(); err != nil {
		checks["docker"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["docker"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req CreateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	d, err := h.manager.Create(r.Context(), orchestrator.CreateRequest{
		Name:            req.Name,
		Mode:            req.Mode,
		TemplateSlug:    req.Template,
		TemplateVersion: req.TemplateVersion,
		Hostname:        req.Hostname,
		Ports: domain.PortConfig{
			SSH:           req.Ports.SSH,
			Telnet:        req.Ports.Telnet,
			Kibana:        req.Ports.Kibana,
			Elasticsearch: req.Ports.Elasticsearch,
			LogstashBeats: req.Ports.LogstashBeats,
			LogstashMon:   req.Ports.LogstashMon,
		},
	}, h.dataDir)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, deploymentToResponse(d))
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	d, err := h.store.GetDeployment(r.Context(), name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, deploymentToResponse(d))
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	opts := h.listOptions(r)

	deployments, err := h.manager.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list deployments", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deployments", "internal_error")
		return
	}

	resp := ListDeploymentsResponse{
		Deployments: make([]DeploymentResponse, 0, len(deployments)),
		Total:       len(deployments),
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}
	for i := range deployments {
		resp.Deployments = append(resp.Deployments, deploymentToResponse(&deployments[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeploymentStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	report, err := h.manager.Status(r.Context(), name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{
		Deployment: deploymentToResponse(report.Deployment),
		Containers: report.Containers,
	})
}

func (h *Handler) handleDeploymentEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	events, err := h.manager.Events(r.Context(), name, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := ListEventsResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			Type:      string(e.Type),
			Message:   e.Message,
			CreatedAt: e.CreatedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStartDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.manager.Start(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deploymentToResponse(d))
}

func (h *Handler) handleStopDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.manager.Stop(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deploymentToResponse(d))
}

func (h *Handler) handleRestartDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.manager.Restart(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deploymentToResponse(d))
}

func (h *Handler) handleBackupDeployment(w http.ResponseWriter, r *http.Request) {
	path, err := h.manager.Backup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BackupResponse{Path: path})
}

func (h *Handler) handleRemoveDeployment(w http.ResponseWriter, r *http.Request) {
	preserveData, _ := strconv.ParseBool(r.URL.Query().Get("preserve_data"))

	if err := h.manager.Remove(r.Context(), chi.URLParam(r, "name"), preserveData); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Template Handlers
// =============================================================================

// handleCreateTemplate accepts a template document as YAML. Publishing the
// same slug+version twice is a conflict; a new version is a new document.
func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTemplateBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body", "validation_error")
		return
	}

	tpl, err := coretemplate.ParseTemplate(string(body))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if verr := coretemplate.ValidateTemplate(tpl); verr != nil {
		h.writeDomainError(w, verr)
		return
	}

	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := h.store.CreateTemplate(r.Context(), tpl); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, templateToResponse(tpl))
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var tpl *domain.Template
	var err error
	if version := r.URL.Query().Get("version"); version != "" {
		tpl, err = h.store.GetTemplate(r.Context(), slug, version)
	} else {
		tpl, err = h.store.GetLatestTemplate(r.Context(), slug)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, templateToResponse(tpl))
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	opts := h.listOptions(r)

	templates, err := h.store.ListTemplates(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list templates", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list templates", "internal_error")
		return
	}

	resp := ListTemplatesResponse{
		Templates: make([]TemplateResponse, 0, len(templates)),
		Total:     len(templates),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}
	for i := range templates {
		resp.Templates = append(resp.Templates, templateToResponse(&templates[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	version := chi.URLParam(r, "version")

	liveRefs, err := h.store.CountLiveDeploymentsByTemplate(r.Context(), slug)
	if err != nil {
		h.logger.Error("failed to count template references", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to check template references", "internal_error")
		return
	}
	if allowed, reason := validation.CanModifyTemplate(liveRefs); !allowed {
		h.writeError(w, http.StatusConflict, reason, "template_in_use")
		return
	}

	if err := h.store.DeleteTemplate(r.Context(), slug, version); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) listOptions(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	return opts
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeDomainError maps the error taxonomy onto HTTP statuses: validation
// and parse problems are 400, collisions and state conflicts 409, unknown
// names 404, container engine failures 502.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: verr.Error(),
			Code:  "validation_error",
			Field: verr.Field,
		})
		return
	}

	var perr *coretemplate.ParseError
	if errors.As(err, &perr) {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: perr.Error(),
			Code:  "template_parse_error",
			Field: perr.Field,
		})
		return
	}

	var cerr *domain.ConflictError
	if errors.As(err, &cerr) {
		h.writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:         cerr.Error(),
			Code:          string(cerr.Kind),
			Owner:         cerr.Owner,
			SuggestedPort: cerr.SuggestedPort,
		})
		return
	}

	switch {
	case errors.Is(err, coretemplate.ErrEmptyInput):
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, orchestrator.ErrDeploymentNotFound):
		h.writeError(w, http.StatusNotFound, err.Error(), "deployment_not_found")
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found", "not_found")
	case errors.Is(err, store.ErrDuplicateTemplate):
		h.writeError(w, http.StatusConflict, "template version already exists", "template_version_exists")
	case errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error(), "invalid_transition")
	case errors.Is(err, orchestrator.ErrDeploymentBusy):
		h.writeError(w, http.StatusConflict, err.Error(), "deployment_busy")
	default:
		var rerr *domain.RuntimeError
		if errors.As(err, &rerr) {
			h.writeError(w, http.StatusBadGateway, rerr.Error(), "runtime_error")
			return
		}
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
	}
}

func deploymentToResponse(d *domain.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:              d.ID,
		Name:            d.Name,
		Mode:            string(d.Mode),
		Template:        d.TemplateName,
		TemplateVersion: d.TemplateVersion,
		Hostname:        d.Hostname,
		Status:          string(d.Status),
		Ports:           d.Ports,
		Health:          d.Health,
		ErrorMessage:    d.ErrorMessage,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		StartedAt:       d.StartedAt,
		StoppedAt:       d.StoppedAt,
	}
}

func templateToResponse(t *domain.Template) TemplateResponse {
	return TemplateResponse{
		Name:        t.Name,
		Slug:        t.Slug,
		Industry:    t.Industry,
		Description: t.Description,
		Version:     t.Version,
		Settings:    t.Settings,
		Filesystem:  t.Filesystem,
		Accounts:    t.Accounts,
		Commands:    t.Commands,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
