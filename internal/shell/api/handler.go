// Package api provides HTTP handlers for the OrgShift API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/orgshift/orgshift/internal/core/domain"
	"github.com/orgshift/orgshift/internal/core/validation"
	"github.com/orgshift/orgshift/internal/shell/api/middleware"
	"github.com/orgshift/orgshift/internal/shell/api/openapi"
	"github.com/orgshift/orgshift/internal/shell/engine"
	"github.com/orgshift/orgshift/internal/shell/orgapi"
	"github.com/orgshift/orgshift/internal/shell/registry"
	"github.com/orgshift/orgshift/internal/shell/store"
	"github.com/orgshift/orgshift/internal/shell/usage"
)

// =============================================================================
// Handler
// =============================================================================

// DefaultEngineTimeout bounds a single validation run.
const DefaultEngineTimeout = 60 * time.Second

// Handler provides HTTP handlers for the API.
type Handler struct {
	store         store.Store
	registry      registry.Registry
	engine        engine.Engine
	orgClient     orgapi.Client
	recorder      *usage.Recorder
	logger        *slog.Logger
	version       string
	engineTimeout time.Duration
	reconnectURL  string
}

// Config configures an API handler.
type Config struct {
	Store     store.Store
	Registry  registry.Registry
	Engine    engine.Engine
	OrgClient orgapi.Client
	Recorder  *usage.Recorder
	Logger    *slog.Logger

	// Version is reported by the health endpoint.
	Version string

	// EngineTimeout bounds a single validation run. Defaults to
	// DefaultEngineTimeout.
	EngineTimeout time.Duration

	// ReconnectURL is returned with token-expired errors so clients can send
	// users back through the OAuth flow.
	ReconnectURL string
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.EngineTimeout
	if timeout <= 0 {
		timeout = DefaultEngineTimeout
	}
	reconnectURL := cfg.ReconnectURL
	if reconnectURL == "" {
		reconnectURL = "/settings/connections"
	}
	return &Handler{
		store:         cfg.Store,
		registry:      cfg.Registry,
		engine:        cfg.Engine,
		orgClient:     cfg.OrgClient,
		recorder:      cfg.Recorder,
		logger:        logger.With("component", "api"),
		version:       cfg.Version,
		engineTimeout: timeout,
		reconnectURL:  reconnectURL,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)
	r.Use(middleware.UserIdentity)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/migrations/validate", h.handleValidateMigration)

		r.Route("/orgs", func(r chi.Router) {
			r.Post("/", h.handleConnectOrg)
			r.Get("/", h.handleListOrgs)
			r.Get("/{id}", h.handleGetOrg)
			r.Delete("/{id}", h.handleDisconnectOrg)
		})

		r.Get("/templates", h.handleListTemplates)
		r.Get("/templates/{id}", h.handleGetTemplate)
		r.Get("/openapi.json", h.openAPIGenerator().Handler())
	})

	return r
}

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: h.version})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if _, err := h.store.ListOrgs(r.Context(), store.ListOptions{Limit: 1}); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Migration Validation
// =============================================================================

// handleValidateMigration runs the full pre-migration validation pipeline:
// resolve both orgs and the template, pre-check the selected records against
// the source org, run the rule engine, and return the aggregated report.
func (h *Handler) handleValidateMigration(w http.ResponseWriter, r *http.Request) {
	var req ValidateMigrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", CodeInvalidRequest)
		return
	}

	if field, message := validation.ValidateMigrationInputs(
		req.SourceOrgID, req.TargetOrgID, req.TemplateID, req.SelectedRecords,
	); field != "" {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %s", field, message), CodeInvalidRequest)
		return
	}

	ctx := r.Context()

	// Resolve both orgs concurrently.
	var sourceOrg, targetOrg *domain.Org
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		org, err := h.store.GetOrg(gctx, req.SourceOrgID)
		if err != nil {
			return fmt.Errorf("source org: %w", err)
		}
		sourceOrg = org
		return nil
	})
	g.Go(func() error {
		org, err := h.store.GetOrg(gctx, req.TargetOrgID)
		if err != nil {
			return fmt.Errorf("target org: %w", err)
		}
		targetOrg = org
		return nil
	})
	if err := g.Wait(); err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, err.Error(), CodeNotFound)
			return
		}
		h.logger.Error("failed to resolve orgs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to resolve orgs", CodeInternalError)
		return
	}

	tmpl, err := h.registry.Resolve(ctx, req.TemplateID)
	if err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "migration template not found", CodeNotFound)
			return
		}
		h.logger.Error("failed to resolve template", "template_id", req.TemplateID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to resolve template", CodeInternalError)
		return
	}

	// Pre-check: every selected record must exist in the source org and match
	// the template's object type. Failing records short-circuit the engine.
	records, err := h.orgClient.GetRecords(ctx, sourceOrg, req.SelectedRecords)
	if err != nil {
		h.writeDownstreamError(w, sourceOrg, "source", err)
		return
	}

	statuses := make(map[string]validation.RecordStatus, len(records))
	for id, info := range records {
		statuses[id] = validation.RecordStatus{
			Exists:     info.Exists,
			ObjectType: info.ObjectType,
		}
	}

	expectedObject := tmpl.PrimaryObject()
	outcome := validation.EvaluateRecordSelection(expectedObject, req.SelectedRecords, statuses)
	if !outcome.Valid {
		result := validation.SelectionFailureReport(outcome, expectedObject, sourceOrg.RecordURL)
		h.respondValidation(w, r, req, result)
		return
	}

	engineCtx, cancel := context.WithTimeout(ctx, h.engineTimeout)
	defer cancel()

	out, err := h.engine.Validate(engineCtx, engine.Request{
		Template:  tmpl,
		SourceOrg: sourceOrg,
		TargetOrg: targetOrg,
		RecordIDs: req.SelectedRecords,
	})
	if err != nil {
		h.writeEngineError(w, sourceOrg, targetOrg, err)
		return
	}

	result := validation.BuildReport(out, len(req.SelectedRecords))
	h.respondValidation(w, r, req, result)
}

// respondValidation writes the 200 response and records usage out of band.
// A failed usage write never affects the response.
func (h *Handler) respondValidation(w http.ResponseWriter, r *http.Request, req ValidateMigrationRequest, result domain.ValidationResult) {
	h.writeJSON(w, http.StatusOK, ValidateMigrationResponse{
		Success:             true,
		Validation:          result,
		SelectedRecordNames: req.SelectedRecordNames,
	})

	if h.recorder != nil {
		h.recorder.RecordValidation(
			middleware.UserID(r.Context()),
			req.TemplateID,
			req.SourceOrgID,
			req.TargetOrgID,
			len(req.SelectedRecords),
			result,
		)
	}
}

// writeDownstreamError maps an org API failure from the record pre-check to
// an HTTP error. The pre-check only talks to one org, so auth failures can
// name the side the client needs to reconnect. Every other downstream
// failure, including upstream 4xx responses, is an internal failure of the
// validation run; 404 on the wire is reserved for unresolvable org and
// template IDs.
func (h *Handler) writeDownstreamError(w http.ResponseWriter, org *domain.Org, side string, err error) {
	if validation.IsAuthError(err.Error()) {
		h.logger.Warn("org token expired", "org_id", org.ID, "side", side)
		h.writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:        fmt.Sprintf("%s org connection has expired, please reconnect", side),
			Code:         CodeTokenExpired,
			ReconnectURL: h.reconnectURL,
		})
		return
	}

	h.logger.Error("validation failed", "org_id", org.ID, "side", side, "error", err)
	h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "validation failed",
		Code:    CodeValidationError,
		Details: err.Error(),
	})
}

// writeEngineError maps a failure inside the rule engine to an HTTP error.
// Rules query both orgs, so an expired token surfacing here cannot be
// attributed to a side; the message stays neutral and both org IDs are
// logged.
func (h *Handler) writeEngineError(w http.ResponseWriter, sourceOrg, targetOrg *domain.Org, err error) {
	if validation.IsAuthError(err.Error()) {
		h.logger.Warn("org token expired during validation",
			"source_org_id", sourceOrg.ID,
			"target_org_id", targetOrg.ID,
		)
		h.writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:        "org connection has expired, please reconnect",
			Code:         CodeTokenExpired,
			ReconnectURL: h.reconnectURL,
		})
		return
	}

	h.logger.Error("validation failed",
		"source_org_id", sourceOrg.ID,
		"target_org_id", targetOrg.ID,
		"error", err,
	)
	h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "validation failed",
		Code:    CodeValidationError,
		Details: err.Error(),
	})
}

// =============================================================================
// Org Handlers
// =============================================================================

func (h *Handler) handleConnectOrg(w http.ResponseWriter, r *http.Request) {
	var req ConnectOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", CodeInvalidRequest)
		return
	}
	if req.AccessToken == "" {
		h.writeError(w, http.StatusBadRequest, "accessToken: access token is required", CodeInvalidRequest)
		return
	}

	org, err := domain.NewOrg(req.Name, req.InstanceURL, req.AccessToken, domain.OrgEnvironment(req.Environment))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
		return
	}
	if req.APIVersion != "" {
		org.APIVersion = req.APIVersion
	}

	if err := h.store.CreateOrg(r.Context(), org); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			h.writeError(w, http.StatusConflict, "org already exists", CodeInvalidRequest)
			return
		}
		h.logger.Error("failed to create org", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to connect org", CodeInternalError)
		return
	}

	h.recordOrgEvent(r.Context(), domain.EventOrgConnected, org)

	h.writeJSON(w, http.StatusCreated, orgToResponse(org))
}

func (h *Handler) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.store.ListOrgs(r.Context(), store.DefaultListOptions())
	if err != nil {
		h.logger.Error("failed to list orgs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list orgs", CodeInternalError)
		return
	}

	resp := OrgListResponse{Orgs: make([]OrgResponse, 0, len(orgs))}
	for i := range orgs {
		resp.Orgs = append(resp.Orgs, orgToResponse(&orgs[i]))
	}
	resp.Count = len(resp.Orgs)

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	org, err := h.store.GetOrg(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "org not found", CodeNotFound)
			return
		}
		h.logger.Error("failed to get org", "org_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get org", CodeInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, orgToResponse(org))
}

func (h *Handler) handleDisconnectOrg(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	org, err := h.store.GetOrg(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "org not found", CodeNotFound)
			return
		}
		h.logger.Error("failed to get org", "org_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to disconnect org", CodeInternalError)
		return
	}

	if err := h.store.DeleteOrg(r.Context(), id); err != nil {
		h.logger.Error("failed to delete org", "org_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to disconnect org", CodeInternalError)
		return
	}

	h.recordOrgEvent(r.Context(), domain.EventOrgDisconnected, org)

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordOrgEvent(ctx context.Context, eventType domain.EventType, org *domain.Org) {
	if h.recorder == nil {
		return
	}
	event := domain.NewUsageEvent(usage.NewEventID(), middleware.UserID(ctx), eventType, org.ID, "org")
	h.recorder.Record(event.WithMetadata("environment", string(org.Environment)))
}

// =============================================================================
// Template Handlers
// =============================================================================

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.registry.List(r.Context(), store.DefaultListOptions())
	if err != nil {
		h.logger.Error("failed to list templates", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list templates", CodeInternalError)
		return
	}

	resp := TemplateListResponse{Templates: make([]TemplateResponse, 0, len(templates))}
	for i := range templates {
		resp.Templates = append(resp.Templates, templateToResponse(&templates[i]))
	}
	resp.Count = len(resp.Templates)

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tmpl, err := h.registry.Resolve(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "template not found", CodeNotFound)
			return
		}
		h.logger.Error("failed to get template", "template_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get template", CodeInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, templateToResponse(tmpl))
}

// =============================================================================
// OpenAPI
// =============================================================================

func (h *Handler) openAPIGenerator() *openapi.Generator {
	gen := openapi.NewGenerator(
		openapi.WithTitle("OrgShift API"),
		openapi.WithVersion(h.version),
	)
	gen.RegisterEndpoint(openapi.EndpointInfo{
		Method:      http.MethodPost,
		Path:        "/api/v1/migrations/validate",
		OperationID: "validateMigration",
		Summary:     "Validate selected records for migration",
		Tag:         "migrations",
		Request:     ValidateMigrationRequest{},
		Response:    ValidateMigrationResponse{},
	})
	gen.RegisterEndpoint(openapi.EndpointInfo{
		Method:      http.MethodPost,
		Path:        "/api/v1/orgs",
		OperationID: "connectOrg",
		Summary:     "Connect an org",
		Tag:         "orgs",
		Request:     ConnectOrgRequest{},
		Response:    OrgResponse{},
		Status:      http.StatusCreated,
	})
	gen.RegisterEndpoint(openapi.EndpointInfo{
		Method:      http.MethodGet,
		Path:        "/api/v1/orgs",
		OperationID: "listOrgs",
		Summary:     "List connected orgs",
		Tag:         "orgs",
		Response:    OrgListResponse{},
	})
	gen.RegisterEndpoint(openapi.EndpointInfo{
		Method:      http.MethodGet,
		Path:        "/api/v1/orgs/{id}",
		OperationID: "getOrg",
		Summary:     "Get a connected org",
		Tag:         "orgs",
		Response:    OrgResponse{},
	})
	gen.RegisterEndpoint(openapi.EndpointInfo{
		Method:      http.MethodDelete,
		Path:        "/api/v1/orgs/{id}",
		OperationID: "disconnectOrg",
		Summary:     "Disconnect an org",
		Tag:         "orgs",
		Status:      http.StatusNoContent,
	})
	gen.RegisterEndpoint(openapi.EndpointInfo{
		Method:      http.MethodGet,
		Path:        "/api/v1/templates",
		OperationID: "listTemplates",
		Summary:     "List migration templates",
		Tag:         "templates",
		Response:    TemplateListResponse{},
	})
	gen.RegisterEndpoint(openapi.EndpointInfo{
		Method:      http.MethodGet,
		Path:        "/api/v1/templates/{id}",
		OperationID: "getTemplate",
		Summary:     "Get a migration template",
		Tag:         "templates",
		Response:    TemplateResponse{},
	})
	return gen
}

// =============================================================================
// Response Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
