package prompts

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/handlers"
	"github.com/JaimeStill/covenant/pkg/middleware"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/routes"
)

// Handler provides HTTP endpoints for prompt overrides.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// StageContent is the response type for stage-scoped content endpoints.
type StageContent struct {
	Stage   Stage  `json:"stage"`
	Content string `json:"content"`
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: pagination,
	}
}

// Routes returns the route group for prompt endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/prompts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "/stages", Handler: h.Stages},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/activate", Handler: h.Activate},
			{Method: "POST", Pattern: "/{id}/deactivate", Handler: h.Deactivate},
			{Method: "GET", Pattern: "/{stage}/instructions", Handler: h.Instructions},
			{Method: "GET", Pattern: "/{stage}/spec", Handler: h.Spec},
		},
	}
}

// List returns a page of prompts filtered by stage, name, and active flag.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidPrompt, err))
		return
	}

	result, err := h.sys.List(r.Context(), page, FiltersFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, Stages())
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

// Create adds an inactive override from a JSON body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := handlers.DecodeJSON(w, r, &cmd, 0); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidPrompt, err))
		return
	}

	p, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "prompt created", p.ID)
	handlers.RespondJSON(w, http.StatusCreated, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd UpdateCommand
	if err := handlers.DecodeJSON(w, r, &cmd, 0); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidPrompt, err))
		return
	}

	p, err := h.sys.Update(r.Context(), id, cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "prompt updated", id)
	handlers.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "prompt deleted", id)
	handlers.NoContent(w)
}

// Activate makes a prompt the override for its stage, replacing any other
// active prompt of that stage.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.sys.Activate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "prompt activated", id)
	handlers.RespondJSON(w, http.StatusOK, p)
}

// Deactivate returns the prompt's stage to its configured instructions.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.sys.Deactivate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "prompt deactivated", id)
	handlers.RespondJSON(w, http.StatusOK, p)
}

// Instructions returns the instructions a stage currently runs with.
func (h *Handler) Instructions(w http.ResponseWriter, r *http.Request) {
	stage, err := ParseStage(r.PathValue("stage"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	text, err := h.sys.Instructions(r.Context(), stage)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Content: text})
}

// Spec returns the fixed response specification of a stage.
func (h *Handler) Spec(w http.ResponseWriter, r *http.Request) {
	stage, err := ParseStage(r.PathValue("stage"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	text, err := Spec(stage)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Content: text})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, errorf(ErrInvalidPrompt, "invalid prompt id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) audit(r *http.Request, msg string, id uuid.UUID) {
	h.logger.Info(msg, "id", id, "caller", middleware.Caller(r.Context()))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := Kind(err)
	status := MapHTTPStatus(err)

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "caller", middleware.Caller(r.Context()), "error", err)
		handlers.RespondJSON(w, status, handlers.ErrorResponse{Kind: kind, Error: "internal error"})
		return
	}

	handlers.RespondKind(w, h.logger, status, kind, err)
}
