package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/parse"
	"github.com/JaimeStill/covenant/pkg/formatting"
	"github.com/JaimeStill/covenant/pkg/handlers"
	"github.com/JaimeStill/covenant/pkg/middleware"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/routes"
)

// multipartOverhead is the allowance for form boundaries and headers on
// top of the upload size limit.
const multipartOverhead = 1 << 20

// eventHeartbeat is the interval between keep-alive comments on idle event streams.
const eventHeartbeat = 15 * time.Second

// Handler provides HTTP endpoints for contract operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// NewHandler creates a Handler with the given system, logger, pagination config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "contracts"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route groups for contract, question, report, and index endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/contracts",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "POST", Pattern: "", Handler: h.Upload},
					{Method: "GET", Pattern: "/events", Handler: h.Events},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
					{Method: "PUT", Pattern: "/{id}", Handler: h.Reupload},
					{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
					{Method: "POST", Pattern: "/{id}/reprocess", Handler: h.Reprocess},
					{Method: "GET", Pattern: "/{id}/document", Handler: h.Document},
				},
			},
			{
				Prefix: "/ask",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.Ask},
				},
			},
			{
				Prefix: "/reports",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.Reports},
				},
			},
			{
				Prefix: "/index",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/rebuild", Handler: h.Rebuild},
				},
			},
		},
	}
}

// List returns a paginated list of contracts filtered by search, status, and risk.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		return
	}
	filters := corpus.FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a contract with its clauses, insights, and evidence.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	details, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, details)
}

// Upload ingests a document from the multipart "file" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	details, err := h.sys.Ingest(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "contract ingested", details.ID)
	handlers.RespondJSON(w, http.StatusCreated, details)
}

// Reupload replaces a contract with a new version of its document.
func (h *Handler) Reupload(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	cmd, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	details, err := h.sys.Reingest(r.Context(), id, cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "contract reingested", id)
	handlers.RespondJSON(w, http.StatusOK, details)
}

// Reprocess re-runs the pipeline over the stored document.
func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	details, err := h.sys.Reprocess(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "contract reprocessed", id)
	handlers.RespondJSON(w, http.StatusOK, details)
}

// Delete removes a contract and its stored document.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "contract deleted", id)
	handlers.NoContent(w)
}

// Document streams the original upload.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	doc, err := h.sys.Document(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Data)
}

// Ask answers a question from the corpus with cited evidence.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var cmd AskCommand
	if err := handlers.DecodeJSON(w, r, &cmd, 0); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		return
	}

	result, err := h.sys.Ask(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("question answered", "caller", middleware.Caller(r.Context()), "chunks", len(result.Chunks))
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Reports returns portfolio status, risk, and expiration summaries.
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	report, err := h.sys.Reports(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

// Rebuild reconstructs the search index from the corpus.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sys.RebuildIndex(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("index rebuild requested", "caller", middleware.Caller(r.Context()))
	handlers.RespondJSON(w, http.StatusOK, stats)
}

// Events streams ingestion stage events as server-sent events until the
// client disconnects.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// Streams outlive the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("clear write deadline", "error", err)
	}

	events, cancel := h.sys.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("event stream unsupported", "error", err)
		return
	}

	heartbeat := time.NewTicker(eventHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Stage, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (IngestCommand, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, fmt.Errorf("%w: limit %s", parse.ErrFileTooLarge, formatting.FormatBytes(h.maxUploadSize, 1)))
			return IngestCommand{}, false
		}
		h.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		return IngestCommand{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: missing file field", ErrInvalidRequest))
		return IngestCommand{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		return IngestCommand{}, false
	}

	return IngestCommand{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: invalid contract id", ErrInvalidRequest))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) audit(r *http.Request, msg string, id uuid.UUID) {
	h.logger.Info(msg, "id", id, "caller", middleware.Caller(r.Context()))
}

// fail writes err with its kind. Internal failures are logged in full and
// reported with a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := Kind(err)
	status := MapHTTPStatus(err)

	if kind == KindInternal {
		h.logger.Error("request failed", "caller", middleware.Caller(r.Context()), "error", err)
		handlers.RespondJSON(w, status, handlers.ErrorResponse{
			Kind:  string(kind),
			Error: "internal error",
		})
		return
	}

	handlers.RespondKind(w, h.logger, status, string(kind), err)
}
