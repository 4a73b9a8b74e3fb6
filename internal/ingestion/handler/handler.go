// Package handler exposes document ingestion over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/logger"
)

const maxBodyBytes = 2 << 20

// DocumentPublisher publishes document changes. publisher.Publisher
// implements it.
type DocumentPublisher interface {
	Ingest(ctx context.Context, docID uint64, fields map[string]string) (*ingestion.IngestResponse, error)
	Delete(ctx context.Context, docID uint64) (*ingestion.IngestResponse, error)
}

type Handler struct {
	publisher DocumentPublisher
	logger    *slog.Logger
}

func New(pub DocumentPublisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Routes registers the handler's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.Ingest(ctx, *req.DocumentID, req.Fields)
	if err != nil {
		h.fail(w, log, *req.DocumentID, err)
		return
	}
	log.Info("document accepted", "doc_id", resp.DocumentID, "fields", len(req.Fields))
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	docID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an unsigned integer")
		return
	}
	resp, err := h.publisher.Delete(ctx, docID)
	if err != nil {
		h.fail(w, log, docID, err)
		return
	}
	log.Info("document deletion accepted", "doc_id", docID)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, docID uint64, err error) {
	statusCode := apperrors.HTTPStatusCode(err)
	log.Error("ingestion failed",
		"doc_id", docID,
		"status_code", statusCode,
		"error", err,
	)
	h.writeError(w, statusCode, "ingestion failed")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
