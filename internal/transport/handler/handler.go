package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Baltuneedu/pdf-compress-app/internal/blob"
	"github.com/Baltuneedu/pdf-compress-app/internal/config"
	"github.com/Baltuneedu/pdf-compress-app/internal/entities"
	"github.com/Baltuneedu/pdf-compress-app/internal/locator"
	"github.com/Baltuneedu/pdf-compress-app/internal/repository/storage"
	use_case "github.com/Baltuneedu/pdf-compress-app/internal/use-case"
)

type UseCase interface {
	HandleEvent(ctx context.Context, rec *locator.Record) (use_case.EventOutcome, error)
	IngestDocument(ctx context.Context, params use_case.IngestParams) (use_case.IngestOutcome, error)
	GetStatus(ctx context.Context, objectID string) (entities.CompressionJob, error)
}

type Handler struct {
	useCase   UseCase
	cfg       *config.Config
	validator *validator.Validate
}

func New(useCase UseCase, cfg *config.Config) *Handler {
	return &Handler{
		useCase:   useCase,
		cfg:       cfg,
		validator: validator.New(),
	}
}

// CORS admits cross-origin requests per the allow-list and short-circuits
// preflights with 204. Requests without an Origin header pass through since
// the storage notifier calls server-to-server.
func (h *Handler) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := OriginAllowed(origin, h.cfg.CORS.AllowedOrigins)

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if origin != "" && !allowed {
			writeJSONError(w, "origin not allowed", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// StorageWebhook is the event path: one notification, one object.
func (h *Handler) StorageWebhook(w http.ResponseWriter, r *http.Request) {
	if !bearerMatches(r, h.cfg.Webhook.Secret) {
		writeJSONError(w, "invalid bearer token", http.StatusUnauthorized)
		return
	}

	var ev locator.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSONError(w, "malformed event payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	rec := ev.Rec()
	if rec == nil {
		writeJSONError(w, `event must carry a "record" or "new" object`, http.StatusBadRequest)
		return
	}

	out, err := h.useCase.HandleEvent(r.Context(), rec)
	if err != nil {
		h.writeEventError(w, out, err)
		return
	}

	writeJSON(w, out, http.StatusOK)
}

// writeEventError keeps the response bounded: the status record already
// holds the terminal outcome, the HTTP code just classifies the fault.
func (h *Handler) writeEventError(w http.ResponseWriter, out use_case.EventOutcome, err error) {
	switch {
	case errors.Is(err, entities.ErrMissingLocator):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case entities.IsTooLarge(err):
		writeJSON(w, out, http.StatusUnprocessableEntity)
	default:
		var we *entities.WorkerError
		if errors.As(err, &we) {
			writeJSON(w, out, http.StatusBadGateway)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

// IngestDocument is the manual path: direct bytes or a source object,
// stored pass-through without the worker.
func (h *Handler) IngestDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Ingest.MaxRequestBodyMB<<20)

	var req IngestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "malformed request: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
		return
	}

	params := use_case.IngestParams{
		Data:        req.Data,
		Content:     req.Content,
		Bucket:      req.Bucket,
		Key:         req.Key,
		ContentType: req.ContentType,
		Overwrite:   req.Overwrite,
		RecordID:    req.RecordID,
	}
	if req.SourceName != "" {
		params.Source = &entities.Locator{Bucket: req.SourceBucket, Name: req.SourceName}
		params.DeleteSource = req.DeleteSource
	}

	out, err := h.useCase.IngestDocument(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrMissingLocator):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, blob.ErrAlreadyExists):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, out, http.StatusCreated)
}

// DocumentStatus serves the lifecycle record for one object id. The id is
// percent-encoded in the path since composite ids contain slashes.
func (h *Handler) DocumentStatus(w http.ResponseWriter, r *http.Request) {
	objectID, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || objectID == "" {
		writeJSONError(w, "invalid object id", http.StatusBadRequest)
		return
	}

	job, err := h.useCase.GetStatus(r.Context(), objectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, "no compression job for object", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, job, http.StatusOK)
}
