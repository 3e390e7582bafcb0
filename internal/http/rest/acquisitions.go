package rest

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/italolelis/aax_downloader/internal/acquisition"
	"github.com/italolelis/aax_downloader/internal/coordinator"
	"github.com/italolelis/aax_downloader/internal/logctx"
	"github.com/italolelis/aax_downloader/internal/storage"
)

const (
	maxBatchItems   = 100
	maxRequestBytes = 1 << 20
)

// Coordinator runs guarded acquisition attempts.
type Coordinator interface {
	Acquire(ctx context.Context, item acquisition.ContentItemRef, force bool) (acquisition.Outcome, error)
	AcquireBatch(ctx context.Context, items []acquisition.ContentItemRef, force bool) []coordinator.Result
}

type batchRequest struct {
	Items []acquisition.ContentItemRef `json:"items"`
}

type batchResponse struct {
	Results []coordinator.Result `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// AcquisitionHandler exposes acquisition attempts and the ledger over HTTP.
type AcquisitionHandler struct {
	username    string
	password    string
	coordinator Coordinator
	ledger      storage.AcquisitionReadRepository
}

// NewAcquisitionHandler creates the handler. Basic auth is enforced only when a username is set.
func NewAcquisitionHandler(username, password string, c Coordinator, ledger storage.AcquisitionReadRepository) *AcquisitionHandler {
	return &AcquisitionHandler{
		username:    username,
		password:    password,
		coordinator: c,
		ledger:      ledger,
	}
}

func (h *AcquisitionHandler) Routes() http.Handler {
	r := chi.NewRouter()

	if h.username != "" {
		r.Use(h.basicAuthMiddleware)
	}

	r.Post("/acquisitions", h.HandleAcquire)
	r.Post("/acquisitions/batch", h.HandleAcquireBatch)
	r.Get("/acquisitions", h.HandleList)
	r.Get("/acquisitions/{itemID}", h.HandleGet)

	return r
}

// HandleAcquire runs one attempt synchronously and responds with its outcome.
func (h *AcquisitionHandler) HandleAcquire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.LoggerFromContext(ctx)

	var item acquisition.ContentItemRef
	if err := decodeBody(w, r, &item); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

		return
	}

	outcome, err := h.coordinator.Acquire(ctx, item, forceParam(r))

	switch {
	case errors.Is(err, coordinator.ErrAlreadyPresent):
		writeJSON(w, http.StatusOK, coordinator.Result{ItemID: item.ID, Skipped: true})
	case errors.Is(err, coordinator.ErrInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		logger.ErrorContext(ctx, "failed to run acquisition", "item_id", item.ID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to run acquisition"})
	default:
		writeJSON(w, statusFor(outcome), coordinator.Result{ItemID: item.ID, Outcome: &outcome})
	}
}

// HandleAcquireBatch runs attempts for several items with bounded parallelism.
func (h *AcquisitionHandler) HandleAcquireBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

		return
	}

	switch n := len(req.Items); {
	case n == 0:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no items"})

		return
	case n > maxBatchItems:
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "too many items, max " + strconv.Itoa(maxBatchItems)})

		return
	}

	writeJSON(w, http.StatusOK, batchResponse{Results: h.coordinator.AcquireBatch(r.Context(), req.Items, forceParam(r))})
}

// HandleList returns every ledger entry.
func (h *AcquisitionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.ledger.GetAcquisitions(ctx)
	if err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to list acquisitions", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list acquisitions"})

		return
	}

	if records == nil {
		records = []storage.AcquisitionRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

// HandleGet returns the ledger entry for one item.
func (h *AcquisitionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record, err := h.ledger.GetAcquisition(ctx, chi.URLParam(r, "itemID"))

	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case err != nil:
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to get acquisition", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to get acquisition"})
	default:
		writeJSON(w, http.StatusOK, record)
	}
}

func (h *AcquisitionHandler) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="aax_downloader"`)
			http.Error(w, "invalid authorization format", http.StatusUnauthorized)

			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(h.password)) == 1

		if !userOK || !passOK {
			http.Error(w, "invalid username or password", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusFor maps an outcome to an HTTP status: precondition failures are the caller's fault,
// upstream failures are reported as gateway errors and local storage failures as internal errors.
func statusFor(o acquisition.Outcome) int {
	if o.Status == acquisition.StatusCompleted {
		return http.StatusOK
	}

	switch o.Failure.Kind {
	case acquisition.FailurePrecondition:
		return http.StatusUnprocessableEntity
	case acquisition.FailureServiceUnavailable:
		return http.StatusServiceUnavailable
	case acquisition.FailureLicense, acquisition.FailureTransfer, acquisition.FailureCorrupt:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func forceParam(r *http.Request) bool {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	return force
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()

	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}
