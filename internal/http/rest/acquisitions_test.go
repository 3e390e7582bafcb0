package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italolelis/aax_downloader/internal/acquisition"
	"github.com/italolelis/aax_downloader/internal/coordinator"
	"github.com/italolelis/aax_downloader/internal/storage"
)

type mockCoordinator struct {
	acquireFunc func(ctx context.Context, item acquisition.ContentItemRef, force bool) (acquisition.Outcome, error)
	lastItem    acquisition.ContentItemRef
	lastForce   bool
	batchItems  []acquisition.ContentItemRef
}

func (m *mockCoordinator) Acquire(ctx context.Context, item acquisition.ContentItemRef, force bool) (acquisition.Outcome, error) {
	m.lastItem = item
	m.lastForce = force

	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, item, force)
	}

	paths := acquisition.FinalPaths{Content: "/books/" + item.ID + ".aax", Sidecar: "/books/" + item.ID + ".json"}

	return acquisition.NewOutcome(item.ID, paths, nil), nil
}

func (m *mockCoordinator) AcquireBatch(_ context.Context, items []acquisition.ContentItemRef, _ bool) []coordinator.Result {
	m.batchItems = items

	results := make([]coordinator.Result, len(items))
	for i, it := range items {
		results[i] = coordinator.Result{ItemID: it.ID, Skipped: true}
	}

	return results
}

type mockLedger struct {
	records []storage.AcquisitionRecord
}

func (m *mockLedger) GetAcquisitions(context.Context) ([]storage.AcquisitionRecord, error) {
	return m.records, nil
}

func (m *mockLedger) GetAcquisition(_ context.Context, itemID string) (*storage.AcquisitionRecord, error) {
	for _, r := range m.records {
		if r.ItemID == itemID {
			return &r, nil
		}
	}

	return nil, storage.ErrNotFound
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

const hobbitJSON = `{"id":"B0001","title":"The Hobbit","account":"reader","locale":"us"}`

func TestHandleAcquire_Completed(t *testing.T) {
	coord := &mockCoordinator{}
	h := NewAcquisitionHandler("", "", coord, &mockLedger{}).Routes()

	rec := serve(h, http.MethodPost, "/acquisitions?force=true", hobbitJSON)
	require.Equal(t, http.StatusOK, rec.Code)

	var got coordinator.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.NotNil(t, got.Outcome)
	assert.Equal(t, acquisition.StatusCompleted, got.Outcome.Status)
	assert.Equal(t, "/books/B0001.aax", got.Outcome.Paths.Content)

	assert.Equal(t, "us", coord.lastItem.Locale)
	assert.True(t, coord.lastForce)
}

func TestHandleAcquire_FailureStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"precondition", &acquisition.PreconditionError{Field: "Locale"}, http.StatusUnprocessableEntity},
		{"service unavailable", &acquisition.ClassificationError{Verdict: acquisition.VerdictServiceUnavailable}, http.StatusServiceUnavailable},
		{"corrupt", &acquisition.ClassificationError{}, http.StatusBadGateway},
		{"verification", &acquisition.VerificationError{Path: "/books/a.aax"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &mockCoordinator{acquireFunc: func(_ context.Context, item acquisition.ContentItemRef, _ bool) (acquisition.Outcome, error) {
				return acquisition.NewOutcome(item.ID, acquisition.FinalPaths{}, tt.err), nil
			}}

			rec := serve(NewAcquisitionHandler("", "", coord, &mockLedger{}).Routes(), http.MethodPost, "/acquisitions", hobbitJSON)
			assert.Equal(t, tt.want, rec.Code)

			var got coordinator.Result
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, acquisition.StatusFailed, got.Outcome.Status)
		})
	}
}

func TestHandleAcquire_CoordinatorErrors(t *testing.T) {
	inProgress := &mockCoordinator{acquireFunc: func(context.Context, acquisition.ContentItemRef, bool) (acquisition.Outcome, error) {
		return acquisition.Outcome{}, coordinator.ErrInProgress
	}}
	rec := serve(NewAcquisitionHandler("", "", inProgress, &mockLedger{}).Routes(), http.MethodPost, "/acquisitions", hobbitJSON)
	assert.Equal(t, http.StatusConflict, rec.Code)

	present := &mockCoordinator{acquireFunc: func(context.Context, acquisition.ContentItemRef, bool) (acquisition.Outcome, error) {
		return acquisition.Outcome{}, coordinator.ErrAlreadyPresent
	}}
	rec = serve(NewAcquisitionHandler("", "", present, &mockLedger{}).Routes(), http.MethodPost, "/acquisitions", hobbitJSON)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"item_id":"B0001","skipped":true}`, rec.Body.String())
}

func TestHandleAcquire_BadBody(t *testing.T) {
	h := NewAcquisitionHandler("", "", &mockCoordinator{}, &mockLedger{}).Routes()

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/acquisitions", `{not json`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/acquisitions", `{"asin":"B0001"}`).Code)
}

func TestHandleAcquireBatch(t *testing.T) {
	coord := &mockCoordinator{}
	h := NewAcquisitionHandler("", "", coord, &mockLedger{}).Routes()

	rec := serve(h, http.MethodPost, "/acquisitions/batch", `{"items":[`+hobbitJSON+`,{"id":"B0002","account":"a","locale":"uk"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got batchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got.Results, 2)
	assert.Equal(t, "B0002", got.Results[1].ItemID)
	assert.Len(t, coord.batchItems, 2)

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/acquisitions/batch", `{"items":[]}`).Code)
}

func TestHandleListAndGet(t *testing.T) {
	ledger := &mockLedger{records: []storage.AcquisitionRecord{{ItemID: "B0001", Status: storage.StatusCompleted}}}
	h := NewAcquisitionHandler("", "", &mockCoordinator{}, ledger).Routes()

	rec := serve(h, http.MethodGet, "/acquisitions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []storage.AcquisitionRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/acquisitions/B0001", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/acquisitions/B9999", "").Code)

	empty := NewAcquisitionHandler("", "", &mockCoordinator{}, &mockLedger{}).Routes()
	assert.JSONEq(t, `[]`, serve(empty, http.MethodGet, "/acquisitions", "").Body.String())
}

func TestBasicAuth(t *testing.T) {
	h := NewAcquisitionHandler("admin", "secret", &mockCoordinator{}, &mockLedger{}).Routes()

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/acquisitions", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/acquisitions", nil)
	req.SetBasicAuth("admin", "wrong")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/acquisitions", nil)
	req.SetBasicAuth("admin", "secret")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
