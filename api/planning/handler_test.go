package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pailas/core/allocation"
	"github.com/kilianp07/pailas/core/audit"
	"github.com/kilianp07/pailas/core/eligibility"
	"github.com/kilianp07/pailas/core/model"
	coremon "github.com/kilianp07/pailas/core/monitoring"
	"github.com/kilianp07/pailas/core/occupancy"
	"github.com/kilianp07/pailas/infra/store/memory"
	"github.com/kilianp07/pailas/internal/fixture"
)

func init() { gin.SetMode(gin.TestMode) }

type env struct {
	router *gin.Engine
	store  *memory.Store
	engine *allocation.Engine
	audit  audit.Store
}

func newEnv(t *testing.T) env {
	t.Helper()
	st := memory.New()
	entries := []model.CompatibilityEntry{
		fixture.Entry(1, "P1", "DSP-1", fixture.ColorWhite, 10, 500),
		fixture.Entry(2, "P2", "DSP-2", fixture.ColorWhite, 10, 300),
	}
	require.NoError(t, st.Import(context.Background(), fixture.With(entries,
		fixture.Order(1, fixture.ProductWhite, 700),
		fixture.Order(2, fixture.ProductBlue, 100),
	)))
	aud, err := audit.NewJSONLStore(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = aud.Close() })

	eng := allocation.NewEngine(st)
	h := NewHandler(Deps{
		Resolver: eligibility.NewResolver(st, nil),
		Planner:  eng,
		Reader:   st,
		Ready:    st,
		Audit:    aud,
		Now:      func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) },
		Horizon:  24 * time.Hour,
	})
	return env{router: NewRouter(h), store: st, engine: eng, audit: aud}
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	return e
}

func TestEligibleVessels(t *testing.T) {
	e := newEnv(t)
	rr := do(t, e.router, http.MethodGet, "/api/orders/1/eligible-vessels", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got []eligibility.EligibleVessel
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "P1", got[0].VesselID)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	assert.Contains(t, raw[0], "ordinal_number")
	assert.NotContains(t, raw[0], "number")

	rr = do(t, e.router, http.MethodGet, "/api/orders/2/eligible-vessels", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestAssignVessel(t *testing.T) {
	e := newEnv(t)
	rr := do(t, e.router, http.MethodPatch, "/api/orders/1/vessel", map[string]string{"vessel_id": "P2"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res allocation.Assignment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "P2", res.VesselID)
	require.NotNil(t, res.Station)
	assert.Equal(t, "Disperser DSP-2", *res.Station)
	assert.Equal(t, allocation.Fragmented, res.Outcome)
	require.NotNil(t, res.Child)
	assert.Equal(t, 400.0, *res.Child.LotSize)

	rr = do(t, e.router, http.MethodGet, "/api/orders/1/tree", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var node model.OrderNode
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &node))
	assert.Len(t, node.Children, 1)
}

func TestAssignVesselErrors(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name   string
		path   string
		body   any
		status int
		kind   string
	}{
		{"missing vessel", "/api/orders/1/vessel", map[string]string{}, http.StatusBadRequest, "ValidationError"},
		{"bad order id", "/api/orders/abc/vessel", map[string]string{"vessel_id": "P1"}, http.StatusBadRequest, "ValidationError"},
		{"unknown order", "/api/orders/99/vessel", map[string]string{"vessel_id": "P1"}, http.StatusNotFound, "OrderNotFound"},
		{"unknown vessel", "/api/orders/1/vessel", map[string]string{"vessel_id": "P9"}, http.StatusNotFound, "VesselNotFound"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, e.router, http.MethodPatch, tc.path, tc.body)
			require.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.kind, decodeError(t, rr).Error)
		})
	}
	o, err := e.store.Order(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, o.VesselID)
}

func TestScheduleAndOccupancy(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusOK, do(t, e.router, http.MethodPatch, "/api/orders/1/vessel", map[string]string{"vessel_id": "P1"}).Code)

	rr := do(t, e.router, http.MethodPatch, "/api/orders/1/schedule", map[string]string{
		"start": "2024-03-01T06:00:00Z",
		"end":   "2024-03-01T12:00:00Z",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, e.router, http.MethodGet, "/api/vessels/P1/occupancy", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []model.OccupancyRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, model.StatusOccupied, recs[0].Status)

	rr = do(t, e.router, http.MethodGet, "/api/vessels/utilization", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rep occupancy.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	require.Len(t, rep.Vessels, 5)
	assert.InDelta(t, 0.25, rep.Vessels[0].Ratio, 1e-9)

	rr = do(t, e.router, http.MethodPatch, "/api/orders/1/schedule", map[string]string{
		"start": "2024-03-01T12:00:00Z",
		"end":   "2024-03-01T06:00:00Z",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, e.router, http.MethodDelete, "/api/orders/1/vessel", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, e.router, http.MethodGet, "/api/vessels/P1/occupancy", nil)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = do(t, e.router, http.MethodGet, "/api/vessels/P9/occupancy", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLedgerExport(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusOK, do(t, e.router, http.MethodPatch, "/api/orders/1/vessel", map[string]string{"vessel_id": "P1"}).Code)
	require.Equal(t, http.StatusOK, do(t, e.router, http.MethodPatch, "/api/orders/1/schedule", map[string]string{
		"start": "2024-03-01T06:00:00Z",
		"end":   "2024-03-01T12:00:00Z",
	}).Code)

	rr := do(t, e.router, http.MethodGet, "/api/occupancy?format=csv", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, "vessel_id,order_id,status,start,end\nP1,1,occupied,2024-03-01T06:00:00Z,2024-03-01T12:00:00Z\n", rr.Body.String())

	rr = do(t, e.router, http.MethodGet, "/api/vessels/P1/occupancy?format=csv", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "P1,1,occupied")

	rr = do(t, e.router, http.MethodGet, "/api/occupancy?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUtilizationRejectsBadWindow(t *testing.T) {
	e := newEnv(t)
	rr := do(t, e.router, http.MethodGet, "/api/vessels/utilization?start=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, e.router, http.MethodGet, "/api/vessels/utilization?start=2024-03-02T00:00:00Z&end=2024-03-01T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResyncAndHealth(t *testing.T) {
	e := newEnv(t)
	rr := do(t, e.router, http.MethodPost, "/api/occupancy/resync", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res allocation.ResyncResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Orders)

	assert.Equal(t, http.StatusOK, do(t, e.router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, e.router, http.MethodGet, "/ready", nil).Code)
}

func TestAssignmentLog(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, e.audit.Append(ctx, audit.Record{EventID: "a", Timestamp: at, Operation: "assignment", OrderID: 1, VesselID: "P1"}))
	require.NoError(t, e.audit.Append(ctx, audit.Record{EventID: "b", Timestamp: at.Add(time.Hour), Operation: "assignment", OrderID: 2, VesselID: "P2"}))

	rr := do(t, e.router, http.MethodGet, "/api/assignments/log?vessel_id=P2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []audit.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].EventID)

	rr = do(t, e.router, http.MethodGet, "/api/assignments/log?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type brokenPlanner struct{ Planner }

func (brokenPlanner) Resync(context.Context) (allocation.ResyncResult, error) {
	return allocation.ResyncResult{}, errors.New("disk on fire")
}

type brokenStore struct{ err error }

func (b brokenStore) Ping(context.Context) error { return b.err }

type captureMonitor struct{ errs []error }

func (m *captureMonitor) CaptureException(err error, _ map[string]string) {
	m.errs = append(m.errs, err)
}
func (m *captureMonitor) Recover()            {}
func (m *captureMonitor) Flush(time.Duration) {}

func TestInternalErrorsAreOpaqueAndReported(t *testing.T) {
	mon := &captureMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	h := NewHandler(Deps{Planner: brokenPlanner{}, Ready: brokenStore{err: errors.New("down")}})
	r := NewRouter(h)

	rr := do(t, r, http.MethodPost, "/api/occupancy/resync", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	e := decodeError(t, rr)
	assert.Equal(t, "InternalError", e.Error)
	assert.Equal(t, "internal error", e.Message)
	require.Len(t, mon.errs, 1)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodGet, "/ready", nil).Code)
}
