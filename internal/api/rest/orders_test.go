package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soham10i/stf-hw/internal/types"
)

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestOrderStoreQueuesCommand(t *testing.T) {
	store := newStubStore()
	s := newTestServer(store, &stubController{})

	rec := doJSON(t, s, http.MethodPost, "/order/store", `{"flavor":"CHOCO"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		CommandID int64 `json:"command_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.CommandID)

	require.Len(t, store.created, 1)
	cmd := store.created[0]
	assert.Equal(t, types.KindStore, cmd.Kind)
	assert.Equal(t, types.StatusPending, cmd.Status)
	// Auto-selection picks the lowest free slot.
	assert.Equal(t, types.SlotName("A1"), *cmd.TargetSlot)
	assert.Len(t, cmd.Devices, 3)
}

func TestOrderStoreRejectsOccupiedSlot(t *testing.T) {
	store := newStubStore()
	carrier := int64(1)
	store.slots["B2"] = &types.Slot{Name: "B2", CarrierID: &carrier}
	s := newTestServer(store, &stubController{})

	rec := doJSON(t, s, http.MethodPost, "/order/store", `{"flavor":"CHOCO","slot":"B2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.created)
}

func TestOrderStoreRejectsFullWarehouse(t *testing.T) {
	store := newStubStore()
	store.emptyErr = types.ErrWarehouseFull
	s := newTestServer(store, &stubController{})

	rec := doJSON(t, s, http.MethodPost, "/order/store", `{"flavor":"VANILLA"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.created)
}

func TestOrderStoreRejectsBadInput(t *testing.T) {
	s := newTestServer(newStubStore(), &stubController{})

	for name, body := range map[string]string{
		"bad flavor": `{"flavor":"MARMITE"}`,
		"bad slot":   `{"flavor":"CHOCO","slot":"Z9"}`,
		"not json":   `{broken`,
	} {
		rec := doJSON(t, s, http.MethodPost, "/order/store", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestOrderRetrieveRequiresOccupiedSlot(t *testing.T) {
	store := newStubStore()
	s := newTestServer(store, &stubController{})

	rec := doJSON(t, s, http.MethodPost, "/order/retrieve", `{"slot":"A1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty slot must 400")

	carrier := int64(5)
	store.slots["A1"] = &types.Slot{Name: "A1", CarrierID: &carrier}
	rec = doJSON(t, s, http.MethodPost, "/order/retrieve", `{"slot":"A1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, types.KindRetrieve, store.created[0].Kind)
}

func TestOrderProcessValidatesLifecycle(t *testing.T) {
	store := newStubStore()
	store.cookies["A1"] = &types.Cookie{BatchID: "b1", Status: types.CookieBaked}
	s := newTestServer(store, &stubController{})

	rec := doJSON(t, s, http.MethodPost, "/order/process", `{"slot":"A1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-RAW_DOUGH cookie must 400")

	store.cookies["A1"].Status = types.CookieRawDough
	rec = doJSON(t, s, http.MethodPost, "/order/process", `{"slot":"A1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, types.KindProcess, store.created[0].Kind)
}

func TestOrderProcessAutoPicksRawDough(t *testing.T) {
	store := newStubStore()
	store.rawSlot = "B3"
	s := newTestServer(store, &stubController{})

	rec := doJSON(t, s, http.MethodPost, "/order/process", `{}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, types.SlotName("B3"), *store.created[0].TargetSlot)

	store.rawErr = types.ErrNoRawDough
	rec = doJSON(t, s, http.MethodPost, "/order/process", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no RAW_DOUGH must 400")
}

func TestMaintenanceResetHasHighestPriority(t *testing.T) {
	store := newStubStore()
	s := newTestServer(store, &stubController{})

	rec := doJSON(t, s, http.MethodPost, "/maintenance/reset", `{}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, types.KindReset, store.created[0].Kind)
	assert.Equal(t, types.PriorityReset, store.created[0].Priority)
}

func TestEmergencyStopAndResume(t *testing.T) {
	ctrl := &stubController{}
	s := newTestServer(newStubStore(), ctrl)

	rec := doJSON(t, s, http.MethodPost, "/maintenance/emergency-stop", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ctrl.stops)

	rec = doJSON(t, s, http.MethodPost, "/maintenance/resume", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ctrl.resumes)
}

func TestMaintenanceRequiresAPIKeyWhenConfigured(t *testing.T) {
	h := APIKeyMiddleware("secret")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/maintenance/reset", nil)
	ctx := ginTestContext(rec, req)
	h(ctx)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/maintenance/reset", nil)
	req.Header.Set("X-API-Key", "secret")
	ctx = ginTestContext(rec, req)
	h(ctx)
	assert.False(t, ctx.IsAborted())
}

func TestHealthReportsDependencies(t *testing.T) {
	store := newStubStore()
	s := newTestServer(store, &stubController{})

	rec := doJSON(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OK   bool              `json:"ok"`
		Deps map[string]string `json:"deps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "ok", resp.Deps["database"])
	assert.Equal(t, "ok", resp.Deps["bus"])
}

func TestInventorySnapshot(t *testing.T) {
	store := newStubStore()
	carrier := int64(3)
	store.slots["C1"] = &types.Slot{Name: "C1", CarrierID: &carrier}
	s := newTestServer(store, &stubController{})

	rec := doJSON(t, s, http.MethodGet, "/inventory", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []types.Slot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(t, slots, 9)
}
