package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/broadcast"
	"github.com/soham10i/stf-hw/internal/config"
	"github.com/soham10i/stf-hw/internal/types"
)

// stubStore backs handler tests without a database.
type stubStore struct {
	created  []*types.Command
	slots    map[types.SlotName]*types.Slot
	cookies  map[types.SlotName]*types.Cookie
	emptyErr error
	rawErr   error
	rawSlot  types.SlotName
	states   []types.DeviceSnapshot
	alerts   []types.Alert
	pingErr  error
}

func newStubStore() *stubStore {
	return &stubStore{
		slots:   make(map[types.SlotName]*types.Slot),
		cookies: make(map[types.SlotName]*types.Cookie),
	}
}

func (s *stubStore) CreateCommand(_ context.Context, cmd *types.Command) error {
	cmd.ID = int64(len(s.created) + 1)
	cmd.Status = types.StatusPending
	s.created = append(s.created, cmd)
	return nil
}

func (s *stubStore) GetCommand(_ context.Context, id int64) (*types.Command, error) {
	for _, cmd := range s.created {
		if cmd.ID == id {
			return cmd, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *stubStore) ListCommands(_ context.Context, _ int) ([]types.Command, error) {
	out := make([]types.Command, 0, len(s.created))
	for _, c := range s.created {
		out = append(out, *c)
	}
	return out, nil
}

func (s *stubStore) GetSlots(_ context.Context) ([]types.Slot, error) {
	var out []types.Slot
	for _, name := range types.SlotNames() {
		if slot, ok := s.slots[name]; ok {
			out = append(out, *slot)
		} else {
			out = append(out, types.Slot{Name: name})
		}
	}
	return out, nil
}

func (s *stubStore) GetSlot(_ context.Context, name types.SlotName) (*types.Slot, error) {
	if slot, ok := s.slots[name]; ok {
		return slot, nil
	}
	return &types.Slot{Name: name}, nil
}

func (s *stubStore) FindEmptySlot(_ context.Context) (types.SlotName, error) {
	if s.emptyErr != nil {
		return "", s.emptyErr
	}
	for _, name := range types.SlotNames() {
		if slot, ok := s.slots[name]; !ok || !slot.Occupied() {
			return name, nil
		}
	}
	return "", types.ErrWarehouseFull
}

func (s *stubStore) FindRawDoughSlot(_ context.Context) (types.SlotName, error) {
	if s.rawErr != nil {
		return "", s.rawErr
	}
	return s.rawSlot, nil
}

func (s *stubStore) CookieAtSlot(_ context.Context, name types.SlotName) (*types.Cookie, error) {
	if c, ok := s.cookies[name]; ok {
		return c, nil
	}
	return nil, types.ErrSlotEmpty
}

func (s *stubStore) GetHardwareStates(_ context.Context) ([]types.DeviceSnapshot, error) {
	return s.states, nil
}

func (s *stubStore) ListAlerts(_ context.Context, _ int) ([]types.Alert, error) {
	return s.alerts, nil
}

func (s *stubStore) AcknowledgeAlert(_ context.Context, id int64, _ string) error {
	for i := range s.alerts {
		if s.alerts[i].ID == id && !s.alerts[i].Acknowledged {
			s.alerts[i].Acknowledged = true
			return nil
		}
	}
	return types.ErrNotFound
}

func (s *stubStore) ListTelemetry(context.Context, types.DeviceID, time.Time, time.Time, int) ([]types.TelemetrySample, error) {
	return nil, nil
}

func (s *stubStore) ListEnergy(context.Context, types.DeviceID, time.Time, time.Time, int) ([]types.EnergySample, error) {
	return nil, nil
}

func (s *stubStore) Ping(context.Context) error { return s.pingErr }

// stubController records maintenance actions.
type stubController struct {
	stops   int
	resumes int
}

func (c *stubController) EmergencyStop(context.Context) { c.stops++ }
func (c *stubController) Resume(context.Context) error {
	c.resumes++
	return nil
}

type stubBusHealth struct{ connected bool }

func (b stubBusHealth) Connected() bool { return b.connected }

func ginTestContext(rec *httptest.ResponseRecorder, req *http.Request) *gin.Context {
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = req
	return ctx
}

func newTestServer(store *stubStore, ctrl *stubController) *Server {
	return NewServer(
		config.ServerConfig{HTTPPort: 0},
		store, ctrl, stubBusHealth{connected: true},
		broadcast.NewHub(16, zap.NewNop()),
		zap.NewNop(),
	)
}
