package executor

import (
	"context"
	"sync"

	"github.com/soham10i/stf-hw/internal/types"
)

// stubStore is an in-memory Store for executor tests, in the spirit of the
// repository stubs used across the service tests.
type stubStore struct {
	mu sync.Mutex

	queue      []*types.Command
	progress   []string
	completed  []int64
	failed     map[int64]string
	alerts     []types.Alert
	logs       []types.LogEntry
	blocked    bool
	inProgress []int64

	slots   map[types.SlotName]*types.Slot
	cookies map[types.SlotName]*types.Cookie
	locked  map[int64]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		failed:  make(map[int64]string),
		slots:   make(map[types.SlotName]*types.Slot),
		cookies: make(map[types.SlotName]*types.Cookie),
		locked:  make(map[int64]bool),
	}
}

func (s *stubStore) ClaimNextCommand(_ context.Context, executorID string) (*types.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked || len(s.queue) == 0 {
		return nil, types.ErrNotFound
	}
	cmd := s.queue[0]
	s.queue = s.queue[1:]
	cmd.Status = types.StatusInProgress
	cmd.ExecutorID = executorID
	s.inProgress = append(s.inProgress, cmd.ID)
	return cmd, nil
}

func (s *stubStore) GetCommand(_ context.Context, id int64) (*types.Command, error) {
	return &types.Command{ID: id}, nil
}

func (s *stubStore) RecordProgress(_ context.Context, id int64, phase, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, phase+" "+detail)
	return nil
}

func (s *stubStore) CompleteStore(_ context.Context, id int64, _ types.SlotName, _ string, _ types.CookieFlavor) error {
	return s.complete(id)
}

func (s *stubStore) CompleteRetrieve(_ context.Context, id int64, _ types.SlotName, _ int64) error {
	return s.complete(id)
}

func (s *stubStore) CompleteProcess(_ context.Context, id int64, _ types.SlotName, _ string, _ int64) error {
	return s.complete(id)
}

func (s *stubStore) CompleteSimple(_ context.Context, id int64, _ string) error {
	return s.complete(id)
}

func (s *stubStore) complete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	return nil
}

func (s *stubStore) FailCommand(_ context.Context, id int64, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = result
	return nil
}

func (s *stubStore) FailAllInProgress(_ context.Context, reason string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.inProgress
	s.inProgress = nil
	for _, id := range ids {
		s.failed[id] = reason
	}
	return ids, nil
}

func (s *stubStore) SetClaimsBlocked(_ context.Context, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = blocked
	return nil
}

func (s *stubStore) GetSlot(_ context.Context, name types.SlotName) (*types.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.slots[name]; ok {
		return slot, nil
	}
	return nil, types.ErrNotFound
}

func (s *stubStore) CookieAtSlot(_ context.Context, name types.SlotName) (*types.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cookies[name]; ok {
		return c, nil
	}
	return nil, types.ErrSlotEmpty
}

func (s *stubStore) LockCarrier(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked[id] = true
	return nil
}

func (s *stubStore) ReleaseCarrier(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked[id] = false
	return nil
}

func (s *stubStore) InsertAlert(_ context.Context, a *types.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *a)
	return nil
}

func (s *stubStore) InsertLog(_ context.Context, e types.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, e)
	return nil
}
