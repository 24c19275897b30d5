package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/notify"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
)

var tashkent = time.FixedZone("UZT", 5*60*60)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, tashkent)
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []notify.Payload
	err  error
}

func (d *fakeDispatcher) Channel() string { return "fake" }

func (d *fakeDispatcher) Dispatch(_ context.Context, p notify.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, p)
	return nil
}

func (d *fakeDispatcher) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type testEngine struct {
	*Engine
	dir        *repository.MemoryDirectory
	reminders  *repository.MemoryRemindersRepo
	dispatcher *fakeDispatcher
	fake       *clock.Fake
}

func newTestEngine(t *testing.T, now time.Time) *testEngine {
	t.Helper()
	dir := repository.NewMemoryDirectory()
	dir.PutWorker(domain.Worker{
		WorkerID:       "w-day",
		FullName:       "Dilnoza",
		HomeBranchID:   "b-yunusabad",
		Position:       "Community manager",
		ExternalHandle: "7001",
	})
	dir.PutWorker(domain.Worker{
		WorkerID:       "w-night",
		FullName:       "Rustam",
		HomeBranchID:   "b-chilanzar",
		Position:       "Night administrator",
		ExternalHandle: "7002",
	})
	dir.PutWorker(domain.Worker{WorkerID: "w-nobranch", FullName: "Temp", ExternalHandle: "7003"})
	dir.PutBranch(domain.Branch{BranchID: "b-yunusabad", Name: "Yunusabad", Addresses: []string{"203.0.113.10", "203.0.113.11"}})
	dir.PutBranch(domain.Branch{BranchID: "b-chilanzar", Name: "Chilanzar", Addresses: []string{"198.51.100.7"}})
	dir.PutShiftDefinition(domain.ShiftDefinition{Code: domain.ShiftDay, StartHour: 9, LateThresholdMinutes: 15})
	dir.PutShiftDefinition(domain.ShiftDefinition{Code: domain.ShiftNight, StartHour: 18, LateThresholdMinutes: 15})

	reminders := repository.NewMemoryRemindersRepo()
	dispatcher := &fakeDispatcher{}
	fake := clock.NewFake(now)

	e := NewEngine(EngineDeps{
		Workers:    dir,
		Branches:   dir,
		Shifts:     dir,
		Sessions:   repository.NewMemorySessionsRepo(),
		Reminders:  reminders,
		Dispatcher: dispatcher,
		Templates:  notify.DefaultTemplates(),
		Civil:      clock.CivilIn(tashkent),
		Clock:      fake,
		Logger:     zap.NewNop(),
	})
	return &testEngine{Engine: e, dir: dir, reminders: reminders, dispatcher: dispatcher, fake: fake}
}
