package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/geofence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/notify"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/presence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/resolver"
)

var tashkent = time.FixedZone("UZT", 5*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, tashkent)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Payload
	err  error
}

func (d *recordingDispatcher) Channel() string { return "test" }

func (d *recordingDispatcher) Dispatch(_ context.Context, p notify.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, p)
	return nil
}

// flakySessions fails CloseSession while closeErr is set.
type flakySessions struct {
	*repository.MemorySessionsRepo
	closeErr error
}

func (s *flakySessions) CloseSession(ctx context.Context, sessionID string, upd repository.SessionClose) (bool, error) {
	if s.closeErr != nil {
		return false, s.closeErr
	}
	return s.MemorySessionsRepo.CloseSession(ctx, sessionID, upd)
}

type fixture struct {
	machine    *Machine
	presence   *presence.Manager
	dir        *repository.MemoryDirectory
	sessions   *repository.MemorySessionsRepo
	flaky      *flakySessions
	reminders  *repository.MemoryRemindersRepo
	dispatcher *recordingDispatcher
	clock      *clock.Fake
	civil      *clock.Civil
}

const handle = "5550001"

func setup(t *testing.T, now time.Time) *fixture {
	t.Helper()
	logger := zap.NewNop()

	dir := repository.NewMemoryDirectory()
	dir.PutWorker(domain.Worker{
		WorkerID:       "w-1",
		FullName:       "Aziz",
		HomeBranchID:   "b-1",
		DefaultShift:   domain.ShiftDay,
		Position:       "Cashier",
		ExternalHandle: handle,
	})
	dir.PutWorker(domain.Worker{WorkerID: "w-2", FullName: "Malika", HomeBranchID: "b-1", ExternalHandle: "5550002"})
	dir.PutBranch(domain.Branch{BranchID: "b-1", Name: "Chilanzar", Addresses: []string{"10.0.0.5"}})
	dir.PutShiftDefinition(domain.ShiftDefinition{Code: domain.ShiftDay, StartHour: 9, LateThresholdMinutes: 15})
	dir.PutShiftDefinition(domain.ShiftDefinition{Code: domain.ShiftNight, StartHour: 18, LateThresholdMinutes: 15})

	sessions := repository.NewMemorySessionsRepo()
	flaky := &flakySessions{MemorySessionsRepo: sessions}
	reminders := repository.NewMemoryRemindersRepo()
	fake := clock.NewFake(now)
	civil := clock.CivilIn(tashkent)
	late := resolver.NewLateResolver(dir, nil, logger, nil)
	mgr := presence.NewManager(flaky, late, civil, fake, logger, nil)
	dispatcher := &recordingDispatcher{}

	m := NewMachine(Dependencies{
		Workers:    dir,
		Branches:   dir,
		Sessions:   flaky,
		Reminders:  reminders,
		Geofence:   geofence.NewVerifier(dir, logger),
		Presence:   mgr,
		Dispatcher: dispatcher,
		Payloads:   notify.NewBuilder(notify.DefaultTemplates(), tashkent),
		Civil:      civil,
		Clock:      fake,
		Logger:     logger,
	})
	return &fixture{
		machine:    m,
		presence:   mgr,
		dir:        dir,
		sessions:   sessions,
		flaky:      flaky,
		reminders:  reminders,
		dispatcher: dispatcher,
		clock:      fake,
		civil:      civil,
	}
}

func (f *fixture) checkIn(t *testing.T) *domain.PresenceSession {
	t.Helper()
	s, err := f.presence.Open(context.Background(), presence.OpenRequest{
		WorkerID:     "w-1",
		BranchID:     "b-1",
		ShiftCode:    domain.ShiftDay,
		Verification: domain.VerificationInPerson,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) probe(t *testing.T, addr string) *ProbeResult {
	t.Helper()
	res, err := f.machine.Probe(context.Background(), ProbeRequest{WorkerHandle: handle, ObservedAddress: addr})
	require.NoError(t, err)
	return res
}

func (f *fixture) respond(t *testing.T, reminderID string, rt domain.ResponseType) *RespondResult {
	t.Helper()
	res, err := f.machine.Respond(context.Background(), RespondRequest{WorkerHandle: handle, ReminderID: reminderID, ResponseType: rt})
	require.NoError(t, err)
	return res
}

func TestEndToEnd(t *testing.T) {
	f := setup(t, at(1, 8, 50))
	ctx := context.Background()

	session := f.checkIn(t)
	assert.Equal(t, domain.VerificationInPerson, session.Verification)
	assert.False(t, session.Late)

	f.clock.Set(at(1, 18, 0))
	probe := f.probe(t, "10.0.0.9")
	assert.False(t, probe.Matched)
	assert.Equal(t, "Chilanzar", probe.BranchName)
	assert.True(t, probe.Created)
	assert.Equal(t, domain.ReminderSent, probe.Reminder.Status)

	res := f.respond(t, probe.Reminder.ReminderID, domain.Response2Hours)
	assert.Equal(t, domain.ReminderCompleted, res.Reminder.Status)
	require.NotNil(t, res.Next)
	assert.Equal(t, domain.ReminderScheduled, res.Next.Status)
	assert.True(t, at(1, 20, 0).Equal(res.Next.ScheduledFor))

	f.clock.Set(at(1, 20, 3))
	res = f.respond(t, res.Next.ReminderID, domain.ResponseILeft)
	require.NotNil(t, res.Session)
	assert.False(t, res.Session.IsOpen())
	assert.True(t, at(1, 20, 3).Equal(*res.Session.CheckOutAt))
	assert.Equal(t, 11.2, *res.Session.DurationHours)
	assert.Equal(t, domain.VerificationReminderConfirmed, res.Session.Verification)
	assert.Nil(t, res.Next)

	_, err := f.sessions.GetOpenSession(ctx, "w-1")
	assert.True(t, domain.IsNotFound(err))
	assert.Len(t, f.reminders.All(), 2)
}

func TestProbe_NoDuplicateReminder(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	f.clock.Set(at(1, 17, 0))

	first := f.probe(t, "10.0.0.9")
	second := f.probe(t, "10.0.0.5")

	assert.False(t, second.Created)
	assert.Equal(t, first.Reminder.ReminderID, second.Reminder.ReminderID)
	assert.True(t, second.Matched)
	assert.True(t, second.Reminder.GeofenceMatch)
	assert.Equal(t, "10.0.0.5", second.Reminder.ObservedAddress)
	assert.Len(t, f.reminders.All(), 1)
}

func TestProbe_NoOpenSession(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	_, err := f.machine.Probe(context.Background(), ProbeRequest{WorkerHandle: handle, ObservedAddress: "10.0.0.5"})
	assert.True(t, domain.IsNotFound(err))

	_, err = f.machine.Probe(context.Background(), ProbeRequest{WorkerHandle: "nobody"})
	assert.True(t, domain.IsNotFound(err))
}

func TestProbe_DeliverFlag(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)

	res, err := f.machine.Probe(context.Background(), ProbeRequest{WorkerHandle: handle, ObservedAddress: "10.0.0.5", Deliver: true})
	require.NoError(t, err)
	assert.NoError(t, res.DeliveryError)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, handle, f.dispatcher.sent[0].WorkerHandle)

	f.dispatcher.err = errors.New("bot unreachable")
	res, err = f.machine.Probe(context.Background(), ProbeRequest{WorkerHandle: handle, ObservedAddress: "10.0.0.5", Deliver: true})
	require.NoError(t, err)
	assert.True(t, domain.IsDeliveryFailure(res.DeliveryError))
	assert.NotNil(t, res.Reminder)
}

func TestRespond_45MinCreatesExactlyOneRow(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	f.clock.Set(at(1, 17, 0))
	probe := f.probe(t, "10.0.0.5")

	f.clock.Set(at(1, 17, 10))
	res := f.respond(t, probe.Reminder.ReminderID, domain.Response45Min)

	all := f.reminders.All()
	require.Len(t, all, 2)
	assert.Equal(t, domain.ReminderCompleted, all[0].Status)
	require.NotNil(t, all[0].ResponseType)
	assert.Equal(t, domain.Response45Min, *all[0].ResponseType)
	assert.Equal(t, domain.ReminderScheduled, all[1].Status)
	assert.True(t, at(1, 17, 55).Equal(all[1].ScheduledFor))
	assert.Equal(t, domain.ShiftDay, all[1].ShiftCode)
	assert.Equal(t, res.Next.ReminderID, all[1].ReminderID)
}

func TestRespond_AtWorkMatches45Min(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	f.clock.Set(at(1, 17, 0))
	probe := f.probe(t, "10.0.0.5")

	res := f.respond(t, probe.Reminder.ReminderID, domain.ResponseAtWork)
	require.NotNil(t, res.Next)
	assert.True(t, at(1, 17, 45).Equal(res.Next.ScheduledFor))
}

func TestRespond_AllDayIsTerminalSnooze(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	f.clock.Set(at(1, 17, 0))
	probe := f.probe(t, "10.0.0.5")

	res := f.respond(t, probe.Reminder.ReminderID, domain.ResponseAllDay)
	assert.Nil(t, res.Next)
	require.NotNil(t, res.NextPromptAt)
	assert.True(t, time.Date(2024, 1, 1, 23, 59, 59, 0, tashkent).Equal(*res.NextPromptAt))

	all := f.reminders.All()
	require.Len(t, all, 1)
	assert.Equal(t, domain.ResponseAllDay, *all[0].ResponseType)
	assert.True(t, res.Session.IsOpen())
}

func TestRespond_ILeftClosesAtResponseTime(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	session := f.checkIn(t)
	f.clock.Set(at(1, 18, 30))
	probe := f.probe(t, "10.0.0.5")

	res := f.respond(t, probe.Reminder.ReminderID, domain.ResponseILeft)
	assert.Nil(t, res.Next)
	assert.Nil(t, res.NextPromptAt)

	stored, err := f.sessions.GetSession(context.Background(), session.SessionID)
	require.NoError(t, err)
	require.NotNil(t, stored.CheckOutAt)
	assert.True(t, at(1, 18, 30).Equal(*stored.CheckOutAt))
	assert.Equal(t, 9.5, *stored.DurationHours)
	assert.Equal(t, domain.SessionClosed, stored.Status)
	assert.Len(t, f.reminders.All(), 1)
}

func TestRespond_CompletedReminderConflicts(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	f.clock.Set(at(1, 17, 0))
	probe := f.probe(t, "10.0.0.5")
	f.respond(t, probe.Reminder.ReminderID, domain.Response45Min)

	_, err := f.machine.Respond(context.Background(), RespondRequest{
		WorkerHandle: handle,
		ReminderID:   probe.Reminder.ReminderID,
		ResponseType: domain.Response45Min,
	})
	require.True(t, domain.IsConflict(err))
	appErr, _ := domain.AsAppError(err)
	require.NotNil(t, appErr.RecordedResponse)
	assert.Equal(t, domain.Response45Min, *appErr.RecordedResponse)

	// the duplicate did not escalate again
	assert.Len(t, f.reminders.All(), 2)
}

func TestRespond_ImplicitLatestReminder(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	f.clock.Set(at(1, 17, 0))
	probe := f.probe(t, "10.0.0.5")
	first := f.respond(t, probe.Reminder.ReminderID, domain.Response45Min)

	res := f.respond(t, "", domain.Response2Hours)
	assert.Equal(t, first.Next.ReminderID, res.Reminder.ReminderID)
}

func TestRespond_Validation(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	probe := f.probe(t, "10.0.0.5")

	_, err := f.machine.Respond(context.Background(), RespondRequest{WorkerHandle: handle, ReminderID: probe.Reminder.ReminderID, ResponseType: "later"})
	assert.True(t, domain.IsValidation(err))

	_, err = f.machine.Respond(context.Background(), RespondRequest{WorkerHandle: "5550002", ReminderID: probe.Reminder.ReminderID, ResponseType: domain.Response45Min})
	assert.True(t, domain.IsNotFound(err))

	// nothing was mutated
	all := f.reminders.All()
	require.Len(t, all, 1)
	assert.Equal(t, domain.ReminderSent, all[0].Status)
}

func TestRespond_ILeftAfterAdminCheckout(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	session := f.checkIn(t)
	f.clock.Set(at(1, 18, 0))
	probe := f.probe(t, "10.0.0.5")

	_, err := f.presence.Close(context.Background(), presence.CloseRequest{SessionID: session.SessionID, CheckOutTime: clock.TimeOfDay{Hour: 18}})
	require.NoError(t, err)

	res := f.respond(t, probe.Reminder.ReminderID, domain.ResponseILeft)
	assert.True(t, res.SessionAlreadyClosed)
	require.NotNil(t, res.Session)
	assert.Equal(t, 9.0, *res.Session.DurationHours)
}

func TestRespond_FollowUpShiftLabelFallback(t *testing.T) {
	f := setup(t, at(1, 16, 0))
	ctx := context.Background()

	// a legacy session row without a shift code
	legacy := &domain.PresenceSession{
		SessionID: "s-legacy",
		WorkerID:  "w-1",
		Date:      at(1, 0, 0),
		CheckInAt: at(1, 16, 0),
		BranchID:  "b-1",
		Status:    domain.SessionOpen,
		CreatedAt: at(1, 16, 0),
	}
	ok, err := f.sessions.InsertOpenSession(ctx, legacy)
	require.NoError(t, err)
	require.True(t, ok)

	probe := f.probe(t, "10.0.0.5")
	assert.Equal(t, domain.ShiftCode(""), probe.Reminder.ShiftCode)

	res := f.respond(t, probe.Reminder.ReminderID, domain.Response45Min)
	assert.Equal(t, domain.ShiftNight, res.Next.ShiftCode)
}

func TestDeliver(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	f.clock.Set(at(1, 17, 0))
	probe := f.probe(t, "10.0.0.5")
	res := f.respond(t, probe.Reminder.ReminderID, domain.Response45Min)
	ctx := context.Background()

	f.clock.Set(at(1, 17, 45))
	f.dispatcher.err = errors.New("timeout")
	err := f.machine.Deliver(ctx, res.Next.ReminderID)
	assert.True(t, domain.IsDeliveryFailure(err))
	rem, err := f.reminders.GetReminder(ctx, res.Next.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderScheduled, rem.Status)

	f.dispatcher.err = nil
	require.NoError(t, f.machine.Deliver(ctx, res.Next.ReminderID))
	rem, err = f.reminders.GetReminder(ctx, res.Next.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderSent, rem.Status)
	assert.True(t, at(1, 17, 45).Equal(*rem.SentAt))
	require.Len(t, f.dispatcher.sent, 1)
	assert.Len(t, f.dispatcher.sent[0].Actions, 5)

	err = f.machine.Deliver(ctx, probe.Reminder.ReminderID)
	assert.True(t, domain.IsConflict(err))
}

func TestRespond_ILeftCloseFailureKeepsReminderActive(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	session := f.checkIn(t)
	f.clock.Set(at(1, 18, 0))
	probe := f.probe(t, "10.0.0.5")
	ctx := context.Background()

	f.flaky.closeErr = domain.Unavailable("close presence session", errors.New("db down"))
	_, err := f.machine.Respond(ctx, RespondRequest{WorkerHandle: handle, ReminderID: probe.Reminder.ReminderID, ResponseType: domain.ResponseILeft})
	require.True(t, domain.IsUnavailable(err))

	rem, err := f.reminders.GetReminder(ctx, probe.Reminder.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderSent, rem.Status)
	assert.Nil(t, rem.ResponseType)
	stored, err := f.sessions.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.True(t, stored.IsOpen())

	// storage is back: the same answer goes through
	f.flaky.closeErr = nil
	f.clock.Set(at(1, 18, 5))
	res := f.respond(t, probe.Reminder.ReminderID, domain.ResponseILeft)
	assert.False(t, res.SessionAlreadyClosed)
	require.NotNil(t, res.Session.CheckOutAt)
	assert.True(t, at(1, 18, 5).Equal(*res.Session.CheckOutAt))
	assert.Equal(t, domain.ReminderCompleted, res.Reminder.Status)
	assert.Equal(t, domain.ResponseILeft, *res.Reminder.ResponseType)
}

func TestRespond_ReverifiesObservedAddress(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	f.clock.Set(at(1, 17, 0))
	probe := f.probe(t, "10.0.0.5")
	require.True(t, probe.Matched)

	away := "10.0.0.9"
	res, err := f.machine.Respond(context.Background(), RespondRequest{
		WorkerHandle:    handle,
		ReminderID:      probe.Reminder.ReminderID,
		ResponseType:    domain.Response45Min,
		ObservedAddress: &away,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", res.Reminder.ObservedAddress)
	assert.False(t, res.Reminder.GeofenceMatch)
	require.NotNil(t, res.Next)
	assert.Equal(t, "10.0.0.9", res.Next.ObservedAddress)
	assert.False(t, res.Next.GeofenceMatch)

	back := "10.0.0.5"
	res, err = f.machine.Respond(context.Background(), RespondRequest{
		WorkerHandle:    handle,
		ReminderID:      res.Next.ReminderID,
		ResponseType:    domain.Response2Hours,
		ObservedAddress: &back,
	})
	require.NoError(t, err)
	assert.True(t, res.Reminder.GeofenceMatch)
	assert.True(t, res.Next.GeofenceMatch)
}

func TestRespond_WithoutAddressKeepsProbeVerification(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	f.checkIn(t)
	f.clock.Set(at(1, 17, 0))
	probe := f.probe(t, "10.0.0.9")

	res := f.respond(t, probe.Reminder.ReminderID, domain.Response45Min)
	assert.Equal(t, "10.0.0.9", res.Reminder.ObservedAddress)
	assert.False(t, res.Reminder.GeofenceMatch)
}

func TestDeliver_ClosedSessionResolvesReminder(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	session := f.checkIn(t)
	f.clock.Set(at(1, 17, 0))
	probe := f.probe(t, "10.0.0.5")
	res := f.respond(t, probe.Reminder.ReminderID, domain.Response45Min)
	ctx := context.Background()

	_, err := f.presence.Close(ctx, presence.CloseRequest{SessionID: session.SessionID, CheckOutTime: clock.TimeOfDay{Hour: 17, Minute: 30}})
	require.NoError(t, err)

	f.clock.Set(at(1, 17, 45))
	err = f.machine.Deliver(ctx, res.Next.ReminderID)
	require.True(t, domain.IsConflict(err))
	assert.Empty(t, f.dispatcher.sent)

	rem, err := f.reminders.GetReminder(ctx, res.Next.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderCompleted, rem.Status)
	assert.Equal(t, domain.ResponseILeft, *rem.ResponseType)

	due, err := f.reminders.ListDue(ctx, at(1, 18, 0), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestCloseSession_ResolvesActiveReminder(t *testing.T) {
	f := setup(t, at(1, 9, 0))
	session := f.checkIn(t)
	f.clock.Set(at(1, 18, 0))
	probe := f.probe(t, "10.0.0.5")

	closed, err := f.machine.CloseSession(context.Background(), presence.CloseRequest{
		SessionID:    session.SessionID,
		CheckOutTime: clock.TimeOfDay{Hour: 18},
	})
	require.NoError(t, err)
	assert.Equal(t, 9.0, *closed.DurationHours)

	rem, err := f.reminders.GetReminder(context.Background(), probe.Reminder.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderCompleted, rem.Status)
	assert.Equal(t, domain.ResponseILeft, *rem.ResponseType)
}

func TestNextPromptAt(t *testing.T) {
	civil := clock.CivilIn(tashkent)
	now := at(1, 10, 0)

	for rt, want := range map[domain.ResponseType]time.Time{
		domain.Response45Min:  at(1, 10, 45),
		domain.ResponseAtWork: at(1, 10, 45),
		domain.Response2Hours: at(1, 12, 0),
		domain.ResponseAllDay: time.Date(2024, 1, 1, 23, 59, 59, 0, tashkent),
	} {
		got, ok := NextPromptAt(civil, rt, now)
		assert.True(t, ok, rt)
		assert.True(t, want.Equal(got), rt)
	}
	_, ok := NextPromptAt(civil, domain.ResponseILeft, now)
	assert.False(t, ok)
}
