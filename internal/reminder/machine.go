// Package reminder runs the checkout reminder state machine:
// scheduled → sent → completed, with append-only escalation.
package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/geofence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/metrics"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/notify"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/presence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
)

// Dependencies wired into a Machine.
type Dependencies struct {
	Workers    repository.WorkersRepository
	Branches   repository.BranchesRepository
	Sessions   repository.SessionsRepository
	Reminders  repository.RemindersRepository
	Geofence   *geofence.Verifier
	Presence   *presence.Manager
	Dispatcher notify.Dispatcher
	Payloads   *notify.Builder
	Civil      *clock.Civil
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Machine is shared by every entry point (mini-app, bot webhook, sweeper).
type Machine struct {
	workers    repository.WorkersRepository
	branches   repository.BranchesRepository
	sessions   repository.SessionsRepository
	reminders  repository.RemindersRepository
	geofence   *geofence.Verifier
	presence   *presence.Manager
	dispatcher notify.Dispatcher
	payloads   *notify.Builder
	civil      *clock.Civil
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewMachine(d Dependencies) *Machine {
	return &Machine{
		workers:    d.Workers,
		branches:   d.Branches,
		sessions:   d.Sessions,
		reminders:  d.Reminders,
		geofence:   d.Geofence,
		presence:   d.Presence,
		dispatcher: d.Dispatcher,
		payloads:   d.Payloads,
		civil:      d.Civil,
		clock:      d.Clock,
		logger:     d.Logger,
		metrics:    d.Metrics,
	}
}

// ProbeRequest an "are you still here" check.
type ProbeRequest struct {
	WorkerHandle    string
	SessionID       string // optional; defaults to the worker's open session
	ObservedAddress string
	Deliver         bool // also dispatch the prompt
}

// ProbeResult of a probe. DeliveryError is set when Deliver was requested
// and dispatch failed; the reminder is persisted regardless.
type ProbeResult struct {
	Matched         bool
	BranchID        string
	BranchName      string
	SessionID       string
	Reminder        *domain.CheckoutReminder
	Created         bool
	ObservedAddress string
	DeliveryError   error
}

// Probe verifies location and creates the session's active reminder in sent
// state, or refreshes only the verification fields of the existing one.
func (m *Machine) Probe(ctx context.Context, req ProbeRequest) (*ProbeResult, error) {
	worker, err := m.workerByHandle(ctx, req.WorkerHandle)
	if err != nil {
		return nil, err
	}
	session, err := m.openSessionFor(ctx, worker, req.SessionID)
	if err != nil {
		return nil, err
	}

	fence, err := m.geofence.Verify(ctx, req.ObservedAddress)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	candidate := &domain.CheckoutReminder{
		ReminderID:      uuid.New().String(),
		WorkerID:        worker.WorkerID,
		SessionID:       session.SessionID,
		ShiftCode:       session.ShiftCode,
		Status:          domain.ReminderSent,
		ScheduledFor:    now,
		SentAt:          &now,
		ObservedAddress: fence.ObservedAddress,
		GeofenceMatch:   fence.Matched,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	stored, created, err := m.reminders.UpsertActiveReminder(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if created {
		m.metrics.RecordReminderCreated("probe")
	}

	res := &ProbeResult{
		Matched:         fence.Matched,
		SessionID:       session.SessionID,
		Reminder:        stored,
		Created:         created,
		ObservedAddress: fence.ObservedAddress,
	}
	if fence.Matched {
		res.BranchID = fence.Branch.BranchID
		res.BranchName = fence.Branch.Name
	} else {
		res.BranchID = session.BranchID
		if b, berr := m.branches.GetBranch(ctx, session.BranchID); berr == nil {
			res.BranchName = b.Name
		}
	}

	m.logger.Info("Presence probe",
		zap.String("worker_id", worker.WorkerID),
		zap.String("session_id", session.SessionID),
		zap.String("reminder_id", stored.ReminderID),
		zap.Bool("created", created),
		zap.Bool("geofence_match", fence.Matched),
		zap.String("observed_address", fence.ObservedAddress),
	)

	if req.Deliver {
		res.DeliveryError = m.deliver(ctx, *worker, *session, stored, now)
	}
	return res, nil
}

// RespondRequest a worker's answer to a prompt.
type RespondRequest struct {
	WorkerHandle    string
	ReminderID      string // optional; defaults to the open session's active reminder
	SessionID       string // optional
	ResponseType    domain.ResponseType
	ObservedAddress *string // re-verified; nil keeps the probe's address and match
}

// RespondResult of a response. Next is the follow-up reminder, if any;
// NextPromptAt is also set for the all_day snooze, which has no row.
type RespondResult struct {
	Reminder             *domain.CheckoutReminder
	Session              *domain.PresenceSession
	Next                 *domain.CheckoutReminder
	NextPromptAt         *time.Time
	SessionAlreadyClosed bool
}

// Respond closes the session and completes the reminder (i_left), or
// completes the reminder and appends the next one. A completed reminder is never reprocessed:
// answering it again yields Conflict carrying the recorded response.
func (m *Machine) Respond(ctx context.Context, req RespondRequest) (*RespondResult, error) {
	rt, err := domain.ParseResponseType(string(req.ResponseType))
	if err != nil {
		return nil, err
	}
	worker, err := m.workerByHandle(ctx, req.WorkerHandle)
	if err != nil {
		return nil, err
	}
	rem, err := m.targetReminder(ctx, worker, req)
	if err != nil {
		return nil, err
	}
	if !rem.Status.IsActive() {
		return nil, m.alreadyAnswered(rem)
	}

	resp := repository.ReminderResponse{ResponseType: rt, ReceivedAt: m.clock.Now()}
	if req.ObservedAddress != nil {
		// address and match always change together
		fence, err := m.geofence.Verify(ctx, *req.ObservedAddress)
		if err != nil {
			return nil, err
		}
		resp.ObservedAddress = &fence.ObservedAddress
		resp.GeofenceMatch = &fence.Matched
	}
	now := resp.ReceivedAt

	res := &RespondResult{}
	policy := responsePolicies[rt]
	if policy.closesSession {
		// the session closes before the reminder completes so a failed close
		// leaves the reminder answerable
		if err := m.closeForResponse(ctx, rem, now, res); err != nil {
			return nil, err
		}
	}

	completed, ok, err := m.reminders.CompleteReminder(ctx, rem.ReminderID, resp)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost the race to a concurrent delivery of the same answer
		latest, gerr := m.reminders.GetReminder(ctx, rem.ReminderID)
		if gerr != nil {
			return nil, gerr
		}
		return nil, m.alreadyAnswered(latest)
	}
	m.metrics.RecordReminderResponse(string(rt))
	m.logger.Info("Reminder answered",
		zap.String("reminder_id", completed.ReminderID),
		zap.String("session_id", completed.SessionID),
		zap.String("worker_id", worker.WorkerID),
		zap.String("response_type", string(rt)),
		zap.Bool("geofence_match", completed.GeofenceMatch),
	)

	res.Reminder = completed
	if policy.closesSession {
		return res, nil
	}

	session, err := m.sessions.GetSession(ctx, completed.SessionID)
	if err != nil {
		return nil, err
	}
	res.Session = session

	next, _ := NextPromptAt(m.civil, rt, now)
	res.NextPromptAt = &next
	if !policy.schedulesFollowUp() {
		return res, nil
	}
	if !session.IsOpen() {
		m.logger.Info("Session closed, no follow-up reminder",
			zap.String("session_id", session.SessionID),
			zap.String("reminder_id", completed.ReminderID),
		)
		return res, nil
	}

	follow, err := m.scheduleFollowUp(ctx, completed, session, next, now)
	if err != nil {
		return nil, err
	}
	res.Next = follow
	return res, nil
}

// closeForResponse closes the reminder's session at now. An already closed
// session is reported on res, not as an error.
func (m *Machine) closeForResponse(ctx context.Context, rem *domain.CheckoutReminder, now time.Time, res *RespondResult) error {
	session, err := m.presence.CloseAt(ctx, rem.SessionID, now, domain.VerificationReminderConfirmed)
	switch {
	case err == nil:
		res.Session = session
	case domain.IsConflict(err):
		m.logger.Info("Session already closed when worker confirmed leaving",
			zap.String("session_id", rem.SessionID),
			zap.String("reminder_id", rem.ReminderID),
		)
		res.SessionAlreadyClosed = true
		if s, gerr := m.sessions.GetSession(ctx, rem.SessionID); gerr == nil {
			res.Session = s
		}
	default:
		return err
	}
	return nil
}

func (m *Machine) scheduleFollowUp(ctx context.Context, prev *domain.CheckoutReminder, session *domain.PresenceSession, at, now time.Time) (*domain.CheckoutReminder, error) {
	follow := &domain.CheckoutReminder{
		ReminderID:      uuid.New().String(),
		WorkerID:        prev.WorkerID,
		SessionID:       prev.SessionID,
		ShiftCode:       m.labelShift(prev, session),
		Status:          domain.ReminderScheduled,
		ScheduledFor:    at,
		ObservedAddress: prev.ObservedAddress,
		GeofenceMatch:   prev.GeofenceMatch,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	inserted, err := m.reminders.InsertScheduledReminder(ctx, follow)
	if err != nil {
		return nil, err
	}
	if !inserted {
		existing, err := m.reminders.GetActiveReminder(ctx, prev.SessionID)
		if err != nil {
			return nil, err
		}
		m.logger.Info("Active reminder already exists, follow-up not created",
			zap.String("session_id", prev.SessionID),
			zap.String("existing_reminder_id", existing.ReminderID),
		)
		return existing, nil
	}
	m.metrics.RecordReminderCreated("escalation")
	return follow, nil
}

// labelShift reminder shift code, then session shift code, then the
// 15:30 check-in heuristic. Only labels the row.
func (m *Machine) labelShift(prev *domain.CheckoutReminder, session *domain.PresenceSession) domain.ShiftCode {
	if prev.ShiftCode != "" {
		return prev.ShiftCode
	}
	if session.ShiftCode != "" {
		return session.ShiftCode
	}
	return shiftFromCheckIn(m.civil, session.CheckInAt)
}

// Deliver dispatches the prompt for an active reminder and marks it sent.
// A dispatch failure leaves the reminder untouched and returns DeliveryFailure.
// A reminder of a closed session is completed as i_left and yields Conflict.
func (m *Machine) Deliver(ctx context.Context, reminderID string) error {
	rem, err := m.reminders.GetReminder(ctx, reminderID)
	if err != nil {
		return err
	}
	if !rem.Status.IsActive() {
		return domain.Conflictf("reminder %s is already completed", reminderID)
	}
	session, err := m.sessions.GetSession(ctx, rem.SessionID)
	if err != nil {
		return err
	}
	if !session.IsOpen() {
		m.resolveClosed(ctx, rem)
		return domain.Conflictf("session %s is closed", session.SessionID)
	}
	worker, err := m.workers.GetWorker(ctx, rem.WorkerID)
	if err != nil {
		return err
	}
	return m.deliver(ctx, *worker, *session, rem, m.clock.Now())
}

func (m *Machine) deliver(ctx context.Context, worker domain.Worker, session domain.PresenceSession, rem *domain.CheckoutReminder, now time.Time) error {
	payload := m.payloads.Build(worker, session, *rem, now)
	channel := m.dispatcher.Channel()

	err := m.dispatcher.Dispatch(ctx, payload)
	m.metrics.RecordDispatch(channel, err)
	if err != nil {
		m.logger.Error("Checkout prompt dispatch failed",
			zap.String("reminder_id", rem.ReminderID),
			zap.String("worker_handle", worker.ExternalHandle),
			zap.String("channel", channel),
			zap.Error(err),
		)
		return domain.DeliveryFailure(channel, err)
	}

	ok, err := m.reminders.MarkSent(ctx, rem.ReminderID, now)
	if err != nil {
		m.logger.Error("Prompt delivered but reminder not marked sent",
			zap.String("reminder_id", rem.ReminderID),
			zap.Error(err),
		)
		return err
	}
	if !ok {
		m.logger.Info("Reminder answered while its prompt was in flight", zap.String("reminder_id", rem.ReminderID))
	}
	return nil
}

// CloseSession is the administrative checkout: it closes the session and
// resolves the session's active reminder as i_left.
func (m *Machine) CloseSession(ctx context.Context, req presence.CloseRequest) (*domain.PresenceSession, error) {
	session, err := m.presence.Close(ctx, req)
	if err != nil {
		return nil, err
	}
	rem, err := m.reminders.GetActiveReminder(ctx, session.SessionID)
	if err != nil {
		if !domain.IsNotFound(err) {
			m.logger.Warn("Could not load active reminder of closed session",
				zap.String("session_id", session.SessionID),
				zap.Error(err),
			)
		}
		return session, nil
	}
	m.resolveClosed(ctx, rem)
	return session, nil
}

// resolveClosed completes an active reminder of a closed session as i_left
// so it is neither delivered nor listed as due again.
func (m *Machine) resolveClosed(ctx context.Context, rem *domain.CheckoutReminder) {
	if _, _, err := m.reminders.CompleteReminder(ctx, rem.ReminderID, repository.ReminderResponse{
		ResponseType: domain.ResponseILeft,
		ReceivedAt:   m.clock.Now(),
	}); err != nil {
		m.logger.Warn("Could not resolve reminder of closed session",
			zap.String("reminder_id", rem.ReminderID),
			zap.String("session_id", rem.SessionID),
			zap.Error(err),
		)
	}
}

func (m *Machine) alreadyAnswered(rem *domain.CheckoutReminder) error {
	m.metrics.RecordConflict("respond_reminder")
	conflict := domain.Conflictf("reminder %s was already answered", rem.ReminderID)
	conflict.RecordedResponse = rem.ResponseType
	return conflict
}

func (m *Machine) workerByHandle(ctx context.Context, handle string) (*domain.Worker, error) {
	if handle == "" {
		return nil, domain.Validationf("worker handle is required")
	}
	return m.workers.GetWorkerByHandle(ctx, handle)
}

// openSessionFor returns the explicit session when it belongs to worker and
// is open, otherwise the worker's open session.
func (m *Machine) openSessionFor(ctx context.Context, worker *domain.Worker, sessionID string) (*domain.PresenceSession, error) {
	if sessionID == "" {
		return m.sessions.GetOpenSession(ctx, worker.WorkerID)
	}
	s, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.WorkerID != worker.WorkerID {
		return nil, domain.NotFoundf("session %s not found", sessionID)
	}
	if !s.IsOpen() {
		return nil, domain.Conflictf("session %s is already closed", sessionID)
	}
	return s, nil
}

func (m *Machine) targetReminder(ctx context.Context, worker *domain.Worker, req RespondRequest) (*domain.CheckoutReminder, error) {
	if req.ReminderID == "" {
		session, err := m.openSessionFor(ctx, worker, req.SessionID)
		if err != nil {
			return nil, err
		}
		return m.reminders.GetActiveReminder(ctx, session.SessionID)
	}
	rem, err := m.reminders.GetReminder(ctx, req.ReminderID)
	if err != nil {
		return nil, err
	}
	if rem.WorkerID != worker.WorkerID {
		return nil, domain.NotFoundf("reminder %s not found", req.ReminderID)
	}
	if req.SessionID != "" && rem.SessionID != req.SessionID {
		return nil, domain.Validationf("reminder %s does not belong to session %s", rem.ReminderID, req.SessionID)
	}
	return rem, nil
}
