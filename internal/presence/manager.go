// Package presence opens and closes presence sessions.
package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/metrics"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/resolver"
)

// OpenRequest starts a session. Zero ObservedAt means now; zero Date means
// the civil date of ObservedAt.
type OpenRequest struct {
	WorkerID     string
	BranchID     string
	ShiftCode    domain.ShiftCode
	Date         time.Time
	ObservedAt   time.Time
	Verification domain.VerificationChannel
}

// CloseRequest ends a session at a civil time of day. Nil CheckOutDate means
// the session's check-in date. Empty Verification keeps the check-in channel.
type CloseRequest struct {
	SessionID    string
	CheckOutTime clock.TimeOfDay
	CheckOutDate *time.Time
	Verification domain.VerificationChannel
}

// Manager owns presence session state.
type Manager struct {
	sessions repository.SessionsRepository
	late     *resolver.LateResolver
	civil    *clock.Civil
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewManager(
	sessions repository.SessionsRepository,
	late *resolver.LateResolver,
	civil *clock.Civil,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Manager {
	return &Manager{
		sessions: sessions,
		late:     late,
		civil:    civil,
		clock:    clk,
		logger:   logger,
		metrics:  m,
	}
}

// Open inserts a new open session stamped with lateness. A worker who
// already has an open session gets a Conflict carrying its check-in time.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*domain.PresenceSession, error) {
	if req.WorkerID == "" {
		return nil, domain.Validationf("worker_id is required")
	}
	if req.BranchID == "" {
		return nil, domain.Validationf("branch_id is required")
	}
	shift, ok := domain.ParseShiftCode(string(req.ShiftCode))
	if !ok {
		return nil, domain.Validationf("invalid shift code %q", req.ShiftCode)
	}
	if req.Verification == "" {
		req.Verification = domain.VerificationInPerson
	}

	observed := req.ObservedAt
	if observed.IsZero() {
		observed = m.clock.Now()
	}
	date := req.Date
	if date.IsZero() {
		date = m.civil.Date(observed)
	}

	late, th := m.late.IsLate(ctx, resolver.LateInput{
		WorkerID:   req.WorkerID,
		ShiftCode:  shift,
		Date:       date,
		NowMinutes: m.civil.MinutesSinceMidnight(observed),
	})

	s := &domain.PresenceSession{
		SessionID:    uuid.New().String(),
		WorkerID:     req.WorkerID,
		Date:         date,
		CheckInAt:    observed,
		BranchID:     req.BranchID,
		ShiftCode:    shift,
		Late:         late,
		Status:       domain.SessionOpen,
		Verification: req.Verification,
		CreatedAt:    observed,
		UpdatedAt:    observed,
	}

	inserted, err := m.sessions.InsertOpenSession(ctx, s)
	if err != nil {
		return nil, err
	}
	if !inserted {
		m.metrics.RecordConflict("open_session")
		return nil, m.duplicateOpen(ctx, req.WorkerID)
	}

	m.metrics.RecordSessionOpened(string(s.Verification))
	m.logger.Info("Presence session opened",
		zap.String("session_id", s.SessionID),
		zap.String("worker_id", s.WorkerID),
		zap.String("branch_id", s.BranchID),
		zap.String("shift_code", string(s.ShiftCode)),
		zap.Bool("late", s.Late),
		zap.Int("late_cutoff_minutes", th.CutoffMinutes),
		zap.String("late_cutoff_source", th.Source),
		zap.String("verification", string(s.Verification)),
	)
	return s, nil
}

func (m *Manager) duplicateOpen(ctx context.Context, workerID string) error {
	conflict := domain.Conflictf("worker %s already has an open session", workerID)
	existing, err := m.sessions.GetOpenSession(ctx, workerID)
	if err != nil {
		// closed between the insert and this read; the conflict still stands
		m.logger.Warn("Open session vanished after insert conflict", zap.String("worker_id", workerID), zap.Error(err))
		return conflict
	}
	at := existing.CheckInAt
	conflict.ExistingCheckIn = &at
	conflict.ExistingSessionID = existing.SessionID
	return conflict
}

// Close ends an open session. A closed session is rejected with Conflict
// and its duration is never touched again.
func (m *Manager) Close(ctx context.Context, req CloseRequest) (*domain.PresenceSession, error) {
	if req.SessionID == "" {
		return nil, domain.Validationf("session_id is required")
	}
	s, err := m.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !s.IsOpen() {
		m.metrics.RecordConflict("close_session")
		return nil, domain.Conflictf("session %s is already closed", s.SessionID)
	}

	inDate := s.Date
	if inDate.IsZero() {
		inDate = m.civil.Date(s.CheckInAt)
	}
	outDate := inDate
	if req.CheckOutDate != nil {
		outDate = *req.CheckOutDate
	}
	el := ComputeElapsed(m.civil, inDate, m.civil.TimeOfDayOf(s.CheckInAt), outDate, req.CheckOutTime)
	status := closingStatus(s.ShiftCode, req.CheckOutTime, el.Hours)

	if el.FallbackUsed {
		m.logger.Warn("Checkout dates implausible, using time-of-day difference",
			zap.String("session_id", s.SessionID),
			zap.Time("check_in_at", s.CheckInAt),
			zap.String("check_out_date", outDate.Format(clock.DateLayout)),
			zap.String("check_out_time", req.CheckOutTime.String()),
		)
	}

	closed, err := m.sessions.CloseSession(ctx, s.SessionID, repository.SessionClose{
		CheckOutAt:    el.CheckOutAt,
		DurationHours: el.Hours,
		Status:        status,
		Verification:  req.Verification,
	})
	if err != nil {
		return nil, err
	}
	if !closed {
		m.metrics.RecordConflict("close_session")
		return nil, domain.Conflictf("session %s is already closed", s.SessionID)
	}

	out := el.CheckOutAt
	hours := el.Hours
	s.CheckOutAt = &out
	s.DurationHours = &hours
	s.Status = status
	if req.Verification != "" {
		s.Verification = req.Verification
	}
	s.UpdatedAt = m.clock.Now()

	m.metrics.RecordSessionClosed(string(status), string(s.Verification))
	m.logger.Info("Presence session closed",
		zap.String("session_id", s.SessionID),
		zap.String("worker_id", s.WorkerID),
		zap.Float64("duration_hours", hours),
		zap.String("status", string(status)),
		zap.Bool("fallback_used", el.FallbackUsed),
	)
	return s, nil
}

// CloseAt closes the session at instant at, taken in civil time.
func (m *Manager) CloseAt(ctx context.Context, sessionID string, at time.Time, verification domain.VerificationChannel) (*domain.PresenceSession, error) {
	date := m.civil.Date(at)
	return m.Close(ctx, CloseRequest{
		SessionID:    sessionID,
		CheckOutTime: m.civil.TimeOfDayOf(at),
		CheckOutDate: &date,
		Verification: verification,
	})
}

// ParseCheckout validates the administrative checkout inputs:
// time as HH:MM or HH:MM:SS, optional date as YYYY-MM-DD.
func (m *Manager) ParseCheckout(timeStr, dateStr string) (clock.TimeOfDay, *time.Time, error) {
	tod, err := clock.ParseTimeOfDay(timeStr)
	if err != nil {
		return clock.TimeOfDay{}, nil, domain.Validationf("invalid check-out time %q, expected HH:MM or HH:MM:SS", timeStr)
	}
	if dateStr == "" {
		return tod, nil, nil
	}
	d, err := m.civil.ParseDate(dateStr)
	if err != nil {
		return clock.TimeOfDay{}, nil, domain.Validationf("invalid check-out date %q, expected YYYY-MM-DD", dateStr)
	}
	return tod, &d, nil
}

// OpenSession returns the worker's open session.
func (m *Manager) OpenSession(ctx context.Context, workerID string) (*domain.PresenceSession, error) {
	return m.sessions.GetOpenSession(ctx, workerID)
}
