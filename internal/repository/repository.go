package repository

import (
	"context"
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

// Missing rows come back as domain NotFound errors; any other storage failure
// comes back as domain Unavailable. Guarded writes report "no row matched the
// predicate" through their boolean result, never through an error.

// WorkersRepository read-only view of the employee directory.
type WorkersRepository interface {
	GetWorker(ctx context.Context, workerID string) (*domain.Worker, error)
	GetWorkerByHandle(ctx context.Context, handle string) (*domain.Worker, error)
}

// BranchesRepository read-only view of branches and their office addresses.
type BranchesRepository interface {
	// ListBranches returns branches in a stable order (creation order).
	ListBranches(ctx context.Context) ([]domain.Branch, error)
	GetBranch(ctx context.Context, branchID string) (*domain.Branch, error)
}

// ShiftsRepository shift configuration lookups.
type ShiftsRepository interface {
	GetShiftDefinition(ctx context.Context, code domain.ShiftCode) (*domain.ShiftDefinition, error)
	// GetAssignment returns the published or draft assignment for the worker's civil date.
	GetAssignment(ctx context.Context, workerID string, date time.Time) (*domain.ShiftAssignment, error)
}

// SessionClose is the terminal update applied to an open session.
type SessionClose struct {
	CheckOutAt    time.Time
	DurationHours float64
	Status        domain.SessionStatus
	Verification  domain.VerificationChannel // empty keeps the check-in channel
}

// SessionsRepository presence_sessions storage.
type SessionsRepository interface {
	// InsertOpenSession inserts s unless the worker already has an open
	// session; inserted=false means the one-open-session guard rejected it.
	InsertOpenSession(ctx context.Context, s *domain.PresenceSession) (inserted bool, err error)
	GetSession(ctx context.Context, sessionID string) (*domain.PresenceSession, error)
	GetOpenSession(ctx context.Context, workerID string) (*domain.PresenceSession, error)
	// CloseSession applies upd only while the session is still open.
	CloseSession(ctx context.Context, sessionID string, upd SessionClose) (closed bool, err error)
}

// ReminderResponse is the terminal update applied to an active reminder.
type ReminderResponse struct {
	ResponseType    domain.ResponseType
	ReceivedAt      time.Time
	ObservedAddress *string
	GeofenceMatch   *bool
}

// RemindersRepository checkout_reminders storage.
type RemindersRepository interface {
	// UpsertActiveReminder inserts r, or when the session already has an
	// active reminder only refreshes that row's observed address and match flag.
	UpsertActiveReminder(ctx context.Context, r *domain.CheckoutReminder) (stored *domain.CheckoutReminder, created bool, err error)
	// InsertScheduledReminder inserts r unless the session already has an active reminder.
	InsertScheduledReminder(ctx context.Context, r *domain.CheckoutReminder) (inserted bool, err error)
	GetReminder(ctx context.Context, reminderID string) (*domain.CheckoutReminder, error)
	GetActiveReminder(ctx context.Context, sessionID string) (*domain.CheckoutReminder, error)
	// CompleteReminder records the response only while the reminder is active;
	// nil, false means it was already completed.
	CompleteReminder(ctx context.Context, reminderID string, resp ReminderResponse) (*domain.CheckoutReminder, bool, error)
	// MarkSent moves an active reminder to sent and stamps sent_at.
	MarkSent(ctx context.Context, reminderID string, sentAt time.Time) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.CheckoutReminder, error)
	ListStaleSent(ctx context.Context, sentBefore time.Time, limit int) ([]*domain.CheckoutReminder, error)
}
