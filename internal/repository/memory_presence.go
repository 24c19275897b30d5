package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

// MemorySessionsRepo: presence_sessions in memory.
// Each method holds the lock for the whole check-and-write so the
// guarded semantics match the PostgreSQL statements.
type MemorySessionsRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.PresenceSession // sessionID -> session
}

func NewMemorySessionsRepo() *MemorySessionsRepo {
	return &MemorySessionsRepo{sessions: map[string]domain.PresenceSession{}}
}

var _ SessionsRepository = (*MemorySessionsRepo)(nil)

func (r *MemorySessionsRepo) InsertOpenSession(_ context.Context, s *domain.PresenceSession) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.WorkerID == s.WorkerID && existing.IsOpen() {
			return false, nil
		}
	}
	stored := *s
	stored.UpdatedAt = stored.CreatedAt
	r.sessions[s.SessionID] = stored
	return true, nil
}

func (r *MemorySessionsRepo) GetSession(_ context.Context, sessionID string) (*domain.PresenceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.NotFoundf("session %s not found", sessionID)
	}
	return &s, nil
}

func (r *MemorySessionsRepo) GetOpenSession(_ context.Context, workerID string) (*domain.PresenceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *domain.PresenceSession
	for _, s := range r.sessions {
		if s.WorkerID != workerID || !s.IsOpen() {
			continue
		}
		if found == nil || s.CheckInAt.After(found.CheckInAt) {
			s := s
			found = &s
		}
	}
	if found == nil {
		return nil, domain.NotFoundf("no open session for worker %s", workerID)
	}
	return found, nil
}

func (r *MemorySessionsRepo) CloseSession(_ context.Context, sessionID string, upd SessionClose) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.IsOpen() {
		return false, nil
	}
	out := upd.CheckOutAt
	hours := upd.DurationHours
	s.CheckOutAt = &out
	s.DurationHours = &hours
	s.Status = upd.Status
	if upd.Verification != "" {
		s.Verification = upd.Verification
	}
	s.UpdatedAt = time.Now().UTC()
	r.sessions[sessionID] = s
	return true, nil
}

// MemoryRemindersRepo: checkout_reminders in memory.
type MemoryRemindersRepo struct {
	mu        sync.Mutex
	reminders []domain.CheckoutReminder // append-only, creation order
}

func NewMemoryRemindersRepo() *MemoryRemindersRepo {
	return &MemoryRemindersRepo{}
}

var _ RemindersRepository = (*MemoryRemindersRepo)(nil)

// All returns a copy of every stored reminder in creation order.
func (r *MemoryRemindersRepo) All() []domain.CheckoutReminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.CheckoutReminder, len(r.reminders))
	copy(out, r.reminders)
	return out
}

func (r *MemoryRemindersRepo) activeIndex(sessionID string) int {
	for i := len(r.reminders) - 1; i >= 0; i-- {
		if r.reminders[i].SessionID == sessionID && r.reminders[i].Status.IsActive() {
			return i
		}
	}
	return -1
}

func (r *MemoryRemindersRepo) index(reminderID string) int {
	for i := range r.reminders {
		if r.reminders[i].ReminderID == reminderID {
			return i
		}
	}
	return -1
}

func (r *MemoryRemindersRepo) UpsertActiveReminder(_ context.Context, rem *domain.CheckoutReminder) (*domain.CheckoutReminder, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.activeIndex(rem.SessionID); i >= 0 {
		r.reminders[i].ObservedAddress = rem.ObservedAddress
		r.reminders[i].GeofenceMatch = rem.GeofenceMatch
		r.reminders[i].UpdatedAt = rem.CreatedAt
		stored := r.reminders[i]
		return &stored, false, nil
	}
	stored := *rem
	stored.UpdatedAt = stored.CreatedAt
	r.reminders = append(r.reminders, stored)
	return &stored, true, nil
}

func (r *MemoryRemindersRepo) InsertScheduledReminder(_ context.Context, rem *domain.CheckoutReminder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeIndex(rem.SessionID) >= 0 {
		return false, nil
	}
	stored := *rem
	stored.UpdatedAt = stored.CreatedAt
	r.reminders = append(r.reminders, stored)
	return true, nil
}

func (r *MemoryRemindersRepo) GetReminder(_ context.Context, reminderID string) (*domain.CheckoutReminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(reminderID)
	if i < 0 {
		return nil, domain.NotFoundf("reminder %s not found", reminderID)
	}
	rem := r.reminders[i]
	return &rem, nil
}

func (r *MemoryRemindersRepo) GetActiveReminder(_ context.Context, sessionID string) (*domain.CheckoutReminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.activeIndex(sessionID)
	if i < 0 {
		return nil, domain.NotFoundf("no active reminder for session %s", sessionID)
	}
	rem := r.reminders[i]
	return &rem, nil
}

func (r *MemoryRemindersRepo) CompleteReminder(_ context.Context, reminderID string, resp ReminderResponse) (*domain.CheckoutReminder, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(reminderID)
	if i < 0 || !r.reminders[i].Status.IsActive() {
		return nil, false, nil
	}
	rem := &r.reminders[i]
	rt := resp.ResponseType
	at := resp.ReceivedAt
	rem.Status = domain.ReminderCompleted
	rem.ResponseType = &rt
	rem.ResponseReceivedAt = &at
	if resp.ObservedAddress != nil {
		rem.ObservedAddress = *resp.ObservedAddress
	}
	if resp.GeofenceMatch != nil {
		rem.GeofenceMatch = *resp.GeofenceMatch
	}
	rem.UpdatedAt = at
	out := *rem
	return &out, true, nil
}

func (r *MemoryRemindersRepo) MarkSent(_ context.Context, reminderID string, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(reminderID)
	if i < 0 || !r.reminders[i].Status.IsActive() {
		return false, nil
	}
	at := sentAt
	r.reminders[i].Status = domain.ReminderSent
	r.reminders[i].SentAt = &at
	r.reminders[i].UpdatedAt = sentAt
	return true, nil
}

func (r *MemoryRemindersRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*domain.CheckoutReminder, error) {
	return r.filter(limit, func(rem domain.CheckoutReminder) (bool, time.Time) {
		return rem.Status == domain.ReminderScheduled && !rem.ScheduledFor.After(now), rem.ScheduledFor
	}), nil
}

func (r *MemoryRemindersRepo) ListStaleSent(_ context.Context, sentBefore time.Time, limit int) ([]*domain.CheckoutReminder, error) {
	return r.filter(limit, func(rem domain.CheckoutReminder) (bool, time.Time) {
		if rem.Status != domain.ReminderSent || rem.SentAt == nil {
			return false, time.Time{}
		}
		return !rem.SentAt.After(sentBefore), *rem.SentAt
	}), nil
}

func (r *MemoryRemindersRepo) filter(limit int, match func(domain.CheckoutReminder) (bool, time.Time)) []*domain.CheckoutReminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	type keyed struct {
		rem domain.CheckoutReminder
		at  time.Time
	}
	var hits []keyed
	for _, rem := range r.reminders {
		if ok, at := match(rem); ok {
			hits = append(hits, keyed{rem: rem, at: at})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at.Before(hits[j].at) })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*domain.CheckoutReminder, 0, len(hits))
	for i := range hits {
		rem := hits[i].rem
		out = append(out, &rem)
	}
	return out
}
