package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

// PostgresRemindersRepository checkout_reminders on PostgreSQL.
// The one-active-reminder invariant is held by the partial unique index
// uq_checkout_reminders_active (session_id) WHERE status IN (scheduled, pending, sent).
type PostgresRemindersRepository struct {
	db *sql.DB
}

func NewPostgresRemindersRepository(db *sql.DB) *PostgresRemindersRepository {
	return &PostgresRemindersRepository{db: db}
}

var _ RemindersRepository = (*PostgresRemindersRepository)(nil)

const (
	reminderColumns = `
		reminder_id::text,
		worker_id::text,
		session_id::text,
		shift_code,
		status,
		response_type,
		scheduled_for,
		sent_at,
		response_received_at,
		observed_address,
		geofence_match,
		created_at,
		updated_at`

	// activeReminderPredicate must match the partial index definition verbatim.
	activeReminderPredicate = `status IN ('scheduled', 'pending', 'sent')`
)

func (r *PostgresRemindersRepository) UpsertActiveReminder(ctx context.Context, rem *domain.CheckoutReminder) (*domain.CheckoutReminder, bool, error) {
	query := `
		INSERT INTO checkout_reminders (
			reminder_id, worker_id, session_id, shift_code, status,
			scheduled_for, sent_at, observed_address, geofence_match,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (session_id) WHERE ` + activeReminderPredicate + `
		DO UPDATE SET
			observed_address = EXCLUDED.observed_address,
			geofence_match = EXCLUDED.geofence_match,
			updated_at = EXCLUDED.updated_at
		RETURNING` + reminderColumns + `, (xmax = 0) AS inserted`

	row := r.db.QueryRowContext(ctx, query, reminderArgs(rem)...)
	var inserted bool
	stored, err := scanReminder(row, &inserted)
	if err != nil {
		return nil, false, domain.Unavailable("upsert checkout reminder", err)
	}
	return stored, inserted, nil
}

func (r *PostgresRemindersRepository) InsertScheduledReminder(ctx context.Context, rem *domain.CheckoutReminder) (bool, error) {
	query := `
		INSERT INTO checkout_reminders (
			reminder_id, worker_id, session_id, shift_code, status,
			scheduled_for, sent_at, observed_address, geofence_match,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (session_id) WHERE ` + activeReminderPredicate + ` DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, reminderArgs(rem)...)
	if err != nil {
		return false, domain.Unavailable("insert checkout reminder", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Unavailable("insert checkout reminder", err)
	}
	return n == 1, nil
}

func (r *PostgresRemindersRepository) GetReminder(ctx context.Context, reminderID string) (*domain.CheckoutReminder, error) {
	query := `SELECT` + reminderColumns + `
		FROM checkout_reminders
		WHERE reminder_id = $1`
	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, reminderID), nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("reminder %s not found", reminderID)
		}
		return nil, domain.Unavailable("query checkout reminder", err)
	}
	return rem, nil
}

func (r *PostgresRemindersRepository) GetActiveReminder(ctx context.Context, sessionID string) (*domain.CheckoutReminder, error) {
	query := `SELECT` + reminderColumns + `
		FROM checkout_reminders
		WHERE session_id = $1 AND ` + activeReminderPredicate + `
		ORDER BY created_at DESC
		LIMIT 1`
	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, sessionID), nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("no active reminder for session %s", sessionID)
		}
		return nil, domain.Unavailable("query active checkout reminder", err)
	}
	return rem, nil
}

func (r *PostgresRemindersRepository) CompleteReminder(ctx context.Context, reminderID string, resp ReminderResponse) (*domain.CheckoutReminder, bool, error) {
	query := `
		UPDATE checkout_reminders
		SET status = 'completed',
			response_type = $2,
			response_received_at = $3,
			observed_address = COALESCE($4, observed_address),
			geofence_match = COALESCE($5, geofence_match),
			updated_at = $3
		WHERE reminder_id = $1 AND ` + activeReminderPredicate + `
		RETURNING` + reminderColumns

	var addr sql.NullString
	if resp.ObservedAddress != nil {
		addr = sql.NullString{String: *resp.ObservedAddress, Valid: true}
	}
	var match sql.NullBool
	if resp.GeofenceMatch != nil {
		match = sql.NullBool{Bool: *resp.GeofenceMatch, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, query, reminderID, string(resp.ResponseType), resp.ReceivedAt, addr, match)
	rem, err := scanReminder(row, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, domain.Unavailable("complete checkout reminder", err)
	}
	return rem, true, nil
}

func (r *PostgresRemindersRepository) MarkSent(ctx context.Context, reminderID string, sentAt time.Time) (bool, error) {
	query := `
		UPDATE checkout_reminders
		SET status = 'sent', sent_at = $2, updated_at = $2
		WHERE reminder_id = $1 AND ` + activeReminderPredicate

	res, err := r.db.ExecContext(ctx, query, reminderID, sentAt)
	if err != nil {
		return false, domain.Unavailable("mark checkout reminder sent", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Unavailable("mark checkout reminder sent", err)
	}
	return n == 1, nil
}

func (r *PostgresRemindersRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.CheckoutReminder, error) {
	query := `SELECT` + reminderColumns + `
		FROM checkout_reminders
		WHERE status IN ('scheduled', 'pending') AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2`
	return r.list(ctx, "list due checkout reminders", query, now, limit)
}

func (r *PostgresRemindersRepository) ListStaleSent(ctx context.Context, sentBefore time.Time, limit int) ([]*domain.CheckoutReminder, error) {
	query := `SELECT` + reminderColumns + `
		FROM checkout_reminders
		WHERE status = 'sent' AND sent_at <= $1
		ORDER BY sent_at
		LIMIT $2`
	return r.list(ctx, "list stale checkout reminders", query, sentBefore, limit)
}

func (r *PostgresRemindersRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.CheckoutReminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Unavailable(op, err)
	}
	defer rows.Close()

	var out []*domain.CheckoutReminder
	for rows.Next() {
		rem, err := scanReminder(rows, nil)
		if err != nil {
			return nil, domain.Unavailable(op, err)
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(op, err)
	}
	return out, nil
}

func reminderArgs(rem *domain.CheckoutReminder) []any {
	var sentAt sql.NullTime
	if rem.SentAt != nil {
		sentAt = sql.NullTime{Time: *rem.SentAt, Valid: true}
	}
	return []any{
		rem.ReminderID,
		rem.WorkerID,
		rem.SessionID,
		sql.NullString{String: string(rem.ShiftCode), Valid: rem.ShiftCode != ""},
		string(rem.Status),
		rem.ScheduledFor,
		sentAt,
		sql.NullString{String: rem.ObservedAddress, Valid: rem.ObservedAddress != ""},
		rem.GeofenceMatch,
		rem.CreatedAt,
	}
}

// scanReminder reads reminderColumns, plus the trailing inserted flag when non-nil.
func scanReminder(row rowScanner, inserted *bool) (*domain.CheckoutReminder, error) {
	var rem domain.CheckoutReminder
	var shiftCode, responseType, observed sql.NullString
	var status string
	var sentAt, receivedAt sql.NullTime

	dest := []any{
		&rem.ReminderID,
		&rem.WorkerID,
		&rem.SessionID,
		&shiftCode,
		&status,
		&responseType,
		&rem.ScheduledFor,
		&sentAt,
		&receivedAt,
		&observed,
		&rem.GeofenceMatch,
		&rem.CreatedAt,
		&rem.UpdatedAt,
	}
	if inserted != nil {
		dest = append(dest, inserted)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rem.ShiftCode = domain.ShiftCode(shiftCode.String)
	rem.Status = domain.NormalizeReminderStatus(status)
	rem.ObservedAddress = observed.String
	if responseType.Valid {
		rt := domain.ResponseType(responseType.String)
		rem.ResponseType = &rt
	}
	if sentAt.Valid {
		t := sentAt.Time
		rem.SentAt = &t
	}
	if receivedAt.Valid {
		t := receivedAt.Time
		rem.ResponseReceivedAt = &t
	}
	return &rem, nil
}
