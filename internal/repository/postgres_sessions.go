package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

// PostgresSessionsRepository presence_sessions on PostgreSQL.
// The one-open-session invariant is held by the partial unique index
// uq_presence_sessions_open (worker_id) WHERE check_out_at IS NULL.
type PostgresSessionsRepository struct {
	db *sql.DB
}

func NewPostgresSessionsRepository(db *sql.DB) *PostgresSessionsRepository {
	return &PostgresSessionsRepository{db: db}
}

var _ SessionsRepository = (*PostgresSessionsRepository)(nil)

const sessionColumns = `
		session_id::text,
		worker_id::text,
		work_date::text,
		check_in_at,
		branch_id::text,
		shift_code,
		is_late,
		status,
		check_out_at,
		duration_hours,
		verification,
		created_at,
		updated_at`

func (r *PostgresSessionsRepository) InsertOpenSession(ctx context.Context, s *domain.PresenceSession) (bool, error) {
	if s.SessionID == "" || s.WorkerID == "" {
		return false, domain.Validationf("session_id and worker_id are required")
	}
	query := `
		INSERT INTO presence_sessions (
			session_id, worker_id, work_date, check_in_at, branch_id,
			shift_code, is_late, status, verification, created_at, updated_at
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (worker_id) WHERE check_out_at IS NULL DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		s.SessionID,
		s.WorkerID,
		s.Date.Format(clock.DateLayout),
		s.CheckInAt,
		s.BranchID,
		string(s.ShiftCode),
		s.Late,
		string(s.Status),
		string(s.Verification),
		s.CreatedAt,
	)
	if err != nil {
		return false, domain.Unavailable("insert presence session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Unavailable("insert presence session", err)
	}
	return n == 1, nil
}

func (r *PostgresSessionsRepository) GetSession(ctx context.Context, sessionID string) (*domain.PresenceSession, error) {
	query := `SELECT` + sessionColumns + `
		FROM presence_sessions
		WHERE session_id = $1`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("session %s not found", sessionID)
		}
		return nil, domain.Unavailable("query presence session", err)
	}
	return s, nil
}

func (r *PostgresSessionsRepository) GetOpenSession(ctx context.Context, workerID string) (*domain.PresenceSession, error) {
	query := `SELECT` + sessionColumns + `
		FROM presence_sessions
		WHERE worker_id = $1 AND check_out_at IS NULL
		ORDER BY check_in_at DESC
		LIMIT 1`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, workerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("no open session for worker %s", workerID)
		}
		return nil, domain.Unavailable("query open presence session", err)
	}
	return s, nil
}

func (r *PostgresSessionsRepository) CloseSession(ctx context.Context, sessionID string, upd SessionClose) (bool, error) {
	query := `
		UPDATE presence_sessions
		SET check_out_at = $2,
			duration_hours = $3,
			status = $4,
			verification = COALESCE($5, verification),
			updated_at = NOW()
		WHERE session_id = $1 AND check_out_at IS NULL`

	verification := sql.NullString{String: string(upd.Verification), Valid: upd.Verification != ""}
	res, err := r.db.ExecContext(ctx, query,
		sessionID,
		upd.CheckOutAt,
		upd.DurationHours,
		string(upd.Status),
		verification,
	)
	if err != nil {
		return false, domain.Unavailable("close presence session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Unavailable("close presence session", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.PresenceSession, error) {
	var s domain.PresenceSession
	var workDate, shiftCode, status, verification string
	var checkOutAt sql.NullTime
	var duration sql.NullFloat64
	err := row.Scan(
		&s.SessionID,
		&s.WorkerID,
		&workDate,
		&s.CheckInAt,
		&s.BranchID,
		&shiftCode,
		&s.Late,
		&status,
		&checkOutAt,
		&duration,
		&verification,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if d, err := time.Parse(clock.DateLayout, workDate); err == nil {
		s.Date = d
	}
	s.ShiftCode = domain.ShiftCode(shiftCode)
	s.Status = domain.SessionStatus(status)
	s.Verification = domain.VerificationChannel(verification)
	if checkOutAt.Valid {
		t := checkOutAt.Time
		s.CheckOutAt = &t
	}
	if duration.Valid {
		h := duration.Float64
		s.DurationHours = &h
	}
	return &s, nil
}
