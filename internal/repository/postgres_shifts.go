package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

// PostgresShiftsRepository reads shift_definitions and shift_assignments.
type PostgresShiftsRepository struct {
	db *sql.DB
}

func NewPostgresShiftsRepository(db *sql.DB) *PostgresShiftsRepository {
	return &PostgresShiftsRepository{db: db}
}

var _ ShiftsRepository = (*PostgresShiftsRepository)(nil)

func (r *PostgresShiftsRepository) GetShiftDefinition(ctx context.Context, code domain.ShiftCode) (*domain.ShiftDefinition, error) {
	query := `
		SELECT shift_code, start_hour, late_threshold_minutes
		FROM shift_definitions
		WHERE shift_code = $1`
	var def domain.ShiftDefinition
	var rawCode string
	err := r.db.QueryRowContext(ctx, query, string(code)).Scan(&rawCode, &def.StartHour, &def.LateThresholdMinutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("shift definition %s not found", code)
		}
		return nil, domain.Unavailable("query shift definition", err)
	}
	def.Code = domain.ShiftCode(rawCode)
	return &def, nil
}

// GetAssignment only considers assignments whose schedule is published or draft.
func (r *PostgresShiftsRepository) GetAssignment(ctx context.Context, workerID string, date time.Time) (*domain.ShiftAssignment, error) {
	query := `
		SELECT
			a.worker_id::text,
			a.work_date::text,
			a.shift_code,
			a.custom_start::text,
			a.custom_end::text,
			s.status
		FROM shift_assignments a
		JOIN schedules s ON s.schedule_id = a.schedule_id
		WHERE a.worker_id = $1
		  AND a.work_date = $2::date
		  AND s.status IN ('published', 'draft')
		ORDER BY CASE s.status WHEN 'published' THEN 0 ELSE 1 END
		LIMIT 1`

	var a domain.ShiftAssignment
	var workDate, shiftCode, status string
	var customStart, customEnd sql.NullString
	err := r.db.QueryRowContext(ctx, query, workerID, date.Format(clock.DateLayout)).Scan(
		&a.WorkerID, &workDate, &shiftCode, &customStart, &customEnd, &status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("no shift assignment for worker %s on %s", workerID, date.Format(clock.DateLayout))
		}
		return nil, domain.Unavailable("query shift assignment", err)
	}

	if d, err := time.Parse(clock.DateLayout, workDate); err == nil {
		a.Date = d
	}
	a.ShiftCode = domain.ShiftCode(shiftCode)
	a.ScheduleStatus = domain.ScheduleStatus(status)
	a.CustomStart = parseNullTimeOfDay(customStart)
	a.CustomEnd = parseNullTimeOfDay(customEnd)
	return &a, nil
}

func parseNullTimeOfDay(v sql.NullString) *clock.TimeOfDay {
	if !v.Valid || v.String == "" {
		return nil
	}
	tod, err := clock.ParseTimeOfDay(v.String)
	if err != nil {
		return nil
	}
	return &tod
}
