package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

func setupMockRemindersDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresRemindersRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresRemindersRepository(db)
}

var reminderRowColumns = []string{
	"reminder_id", "worker_id", "session_id", "shift_code", "status",
	"response_type", "scheduled_for", "sent_at", "response_received_at",
	"observed_address", "geofence_match", "created_at", "updated_at",
}

func TestUpsertActiveReminder_Inserted(t *testing.T) {
	db, mock, repo := setupMockRemindersDB(t)
	defer db.Close()

	now := time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)
	rem := &domain.CheckoutReminder{
		ReminderID:      uuid.New().String(),
		WorkerID:        uuid.New().String(),
		SessionID:       uuid.New().String(),
		ShiftCode:       domain.ShiftDay,
		Status:          domain.ReminderSent,
		ScheduledFor:    now,
		SentAt:          &now,
		ObservedAddress: "10.0.0.9",
		CreatedAt:       now,
	}

	rows := sqlmock.NewRows(append(reminderRowColumns, "inserted")).AddRow(
		rem.ReminderID, rem.WorkerID, rem.SessionID, "day", "sent",
		nil, now, now, nil,
		"10.0.0.9", false, now, now, true,
	)
	mock.ExpectQuery(`INSERT INTO checkout_reminders .* ON CONFLICT \(session_id\) WHERE status IN .* DO UPDATE SET .* RETURNING .*\(xmax = 0\) AS inserted`).
		WithArgs(rem.ReminderID, rem.WorkerID, rem.SessionID, "day", "sent", now, now, "10.0.0.9", false, now).
		WillReturnRows(rows)

	stored, created, err := repo.UpsertActiveReminder(context.Background(), rem)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, rem.ReminderID, stored.ReminderID)
	assert.Equal(t, domain.ReminderSent, stored.Status)
	assert.Nil(t, stored.ResponseType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertActiveReminder_RefreshesExisting(t *testing.T) {
	db, mock, repo := setupMockRemindersDB(t)
	defer db.Close()

	now := time.Date(2024, 1, 1, 17, 30, 0, 0, time.UTC)
	earlier := now.Add(-30 * time.Minute)
	existingID := uuid.New().String()

	rows := sqlmock.NewRows(append(reminderRowColumns, "inserted")).AddRow(
		existingID, "w-1", "s-1", "day", "pending",
		nil, earlier, nil, nil,
		"10.0.0.5", true, earlier, now, false,
	)
	mock.ExpectQuery(`INSERT INTO checkout_reminders`).
		WillReturnRows(rows)

	stored, created, err := repo.UpsertActiveReminder(context.Background(), &domain.CheckoutReminder{
		ReminderID:      uuid.New().String(),
		WorkerID:        "w-1",
		SessionID:       "s-1",
		Status:          domain.ReminderSent,
		ObservedAddress: "10.0.0.5",
		GeofenceMatch:   true,
		CreatedAt:       now,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existingID, stored.ReminderID)
	// legacy value is read back as scheduled
	assert.Equal(t, domain.ReminderScheduled, stored.Status)
	assert.True(t, stored.GeofenceMatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteReminder_AlreadyCompleted(t *testing.T) {
	db, mock, repo := setupMockRemindersDB(t)
	defer db.Close()

	at := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`UPDATE checkout_reminders\s+SET status = 'completed'.*WHERE reminder_id = \$1 AND status IN`).
		WithArgs("r-1", "45min", at, nil, nil).
		WillReturnError(sql.ErrNoRows)

	rem, ok, err := repo.CompleteReminder(context.Background(), "r-1", ReminderResponse{
		ResponseType: domain.Response45Min,
		ReceivedAt:   at,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rem)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteReminder_Success(t *testing.T) {
	db, mock, repo := setupMockRemindersDB(t)
	defer db.Close()

	at := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	addr := "10.0.0.5"
	match := true
	rows := sqlmock.NewRows(reminderRowColumns).AddRow(
		"r-1", "w-1", "s-1", nil, "completed",
		"i_left", at.Add(-time.Hour), at.Add(-time.Hour), at,
		addr, true, at.Add(-time.Hour), at,
	)
	mock.ExpectQuery(`UPDATE checkout_reminders`).
		WithArgs("r-1", "i_left", at, addr, true).
		WillReturnRows(rows)

	rem, ok, err := repo.CompleteReminder(context.Background(), "r-1", ReminderResponse{
		ResponseType:    domain.ResponseILeft,
		ReceivedAt:      at,
		ObservedAddress: &addr,
		GeofenceMatch:   &match,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ReminderCompleted, rem.Status)
	require.NotNil(t, rem.ResponseType)
	assert.Equal(t, domain.ResponseILeft, *rem.ResponseType)
	assert.Equal(t, domain.ShiftCode(""), rem.ShiftCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSent_OnlyActive(t *testing.T) {
	db, mock, repo := setupMockRemindersDB(t)
	defer db.Close()

	at := time.Date(2024, 1, 1, 18, 45, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE checkout_reminders\s+SET status = 'sent'`).
		WithArgs("r-2", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkSent(context.Background(), "r-2", at)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDue(t *testing.T) {
	db, mock, repo := setupMockRemindersDB(t)
	defer db.Close()

	now := time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(reminderRowColumns).
		AddRow("r-1", "w-1", "s-1", "day", "scheduled", nil, now.Add(-time.Minute), nil, nil, nil, false, now, now).
		AddRow("r-2", "w-2", "s-2", "night", "pending", nil, now, nil, nil, nil, false, now, now)
	mock.ExpectQuery(`FROM checkout_reminders\s+WHERE status IN \('scheduled', 'pending'\) AND scheduled_for <= \$1`).
		WithArgs(now, 50).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "r-1", due[0].ReminderID)
	assert.Equal(t, domain.ReminderScheduled, due[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
