package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/geofence"
)

func TestCheckIn_InPersonMatchesBranchByAddress(t *testing.T) {
	e := newTestEngine(t, at(8, 50))

	res, err := e.CheckIn.CheckIn(context.Background(), CheckInRequest{WorkerHandle: "7001", ObservedAddress: "203.0.113.11"})
	require.NoError(t, err)

	s := res.Session
	assert.Equal(t, "w-day", s.WorkerID)
	assert.Equal(t, "b-yunusabad", s.BranchID)
	assert.Equal(t, "Yunusabad", res.BranchName)
	assert.Equal(t, domain.ShiftDay, s.ShiftCode)
	assert.Equal(t, "default_day", res.ShiftSource)
	assert.Equal(t, domain.VerificationInPerson, s.Verification)
	assert.False(t, s.Late)
	assert.True(t, s.IsOpen())
	assert.Equal(t, at(0, 0), s.Date)
}

func TestCheckIn_BranchComesFromAddressNotHomeBranch(t *testing.T) {
	e := newTestEngine(t, at(9, 20))

	res, err := e.CheckIn.CheckIn(context.Background(), CheckInRequest{WorkerHandle: "7001", ObservedAddress: "198.51.100.7"})
	require.NoError(t, err)
	assert.Equal(t, "b-chilanzar", res.Session.BranchID)
	assert.True(t, res.Session.Late, "09:20 is past the 09:15 cutoff")
}

func TestCheckIn_NotOnPremises(t *testing.T) {
	for _, addr := range []string{"192.0.2.1", geofence.UnknownAddress, ""} {
		t.Run(addr, func(t *testing.T) {
			e := newTestEngine(t, at(8, 50))
			_, err := e.CheckIn.CheckIn(context.Background(), CheckInRequest{WorkerHandle: "7001", ObservedAddress: addr})
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Contains(t, err.Error(), "not on premises")

			_, err = e.Sessions.GetOpenSession(context.Background(), "w-day")
			assert.True(t, domain.IsNotFound(err), "nothing may be written on rejection")
		})
	}
}

func TestCheckIn_NightShiftFromPositionKeyword(t *testing.T) {
	e := newTestEngine(t, at(18, 20))

	res, err := e.CheckIn.CheckIn(context.Background(), CheckInRequest{WorkerHandle: "7002", ObservedAddress: "198.51.100.7"})
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftNight, res.Session.ShiftCode)
	assert.Equal(t, "position_keyword", res.ShiftSource)
	assert.True(t, res.Session.Late)
}

func TestCheckIn_ExplicitShiftOverride(t *testing.T) {
	e := newTestEngine(t, at(17, 0))

	res, err := e.CheckIn.CheckIn(context.Background(), CheckInRequest{WorkerHandle: "7001", ObservedAddress: "203.0.113.10", ShiftCode: "Night"})
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftNight, res.Session.ShiftCode)
	assert.Equal(t, "explicit", res.ShiftSource)
	assert.False(t, res.Session.Late)

	_, err = e.CheckIn.CheckIn(context.Background(), CheckInRequest{WorkerHandle: "7002", ObservedAddress: "203.0.113.10", ShiftCode: "evening"})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestCheckIn_DuplicateCarriesExistingCheckIn(t *testing.T) {
	e := newTestEngine(t, at(8, 50))
	ctx := context.Background()

	first, err := e.CheckIn.CheckIn(ctx, CheckInRequest{WorkerHandle: "7001", ObservedAddress: "203.0.113.10"})
	require.NoError(t, err)

	e.fake.Set(at(9, 30))
	_, err = e.CheckIn.CheckInRemote(ctx, CheckInRequest{WorkerHandle: "7001"})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindConflict, appErr.Kind)
	require.NotNil(t, appErr.ExistingCheckIn)
	assert.True(t, appErr.ExistingCheckIn.Equal(at(8, 50)))
	assert.Equal(t, first.Session.SessionID, appErr.ExistingSessionID)
}

func TestCheckInRemote(t *testing.T) {
	e := newTestEngine(t, at(10, 0))

	res, err := e.CheckIn.CheckInRemote(context.Background(), CheckInRequest{WorkerHandle: "7001", ObservedAddress: "192.0.2.1"})
	require.NoError(t, err)
	assert.Equal(t, "b-yunusabad", res.Session.BranchID)
	assert.Equal(t, domain.VerificationRemote, res.Session.Verification)
	assert.True(t, res.Session.Late)
}

func TestCheckInRemote_Errors(t *testing.T) {
	e := newTestEngine(t, at(10, 0))
	ctx := context.Background()

	_, err := e.CheckIn.CheckInRemote(ctx, CheckInRequest{})
	assert.True(t, domain.IsValidation(err))

	_, err = e.CheckIn.CheckInRemote(ctx, CheckInRequest{WorkerHandle: "404"})
	assert.True(t, domain.IsNotFound(err))

	_, err = e.CheckIn.CheckInRemote(ctx, CheckInRequest{WorkerHandle: "7003"})
	assert.True(t, domain.IsValidation(err))
}
