package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/geofence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/presence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/resolver"
)

// CheckInRequest opens a session for the worker behind WorkerHandle.
// ShiftCode is an optional override; ObservedAddress is ignored for remote check-in.
type CheckInRequest struct {
	WorkerHandle    string
	ObservedAddress string
	ShiftCode       string
}

// CheckInResult the opened session plus how its branch and shift were decided.
type CheckInResult struct {
	Session     *domain.PresenceSession
	BranchName  string
	ShiftSource string
}

// CheckInService orchestrates check-in: worker lookup, geofence, shift resolution, then Open.
type CheckInService struct {
	workers  repository.WorkersRepository
	branches repository.BranchesRepository
	geofence *geofence.Verifier
	shifts   *resolver.ShiftResolver
	presence *presence.Manager
	civil    *clock.Civil
	clock    clock.Clock
	logger   *zap.Logger
}

func NewCheckInService(
	workers repository.WorkersRepository,
	branches repository.BranchesRepository,
	verifier *geofence.Verifier,
	shifts *resolver.ShiftResolver,
	mgr *presence.Manager,
	civil *clock.Civil,
	clk clock.Clock,
	logger *zap.Logger,
) *CheckInService {
	return &CheckInService{
		workers:  workers,
		branches: branches,
		geofence: verifier,
		shifts:   shifts,
		presence: mgr,
		civil:    civil,
		clock:    clk,
		logger:   logger,
	}
}

// CheckIn is the in-person path: the observed address must belong to a branch.
func (s *CheckInService) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	worker, explicit, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	fence, err := s.geofence.Verify(ctx, req.ObservedAddress)
	if err != nil {
		return nil, err
	}
	if !fence.Matched {
		s.logger.Info("Check-in rejected, not on premises",
			zap.String("worker_id", worker.WorkerID),
			zap.String("observed_address", fence.ObservedAddress),
		)
		return nil, domain.Validationf("not on premises: address %q matches no branch", fence.ObservedAddress)
	}
	return s.open(ctx, worker, explicit, fence.Branch, domain.VerificationInPerson)
}

// CheckInRemote skips geofencing and books the session on the home branch.
func (s *CheckInService) CheckInRemote(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	worker, explicit, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if worker.HomeBranchID == "" {
		return nil, domain.Validationf("worker %s has no home branch", worker.WorkerID)
	}
	branch, err := s.branches.GetBranch(ctx, worker.HomeBranchID)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, worker, explicit, branch, domain.VerificationRemote)
}

func (s *CheckInService) prepare(ctx context.Context, req CheckInRequest) (*domain.Worker, domain.ShiftCode, error) {
	if req.WorkerHandle == "" {
		return nil, "", domain.Validationf("worker handle is required")
	}
	var explicit domain.ShiftCode
	if req.ShiftCode != "" {
		code, ok := domain.ParseShiftCode(req.ShiftCode)
		if !ok {
			return nil, "", domain.Validationf("invalid shift code %q", req.ShiftCode)
		}
		explicit = code
	}
	worker, err := s.workers.GetWorkerByHandle(ctx, req.WorkerHandle)
	if err != nil {
		return nil, "", err
	}
	return worker, explicit, nil
}

func (s *CheckInService) open(ctx context.Context, worker *domain.Worker, explicit domain.ShiftCode, branch *domain.Branch, channel domain.VerificationChannel) (*CheckInResult, error) {
	now := s.clock.Now()
	date := s.civil.Date(now)
	shift, source := s.shifts.ResolveWithSource(ctx, resolver.ShiftInput{
		Explicit: explicit,
		Worker:   *worker,
		Date:     date,
	})

	session, err := s.presence.Open(ctx, presence.OpenRequest{
		WorkerID:     worker.WorkerID,
		BranchID:     branch.BranchID,
		ShiftCode:    shift,
		Date:         date,
		ObservedAt:   now,
		Verification: channel,
	})
	if err != nil {
		return nil, err
	}
	return &CheckInResult{Session: session, BranchName: branch.Name, ShiftSource: source}, nil
}
