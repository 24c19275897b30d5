package service

import (
	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/geofence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/metrics"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/notify"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/presence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/reminder"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/resolver"
)

// EngineDeps everything the binaries share when assembling the engine.
type EngineDeps struct {
	Workers         repository.WorkersRepository
	Branches        repository.BranchesRepository
	Shifts          repository.ShiftsRepository
	Sessions        repository.SessionsRepository
	Reminders       repository.RemindersRepository
	Dispatcher      notify.Dispatcher
	Templates       notify.Templates
	NightKeywords   []string
	FallbackCutoffs map[domain.ShiftCode]int
	Civil           *clock.Civil
	Clock           clock.Clock
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
}

// Engine the assembled components, one instance per process.
type Engine struct {
	Workers   repository.WorkersRepository
	Sessions  repository.SessionsRepository
	Reminders repository.RemindersRepository
	Presence  *presence.Manager
	Machine   *reminder.Machine
	CheckIn   *CheckInService
	Civil     *clock.Civil
	Clock     clock.Clock
}

func NewEngine(d EngineDeps) *Engine {
	late := resolver.NewLateResolver(d.Shifts, d.FallbackCutoffs, d.Logger, d.Metrics)
	shifts := resolver.NewShiftResolver(d.Shifts, d.NightKeywords, d.Logger)
	verifier := geofence.NewVerifier(d.Branches, d.Logger)
	mgr := presence.NewManager(d.Sessions, late, d.Civil, d.Clock, d.Logger, d.Metrics)

	machine := reminder.NewMachine(reminder.Dependencies{
		Workers:    d.Workers,
		Branches:   d.Branches,
		Sessions:   d.Sessions,
		Reminders:  d.Reminders,
		Geofence:   verifier,
		Presence:   mgr,
		Dispatcher: d.Dispatcher,
		Payloads:   notify.NewBuilder(d.Templates, d.Civil.Location()),
		Civil:      d.Civil,
		Clock:      d.Clock,
		Logger:     d.Logger,
		Metrics:    d.Metrics,
	})

	return &Engine{
		Workers:   d.Workers,
		Sessions:  d.Sessions,
		Reminders: d.Reminders,
		Presence:  mgr,
		Machine:   machine,
		CheckIn:   NewCheckInService(d.Workers, d.Branches, verifier, shifts, mgr, d.Civil, d.Clock, d.Logger),
		Civil:     d.Civil,
		Clock:     d.Clock,
	}
}
