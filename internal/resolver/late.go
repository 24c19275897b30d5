package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/metrics"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
)

// CustomStartGraceMinutes grace period after an assignment's custom start.
const CustomStartGraceMinutes = 15

// DefaultFallbackCutoffs hard-coded cutoffs used only when configuration is unreachable.
var DefaultFallbackCutoffs = map[domain.ShiftCode]int{
	domain.ShiftDay:   9*60 + 15,  // 09:15
	domain.ShiftNight: 18*60 + 15, // 18:15
}

// LateInput identifies whose lateness is being judged and when.
type LateInput struct {
	WorkerID   string
	ShiftCode  domain.ShiftCode
	Date       time.Time // civil date
	NowMinutes int       // civil minutes since midnight
}

// Threshold is a resolved cutoff in civil minutes since midnight.
type Threshold struct {
	CutoffMinutes int
	Source        string
	Degraded      bool
}

// lateLookup memoises the assignment across strategies of one resolution.
type lateLookup struct {
	in         LateInput
	loaded     bool
	assignment *domain.ShiftAssignment
	failures   []error
}

type lateStrategy struct {
	name string
	fn   func(ctx context.Context, l *lateLookup) (int, bool)
}

// LateResolver tries its strategies in order; the first cutoff wins.
type LateResolver struct {
	shifts     repository.ShiftsRepository
	fallback   map[domain.ShiftCode]int
	logger     *zap.Logger
	metrics    *metrics.Metrics
	strategies []lateStrategy
}

func NewLateResolver(shifts repository.ShiftsRepository, fallback map[domain.ShiftCode]int, logger *zap.Logger, m *metrics.Metrics) *LateResolver {
	if len(fallback) == 0 {
		fallback = DefaultFallbackCutoffs
	}
	r := &LateResolver{shifts: shifts, fallback: fallback, logger: logger, metrics: m}
	r.strategies = []lateStrategy{
		{name: "assignment_custom_start", fn: r.fromCustomStart},
		{name: "assignment_shift_definition", fn: r.fromAssignmentDefinition},
		{name: "shift_definition", fn: r.fromShiftDefinition},
	}
	return r
}

// IsLate reports whether NowMinutes is at or past the resolved cutoff.
func (r *LateResolver) IsLate(ctx context.Context, in LateInput) (bool, Threshold) {
	th := r.Threshold(ctx, in)
	return in.NowMinutes >= th.CutoffMinutes, th
}

// Threshold resolves the cutoff, ending in the hard-coded fallback.
func (r *LateResolver) Threshold(ctx context.Context, in LateInput) Threshold {
	l := &lateLookup{in: in}
	for _, s := range r.strategies {
		if cutoff, ok := s.fn(ctx, l); ok {
			return Threshold{CutoffMinutes: cutoff, Source: s.name}
		}
	}

	cutoff, ok := r.fallback[in.ShiftCode]
	if !ok {
		cutoff = r.fallback[domain.ShiftDay]
	}
	fields := []zap.Field{
		zap.Bool("degraded", true),
		zap.String("worker_id", in.WorkerID),
		zap.String("shift_code", string(in.ShiftCode)),
		zap.Int("cutoff_minutes", cutoff),
	}
	for _, err := range l.failures {
		fields = append(fields, zap.NamedError("lookup_error", err))
	}
	r.logger.Warn("Late threshold resolved from hard-coded fallback", fields...)
	r.metrics.RecordDegradedThreshold()
	return Threshold{CutoffMinutes: cutoff, Source: "hard_coded_fallback", Degraded: true}
}

func (r *LateResolver) loadAssignment(ctx context.Context, l *lateLookup) *domain.ShiftAssignment {
	if l.loaded {
		return l.assignment
	}
	l.loaded = true
	if l.in.WorkerID == "" || l.in.Date.IsZero() {
		return nil
	}
	a, err := r.shifts.GetAssignment(ctx, l.in.WorkerID, l.in.Date)
	if err != nil {
		if !domain.IsNotFound(err) {
			l.failures = append(l.failures, err)
		}
		return nil
	}
	if a.Active() {
		l.assignment = a
	}
	return l.assignment
}

func (r *LateResolver) definitionCutoff(ctx context.Context, l *lateLookup, code domain.ShiftCode) (int, bool) {
	if code == "" {
		return 0, false
	}
	def, err := r.shifts.GetShiftDefinition(ctx, code)
	if err != nil {
		if !domain.IsNotFound(err) {
			l.failures = append(l.failures, err)
		}
		return 0, false
	}
	return def.LateCutoffMinutes(), true
}

func (r *LateResolver) fromCustomStart(ctx context.Context, l *lateLookup) (int, bool) {
	a := r.loadAssignment(ctx, l)
	if a == nil || a.CustomStart == nil {
		return 0, false
	}
	return a.CustomStart.Minutes() + CustomStartGraceMinutes, true
}

func (r *LateResolver) fromAssignmentDefinition(ctx context.Context, l *lateLookup) (int, bool) {
	a := r.loadAssignment(ctx, l)
	if a == nil {
		return 0, false
	}
	return r.definitionCutoff(ctx, l, a.ShiftCode)
}

func (r *LateResolver) fromShiftDefinition(ctx context.Context, l *lateLookup) (int, bool) {
	return r.definitionCutoff(ctx, l, l.in.ShiftCode)
}
