// Package resolver decides which shift applies to a worker on a date and
// the minute-of-day after which arriving counts as late.
package resolver

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
)

// DefaultNightKeywords position-label words that mark a night worker.
var DefaultNightKeywords = []string{"night", "overnight", "ночь", "ночной", "ночная", "tun", "tungi"}

// ShiftInput everything the shift resolver may consult.
// Time of day is not an input.
type ShiftInput struct {
	Explicit domain.ShiftCode // optional caller override
	Worker   domain.Worker
	Date     time.Time // civil date
}

// shiftStrategy returns ok=false for "no opinion".
type shiftStrategy struct {
	name string
	fn   func(ctx context.Context, in ShiftInput) (domain.ShiftCode, bool)
}

// ShiftResolver tries its strategies in order; the first opinion wins.
type ShiftResolver struct {
	shifts     repository.ShiftsRepository
	keywords   map[string]struct{}
	logger     *zap.Logger
	strategies []shiftStrategy
}

func NewShiftResolver(shifts repository.ShiftsRepository, nightKeywords []string, logger *zap.Logger) *ShiftResolver {
	if len(nightKeywords) == 0 {
		nightKeywords = DefaultNightKeywords
	}
	kw := make(map[string]struct{}, len(nightKeywords))
	for _, k := range nightKeywords {
		kw[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}
	r := &ShiftResolver{shifts: shifts, keywords: kw, logger: logger}
	r.strategies = []shiftStrategy{
		{name: "explicit", fn: r.fromExplicit},
		{name: "assignment", fn: r.fromAssignment},
		{name: "worker_default", fn: r.fromWorkerDefault},
		{name: "position_keyword", fn: r.fromPosition},
	}
	return r
}

// Resolve never fails; it ends in day shift when nothing has an opinion.
func (r *ShiftResolver) Resolve(ctx context.Context, in ShiftInput) domain.ShiftCode {
	code, _ := r.ResolveWithSource(ctx, in)
	return code
}

// ResolveWithSource also names the strategy that decided.
func (r *ShiftResolver) ResolveWithSource(ctx context.Context, in ShiftInput) (domain.ShiftCode, string) {
	for _, s := range r.strategies {
		if code, ok := s.fn(ctx, in); ok {
			return code, s.name
		}
	}
	return domain.ShiftDay, "default_day"
}

func (r *ShiftResolver) fromExplicit(_ context.Context, in ShiftInput) (domain.ShiftCode, bool) {
	return domain.ParseShiftCode(string(in.Explicit))
}

func (r *ShiftResolver) fromAssignment(ctx context.Context, in ShiftInput) (domain.ShiftCode, bool) {
	if in.Worker.WorkerID == "" || in.Date.IsZero() {
		return "", false
	}
	a, err := r.shifts.GetAssignment(ctx, in.Worker.WorkerID, in.Date)
	if err != nil {
		if !domain.IsNotFound(err) {
			r.logger.Warn("Shift assignment lookup failed, skipping",
				zap.String("worker_id", in.Worker.WorkerID),
				zap.Error(err),
			)
		}
		return "", false
	}
	if !a.Active() {
		return "", false
	}
	return domain.ParseShiftCode(string(a.ShiftCode))
}

func (r *ShiftResolver) fromWorkerDefault(_ context.Context, in ShiftInput) (domain.ShiftCode, bool) {
	return domain.ParseShiftCode(string(in.Worker.DefaultShift))
}

func (r *ShiftResolver) fromPosition(_ context.Context, in ShiftInput) (domain.ShiftCode, bool) {
	if in.Worker.Position == "" {
		return "", false
	}
	if r.hasNightKeyword(in.Worker.Position) {
		return domain.ShiftNight, true
	}
	return "", false
}

// hasNightKeyword matches whole words only, so "Tunnel" never matches "tun".
func (r *ShiftResolver) hasNightKeyword(label string) bool {
	words := strings.FieldsFunc(strings.ToLower(label), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	for _, w := range words {
		if _, ok := r.keywords[w]; ok {
			return true
		}
	}
	return false
}
