package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
)

var testDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestShiftResolver_Order(t *testing.T) {
	dir := repository.NewMemoryDirectory()
	r := NewShiftResolver(dir, nil, zap.NewNop())
	ctx := context.Background()

	worker := domain.Worker{WorkerID: "w-1", DefaultShift: domain.ShiftDay, Position: "Night guard"}

	tests := []struct {
		name       string
		setup      func()
		in         ShiftInput
		wantCode   domain.ShiftCode
		wantSource string
	}{
		{
			name:       "explicit wins over everything",
			in:         ShiftInput{Explicit: domain.ShiftNight, Worker: worker, Date: testDate},
			wantCode:   domain.ShiftNight,
			wantSource: "explicit",
		},
		{
			name:       "worker default before position keyword",
			in:         ShiftInput{Worker: worker, Date: testDate},
			wantCode:   domain.ShiftDay,
			wantSource: "worker_default",
		},
		{
			name:       "position keyword when no default",
			in:         ShiftInput{Worker: domain.Worker{WorkerID: "w-2", Position: "Ночной администратор"}, Date: testDate},
			wantCode:   domain.ShiftNight,
			wantSource: "position_keyword",
		},
		{
			name:       "keyword must be a whole word",
			in:         ShiftInput{Worker: domain.Worker{WorkerID: "w-3", Position: "Tunnel technician"}, Date: testDate},
			wantCode:   domain.ShiftDay,
			wantSource: "default_day",
		},
		{
			name: "published assignment beats default",
			setup: func() {
				dir.PutAssignment(domain.ShiftAssignment{WorkerID: "w-1", Date: testDate, ShiftCode: domain.ShiftNight, ScheduleStatus: domain.SchedulePublished})
			},
			in:         ShiftInput{Worker: worker, Date: testDate},
			wantCode:   domain.ShiftNight,
			wantSource: "assignment",
		},
		{
			name:       "invalid explicit code is no opinion",
			in:         ShiftInput{Explicit: "evening", Worker: domain.Worker{WorkerID: "w-4", DefaultShift: domain.ShiftNight}, Date: testDate},
			wantCode:   domain.ShiftNight,
			wantSource: "worker_default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			code, source := r.ResolveWithSource(ctx, tt.in)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestShiftResolver_StoreFailureIsSkipped(t *testing.T) {
	dir := repository.NewMemoryDirectory()
	dir.FailShiftLookups(errors.New("connection refused"))
	r := NewShiftResolver(dir, nil, zap.NewNop())

	code := r.Resolve(context.Background(), ShiftInput{Worker: domain.Worker{WorkerID: "w-1", DefaultShift: domain.ShiftNight}, Date: testDate})
	assert.Equal(t, domain.ShiftNight, code)
}

// A day worker checking in near midnight stays on day shift.
func TestShiftResolver_IgnoresTimeOfDay(t *testing.T) {
	dir := repository.NewMemoryDirectory()
	r := NewShiftResolver(dir, nil, zap.NewNop())

	lateNight := time.Date(2024, 1, 1, 23, 40, 0, 0, time.UTC)
	code := r.Resolve(context.Background(), ShiftInput{
		Worker: domain.Worker{WorkerID: "w-1", DefaultShift: domain.ShiftDay, Position: "Cashier"},
		Date:   lateNight,
	})
	assert.Equal(t, domain.ShiftDay, code)

	code = r.Resolve(context.Background(), ShiftInput{
		Worker: domain.Worker{WorkerID: "w-2", Position: "Cashier"},
		Date:   lateNight,
	})
	assert.Equal(t, domain.ShiftDay, code)
}

func TestShiftResolver_CustomKeywords(t *testing.T) {
	r := NewShiftResolver(repository.NewMemoryDirectory(), []string{"Graveyard"}, zap.NewNop())
	code := r.Resolve(context.Background(), ShiftInput{Worker: domain.Worker{Position: "graveyard porter"}})
	assert.Equal(t, domain.ShiftNight, code)
}
