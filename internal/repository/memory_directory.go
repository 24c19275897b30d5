package repository

import (
	"context"
	"sync"
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

// MemoryDirectory: workers, branches and shift configuration held in memory.
// Used when DB_ENABLED=false and by engine tests.
type MemoryDirectory struct {
	mu sync.RWMutex

	workers     map[string]domain.Worker // workerID -> worker
	branches    []domain.Branch          // insertion order is iteration order
	definitions map[domain.ShiftCode]domain.ShiftDefinition
	assignments map[string]domain.ShiftAssignment // workerID|date -> assignment

	// shiftsErr, when set, is returned by every shift lookup.
	shiftsErr error
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		workers:     map[string]domain.Worker{},
		definitions: map[domain.ShiftCode]domain.ShiftDefinition{},
		assignments: map[string]domain.ShiftAssignment{},
	}
}

var (
	_ WorkersRepository  = (*MemoryDirectory)(nil)
	_ BranchesRepository = (*MemoryDirectory)(nil)
	_ ShiftsRepository   = (*MemoryDirectory)(nil)
)

func (d *MemoryDirectory) PutWorker(w domain.Worker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workers[w.WorkerID] = w
}

func (d *MemoryDirectory) PutBranch(b domain.Branch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.branches {
		if d.branches[i].BranchID == b.BranchID {
			d.branches[i] = b
			return
		}
	}
	d.branches = append(d.branches, b)
}

func (d *MemoryDirectory) PutShiftDefinition(def domain.ShiftDefinition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.definitions[def.Code] = def
}

func (d *MemoryDirectory) PutAssignment(a domain.ShiftAssignment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assignments[assignmentKey(a.WorkerID, a.Date)] = a
}

// FailShiftLookups makes every shift lookup return err (nil restores normal behaviour).
func (d *MemoryDirectory) FailShiftLookups(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shiftsErr = err
}

func (d *MemoryDirectory) GetWorker(_ context.Context, workerID string) (*domain.Worker, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.workers[workerID]
	if !ok {
		return nil, domain.NotFoundf("worker %s not found", workerID)
	}
	return &w, nil
}

func (d *MemoryDirectory) GetWorkerByHandle(_ context.Context, handle string) (*domain.Worker, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, w := range d.workers {
		if w.ExternalHandle == handle {
			w := w
			return &w, nil
		}
	}
	return nil, domain.NotFoundf("worker with handle %s not found", handle)
}

func (d *MemoryDirectory) ListBranches(_ context.Context) ([]domain.Branch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Branch, len(d.branches))
	copy(out, d.branches)
	return out, nil
}

func (d *MemoryDirectory) GetBranch(_ context.Context, branchID string) (*domain.Branch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, b := range d.branches {
		if b.BranchID == branchID {
			b := b
			return &b, nil
		}
	}
	return nil, domain.NotFoundf("branch %s not found", branchID)
}

func (d *MemoryDirectory) GetShiftDefinition(_ context.Context, code domain.ShiftCode) (*domain.ShiftDefinition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.shiftsErr != nil {
		return nil, domain.Unavailable("query shift definition", d.shiftsErr)
	}
	def, ok := d.definitions[code]
	if !ok {
		return nil, domain.NotFoundf("shift definition %s not found", code)
	}
	return &def, nil
}

func (d *MemoryDirectory) GetAssignment(_ context.Context, workerID string, date time.Time) (*domain.ShiftAssignment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.shiftsErr != nil {
		return nil, domain.Unavailable("query shift assignment", d.shiftsErr)
	}
	a, ok := d.assignments[assignmentKey(workerID, date)]
	if !ok || !a.Active() {
		return nil, domain.NotFoundf("no shift assignment for worker %s on %s", workerID, date.Format(clock.DateLayout))
	}
	return &a, nil
}

func assignmentKey(workerID string, date time.Time) string {
	return workerID + "|" + date.Format(clock.DateLayout)
}
