package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

// PostgresDirectoryRepository reads workers and branches owned by the
// directory service.
type PostgresDirectoryRepository struct {
	db *sql.DB
}

func NewPostgresDirectoryRepository(db *sql.DB) *PostgresDirectoryRepository {
	return &PostgresDirectoryRepository{db: db}
}

var (
	_ WorkersRepository  = (*PostgresDirectoryRepository)(nil)
	_ BranchesRepository = (*PostgresDirectoryRepository)(nil)
)

const workerColumns = `
		worker_id::text,
		full_name,
		COALESCE(home_branch_id::text, ''),
		COALESCE(default_shift, ''),
		COALESCE(position, ''),
		external_handle`

func (r *PostgresDirectoryRepository) GetWorker(ctx context.Context, workerID string) (*domain.Worker, error) {
	if workerID == "" {
		return nil, domain.Validationf("worker_id is required")
	}
	query := `SELECT` + workerColumns + `
		FROM workers
		WHERE worker_id = $1`
	return r.scanWorker(r.db.QueryRowContext(ctx, query, workerID), "worker "+workerID)
}

func (r *PostgresDirectoryRepository) GetWorkerByHandle(ctx context.Context, handle string) (*domain.Worker, error) {
	if handle == "" {
		return nil, domain.Validationf("worker handle is required")
	}
	query := `SELECT` + workerColumns + `
		FROM workers
		WHERE external_handle = $1`
	return r.scanWorker(r.db.QueryRowContext(ctx, query, handle), "worker with handle "+handle)
}

func (r *PostgresDirectoryRepository) scanWorker(row *sql.Row, what string) (*domain.Worker, error) {
	var w domain.Worker
	var defaultShift string
	err := row.Scan(&w.WorkerID, &w.FullName, &w.HomeBranchID, &defaultShift, &w.Position, &w.ExternalHandle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("%s not found", what)
		}
		return nil, domain.Unavailable("query worker", err)
	}
	if code, ok := domain.ParseShiftCode(defaultShift); ok {
		w.DefaultShift = code
	}
	return &w, nil
}

func (r *PostgresDirectoryRepository) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	query := `
		SELECT branch_id::text, name, office_ips
		FROM branches
		ORDER BY created_at, branch_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.Unavailable("list branches", err)
	}
	defer rows.Close()

	var branches []domain.Branch
	for rows.Next() {
		var b domain.Branch
		var ips []string
		if err := rows.Scan(&b.BranchID, &b.Name, pq.Array(&ips)); err != nil {
			return nil, domain.Unavailable("scan branch", err)
		}
		b.Addresses = ips
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("list branches", err)
	}
	return branches, nil
}

func (r *PostgresDirectoryRepository) GetBranch(ctx context.Context, branchID string) (*domain.Branch, error) {
	if branchID == "" {
		return nil, domain.Validationf("branch_id is required")
	}
	query := `
		SELECT branch_id::text, name, office_ips
		FROM branches
		WHERE branch_id = $1`
	var b domain.Branch
	var ips []string
	err := r.db.QueryRowContext(ctx, query, branchID).Scan(&b.BranchID, &b.Name, pq.Array(&ips))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("branch %s not found", branchID)
		}
		return nil, domain.Unavailable("query branch", err)
	}
	b.Addresses = ips
	return &b, nil
}
