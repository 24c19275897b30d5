// Package geofence matches an observed network address against the
// registered office addresses of each branch.
package geofence

import (
	"context"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
)

// Result of a geofence check. Branch is nil when nothing matched.
type Result struct {
	Matched         bool
	Branch          *domain.Branch
	ObservedAddress string
}

// Match compares address against each branch in order; the first branch
// listing it wins. The unknown sentinel and the empty string never match.
func Match(address string, branches []domain.Branch) Result {
	res := Result{ObservedAddress: address}
	if address == "" || address == UnknownAddress {
		return res
	}
	for i := range branches {
		for _, a := range branches[i].Addresses {
			if a == address {
				b := branches[i]
				res.Matched = true
				res.Branch = &b
				return res
			}
		}
	}
	return res
}

// Verifier loads branches from the directory and runs Match.
type Verifier struct {
	branches repository.BranchesRepository
	logger   *zap.Logger
}

func NewVerifier(branches repository.BranchesRepository, logger *zap.Logger) *Verifier {
	return &Verifier{branches: branches, logger: logger}
}

// Verify fails only when the branch list cannot be loaded.
func (v *Verifier) Verify(ctx context.Context, address string) (Result, error) {
	branches, err := v.branches.ListBranches(ctx)
	if err != nil {
		return Result{ObservedAddress: address}, err
	}
	res := Match(address, branches)
	if res.Matched {
		v.logger.Debug("Geofence matched",
			zap.String("observed_address", address),
			zap.String("branch_id", res.Branch.BranchID),
		)
	} else {
		v.logger.Debug("Geofence did not match", zap.String("observed_address", address))
	}
	return res, nil
}
