// Package assignment computes which drivers may see and claim a request.
package assignment

import (
	"context"
	"errors"

	"github.com/kamenolom/transport-service/internal/models"
)

// Directory is the identity collaborator the resolver reads from.
type Directory interface {
	// ListTransportDrivers returns the ids of all drivers with transport access.
	ListTransportDrivers(ctx context.Context) ([]string, error)
	// GetGroup returns models.ErrNotFound when the id is not a group,
	// in which case the id is taken as a direct driver id.
	GetGroup(ctx context.Context, groupID string) (*models.DriverGroup, error)
}

type Resolver struct {
	Dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{Dir: dir}
}

// EligibleDrivers returns the set of driver ids allowed to act on the
// request. Group membership is expanded at call time, never snapshotted,
// so editing a group retroactively changes visibility.
func (r *Resolver) EligibleDrivers(ctx context.Context, req *models.TransportRequest) (map[string]struct{}, error) {
	eligible := make(map[string]struct{})
	if req.AssignedAll {
		drivers, err := r.Dir.ListTransportDrivers(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range drivers {
			eligible[id] = struct{}{}
		}
		return eligible, nil
	}

	for _, id := range req.AssignedIDs {
		group, err := r.Dir.GetGroup(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				eligible[id] = struct{}{}
				continue
			}
			return nil, err
		}
		for _, member := range group.MemberUserIDs {
			eligible[member] = struct{}{}
		}
	}
	return eligible, nil
}

// IsEligible reports whether the driver may act on the request.
func (r *Resolver) IsEligible(ctx context.Context, req *models.TransportRequest, driverID string) (bool, error) {
	if req.AssignedAll {
		return true, nil
	}
	eligible, err := r.EligibleDrivers(ctx, req)
	if err != nil {
		return false, err
	}
	_, ok := eligible[driverID]
	return ok, nil
}
