package mocks

import (
	"context"
	"strings"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

// FullAccess grants every operation on every trip and handshake module.
var FullAccess = domain.Permissions{
	domain.ModuleHostedTrips:    "1111",
	domain.ModuleRequestedTrips: "1111",
	domain.ModuleHandshakes:     "1111",
	domain.ModuleVehicles:       "1111",
}

// NewCaller returns an active caller with FullAccess.
func NewCaller(id string) *domain.Caller {
	return &domain.Caller{ID: id, RoleID: "member", IsActive: true, Permissions: FullAccess}
}

// UserRepository is an in-memory repository.UserRepository.
type UserRepository struct {
	s *Store

	GetError error
}

// Users returns the user repository of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

func (r *UserRepository) GetCaller(ctx context.Context, id string) (*domain.Caller, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.callers[id]
	if !ok {
		return nil, repository.NotFound("user", id)
	}
	cp := *c
	return &cp, nil
}

// VehicleRepository is an in-memory repository.VehicleRepository.
type VehicleRepository struct{ s *Store }

// Vehicles returns the vehicle repository of the store.
func (s *Store) Vehicles() *VehicleRepository { return &VehicleRepository{s: s} }

func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.vehicles[id]
	if !ok {
		return nil, repository.NotFound("vehicle", id)
	}
	cp := *v
	return &cp, nil
}

// Authorizer admits every non-empty caller except for denied actions. It
// satisfies the services' Authorizer interface without the user store.
type Authorizer struct {
	Denied map[domain.Action]bool
}

// NewAuthorizer creates an Authorizer that allows everything.
func NewAuthorizer() *Authorizer {
	return &Authorizer{Denied: make(map[domain.Action]bool)}
}

// Deny refuses action for every caller.
func (a *Authorizer) Deny(action domain.Action) { a.Denied[action] = true }

func (a *Authorizer) Authorize(ctx context.Context, callerID string, action domain.Action) (*domain.Caller, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, &domain.AuthorizationError{Action: action.String(), Reason: "no caller identity"}
	}
	if a.Denied[action] {
		return nil, &domain.AuthorizationError{CallerID: callerID, Action: action.String(), Reason: "denied"}
	}
	return NewCaller(callerID), nil
}

var (
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.VehicleRepository = (*VehicleRepository)(nil)
)
