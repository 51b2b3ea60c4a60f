package service

import (
	"context"
	"errors"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

// Authorizer resolves a caller and checks one capability.
type Authorizer interface {
	Authorize(ctx context.Context, callerID string, action domain.Action) (*domain.Caller, error)
}

// RoleAuthorizer checks the caller's role permissions stored with the users.
type RoleAuthorizer struct {
	users repository.UserRepository
}

// NewRoleAuthorizer creates a new RoleAuthorizer.
func NewRoleAuthorizer(users repository.UserRepository) *RoleAuthorizer {
	return &RoleAuthorizer{users: users}
}

// Authorize returns the caller if it is active and its role allows action.
func (a *RoleAuthorizer) Authorize(ctx context.Context, callerID string, action domain.Action) (*domain.Caller, error) {
	deny := func(reason string) error {
		return &domain.AuthorizationError{CallerID: callerID, Action: action.String(), Reason: reason}
	}

	if callerID == "" {
		return nil, deny("no caller identity")
	}

	caller, err := a.users.GetCaller(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, deny("unknown caller")
		}
		return nil, domain.Upstream("store", "get caller", err)
	}

	if !caller.IsActive {
		return nil, deny("caller is inactive")
	}
	if !caller.Permissions.Allows(action) {
		return nil, deny("role " + caller.RoleID + " lacks permission")
	}

	return caller, nil
}

var _ Authorizer = (*RoleAuthorizer)(nil)
