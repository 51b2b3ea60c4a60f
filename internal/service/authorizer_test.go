package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/mocks"
	"github.com/assassinoNz/CarShare-Server/internal/service"
)

func TestRoleAuthorizer(t *testing.T) {
	t.Parallel()

	store := mocks.NewStore()
	store.AddCaller(mocks.NewCaller("member"))
	store.AddCaller(&domain.Caller{ID: "inactive", RoleID: "member", Permissions: mocks.FullAccess})
	store.AddCaller(&domain.Caller{ID: "reader", RoleID: "guest", IsActive: true, Permissions: domain.Permissions{
		domain.ModuleHandshakes: "0100",
	}})

	testCases := []struct {
		name     string
		callerID string
		action   domain.Action
		wantErr  error
	}{
		{name: "allowed", callerID: "member", action: domain.ActionUpdateHandshake},
		{name: "read only allowed", callerID: "reader", action: domain.ActionRetrieveHandshake},
		{name: "read only cannot update", callerID: "reader", action: domain.ActionUpdateHandshake, wantErr: domain.ErrUnauthorized},
		{name: "module missing", callerID: "reader", action: domain.ActionCreateHostedTrip, wantErr: domain.ErrUnauthorized},
		{name: "inactive", callerID: "inactive", action: domain.ActionRetrieveHandshake, wantErr: domain.ErrUnauthorized},
		{name: "unknown", callerID: "ghost", action: domain.ActionRetrieveHandshake, wantErr: domain.ErrUnauthorized},
		{name: "anonymous", callerID: "", action: domain.ActionRetrieveHandshake, wantErr: domain.ErrUnauthorized},
	}

	authz := service.NewRoleAuthorizer(store.Users())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			caller, err := authz.Authorize(context.Background(), tc.callerID, tc.action)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if caller.ID != tc.callerID {
				t.Errorf("expected caller %s, got %s", tc.callerID, caller.ID)
			}
		})
	}
}

func TestRoleAuthorizer_StoreFailure(t *testing.T) {
	t.Parallel()
	store := mocks.NewStore()
	users := store.Users()
	users.GetError = errors.New("timeout")

	_, err := service.NewRoleAuthorizer(users).Authorize(context.Background(), "member", domain.ActionRetrieveHandshake)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}
