package repository

import (
	"context"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// UserRepository resolves callers and their role permissions.
type UserRepository interface {
	// GetCaller retrieves a user with the permissions of its role.
	GetCaller(ctx context.Context, id string) (*domain.Caller, error)
}

// VehicleRepository defines the persistence operations for vehicles.
type VehicleRepository interface {
	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)
}
