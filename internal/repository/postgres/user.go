package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetCaller retrieves a user together with its role's permission values.
func (r *UserRepository) GetCaller(ctx context.Context, id string) (*domain.Caller, error) {
	query := `
		SELECT u.id, u.role_id, u.is_active, p.module, p.value
		FROM users u
		LEFT JOIN role_permissions p ON p.role_id = u.role_id
		WHERE u.id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var caller *domain.Caller
	for rows.Next() {
		var c domain.Caller
		var module, value sql.NullString
		if err := rows.Scan(&c.ID, &c.RoleID, &c.IsActive, &module, &value); err != nil {
			return nil, err
		}
		if caller == nil {
			c.Permissions = domain.Permissions{}
			caller = &c
		}
		if module.Valid {
			caller.Permissions[domain.Module(module.String)] = value.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if caller == nil {
		return nil, repository.NotFound("user", id)
	}
	return caller, nil
}

// VehicleRepository implements repository.VehicleRepository using PostgreSQL.
type VehicleRepository struct {
	db *sql.DB
}

// NewVehicleRepository creates a new VehicleRepository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `
		SELECT id, owner_id, number, model, feature_ac, feature_luggage, is_active
		FROM vehicles WHERE id = $1
	`
	var v domain.Vehicle
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.OwnerID, &v.Number, &v.Model, &v.Features.AC, &v.Features.Luggage, &v.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.NotFound("vehicle", id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

var (
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.VehicleRepository = (*VehicleRepository)(nil)
)
