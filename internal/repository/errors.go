package repository

import (
	"errors"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	// Repositories return a *domain.NotFoundError, which matches it.
	ErrNotFound = domain.ErrNotFound

	// ErrConflict is returned when a conditional write matched no row because
	// the entity changed since it was read.
	ErrConflict = errors.New("concurrent modification")
)

// NotFound builds the error returned for a missing entity.
func NotFound(kind, id string) error {
	return &domain.NotFoundError{Kind: kind, ID: id}
}
