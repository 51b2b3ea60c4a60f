package service

import (
	"errors"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

var (
	// ErrRebuildInProgress is returned when another process holds the grid rebuild lock.
	ErrRebuildInProgress = errors.New("tile grid rebuild already in progress")

	// ErrNoActiveGrid is returned when no tile grid has been activated yet.
	ErrNoActiveGrid = errors.New("no active tile grid")
)

// storeError marks a repository failure as upstream unless it already
// carries a domain kind such as not found.
func storeError(op string, err error) error {
	return domain.Upstream("store", op, err)
}
