package redis

import (
	"strings"
	"testing"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

func TestRouteKey(t *testing.T) {
	t.Parallel()

	a := []domain.Coordinate{{Lat: 7.0915, Lng: 79.9948}, {Lat: 7.0347, Lng: 80.0261}}
	nudged := []domain.Coordinate{{Lat: 7.091500001, Lng: 79.994800001}, {Lat: 7.0347, Lng: 80.0261}}
	reversed := []domain.Coordinate{a[1], a[0]}

	if !strings.HasPrefix(RouteKey(a), routeCachePrefix) {
		t.Errorf("expected key prefix %q, got %q", routeCachePrefix, RouteKey(a))
	}
	if RouteKey(a) != RouteKey(nudged) {
		t.Error("waypoints inside the same cell should share a key")
	}
	if RouteKey(a) == RouteKey(reversed) {
		t.Error("waypoint order must be part of the key")
	}
}

func TestIdempotencyKey_ScopedByCaller(t *testing.T) {
	t.Parallel()

	if IdempotencyKey("alice", "k-1") == IdempotencyKey("bob", "k-1") {
		t.Error("expected different callers to get different keys")
	}
	if !strings.HasPrefix(IdempotencyKey("alice", "k-1"), idempotencyPrefix) {
		t.Errorf("expected prefix %q", idempotencyPrefix)
	}
}

func TestCollection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want string
	}{
		{RouteKey([]domain.Coordinate{{Lat: 7.1, Lng: 79.9}, {Lat: 7.0, Lng: 80.0}}), "cache:routes"},
		{activeGridCacheKey, "cache:grid:active"},
		{gridRebuildLockKey, "lock:grid:rebuild"},
		{IdempotencyKey("user-1", "k"), "idempotency"},
		{"something:else", "redis"},
	}

	for _, tt := range tests {
		if got := Collection(tt.key); got != tt.want {
			t.Errorf("Collection(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
