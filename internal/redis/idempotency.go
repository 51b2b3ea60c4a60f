package redis

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPrefix = "idempotency:"

	// IdempotencyTTL is how long a replayable response is kept.
	IdempotencyTTL = 24 * time.Hour
)

// CachedResponse is a stored HTTP response replayed for a repeated request.
type CachedResponse struct {
	StatusCode int         `cbor:"1,keyasint"`
	Body       []byte      `cbor:"2,keyasint"`
	Headers    http.Header `cbor:"3,keyasint"`
}

// IdempotencyStore keeps responses of mutating requests by caller and key.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// IdempotencyKey scopes a client-supplied key to its caller, so two callers
// reusing a key never see each other's responses.
func IdempotencyKey(callerID, key string) string {
	return idempotencyPrefix + callerID + ":" + key
}

// GetResponse returns the stored response; ok is false on a miss.
func (s *IdempotencyStore) GetResponse(ctx context.Context, callerID, key string) (*CachedResponse, bool, error) {
	data, err := s.client.Get(ctx, IdempotencyKey(callerID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var resp CachedResponse
	if err := cbor.Unmarshal(data, &resp); err != nil {
		return nil, false, err
	}
	return &resp, true, nil
}

// SetResponse stores resp for ttl.
func (s *IdempotencyStore) SetResponse(ctx context.Context, callerID, key string, resp *CachedResponse, ttl time.Duration) error {
	data, err := cbor.Marshal(resp)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = IdempotencyTTL
	}
	return s.client.Set(ctx, IdempotencyKey(callerID, key), data, ttl).Err()
}
