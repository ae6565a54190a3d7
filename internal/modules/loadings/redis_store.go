package loadings

import (
	"context"
	"fmt"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisKeyPrefix prefixes the hash holding every date of one store.
const RedisKeyPrefix = "factorlab:loadings:"

// RedisStore keeps each store in one Redis hash, one field per date key.
// HSET of a single field is atomic, so readers never observe a partial table.
type RedisStore struct {
	client redis.Cmdable
	log    zerolog.Logger
}

// NewRedisStore creates a store over a Redis client
func NewRedisStore(client redis.Cmdable, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		log:    log.With().Str("component", "redis_store").Logger(),
	}
}

// HashKey returns the Redis key of a store.
func HashKey(storeID string) string {
	return RedisKeyPrefix + storeID
}

// Persist writes the encoded table into the store's hash.
func (s *RedisStore) Persist(ctx context.Context, storeID, dateKey string, table domain.FactorTable) error {
	if err := ValidateKey(storeID, dateKey); err != nil {
		return err
	}
	if err := validateTable(table); err != nil {
		return err
	}

	data, err := encodeTable(table)
	if err != nil {
		return err
	}

	if err := s.client.HSet(ctx, HashKey(storeID), dateKey, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to store factor table %s_%s: %w", storeID, dateKey, err)
	}

	s.log.Debug().
		Str("store_id", storeID).
		Str("date_key", dateKey).
		Int("rows", table.Len()).
		Msg("Persisted factor table")

	return nil
}

// Load returns the table of (store id, date key), or an empty table.
func (s *RedisStore) Load(ctx context.Context, storeID, dateKey string) (domain.FactorTable, error) {
	if err := ValidateKey(storeID, dateKey); err != nil {
		return domain.FactorTable{}, err
	}

	data, err := s.client.HGet(ctx, HashKey(storeID), dateKey).Bytes()
	if err == redis.Nil {
		return emptyTable(), nil
	}
	if err != nil {
		return domain.FactorTable{}, fmt.Errorf("failed to fetch factor table %s_%s: %w", storeID, dateKey, err)
	}

	table, err := decodeTable(data)
	if err != nil {
		return domain.FactorTable{}, fmt.Errorf("%s_%s: %w", storeID, dateKey, err)
	}
	return table, nil
}
