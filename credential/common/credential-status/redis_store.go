package credentialstatus

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

// Redis key prefixes. Bitmaps use Redis' native bit order, which is
// MSB-first like the StatusList2021 encoding.
const (
	sequenceKeyPrefix = "statuslist:seq:"
	metaKeyPrefix     = "statuslist:meta:"
	bitsKeyPrefix     = "statuslist:bits:"
)

// RedisStore is a Store backed by Redis, suitable for several issuer
// instances sharing the same lists.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a RedisStore. The client lifecycle is managed by the caller.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Next(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, sequenceKeyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment status list sequence: %w", err)
	}
	return n - 1, nil
}

func (s *RedisStore) SaveList(ctx context.Context, info ListInfo) error {
	key := metaKeyPrefix + info.ID
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, key, "issuer", info.Issuer)
	pipe.HSetNX(ctx, key, "purpose", info.Purpose)
	pipe.HSetNX(ctx, key, "size", strconv.Itoa(info.Size))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save status list %s: %w", info.ID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, listID string) (*ListInfo, error) {
	fields, err := s.client.HGetAll(ctx, metaKeyPrefix+listID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load status list %s: %w", listID, err)
	}
	if len(fields) == 0 {
		return nil, model.NewError(model.KindNotFound, "listID", "status list %s not found", listID)
	}
	size, err := strconv.Atoi(fields["size"])
	if err != nil {
		return nil, fmt.Errorf("status list %s has invalid size %q: %w", listID, fields["size"], err)
	}
	return &ListInfo{
		ID:      listID,
		Issuer:  fields["issuer"],
		Purpose: fields["purpose"],
		Size:    size,
	}, nil
}

func (s *RedisStore) SetBit(ctx context.Context, listID string, index int, value bool) (bool, error) {
	info, err := s.List(ctx, listID)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= info.Size {
		return false, model.Validation("statusListIndex", "%v: %d not in [0, %d)", util.ErrIndexOutOfRange, index, info.Size)
	}
	bit := 0
	if value {
		bit = 1
	}
	previous, err := s.client.SetBit(ctx, bitsKeyPrefix+listID, int64(index), bit).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set status bit: %w", err)
	}
	return previous == 1, nil
}

func (s *RedisStore) Bits(ctx context.Context, listID string, size int) (util.Bitstring, error) {
	if _, err := s.List(ctx, listID); err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, bitsKeyPrefix+listID).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load status bits: %w", err)
	}
	// Redis only materializes the bitmap up to the highest bit ever set.
	out := util.NewBitstring(size)
	copy(out, raw)
	return out, nil
}
