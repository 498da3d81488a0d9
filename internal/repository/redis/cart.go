package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const keyPrefix = "cart:"

var errVersionMismatch = errors.New("cart version mismatch")

// CartRepository implements repository.CartRepository using Redis. Each cart is
// a JSON document under cart:<kind>:<id> that expires after ttl without writes.
type CartRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client redis.UniversalClient, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func cartKey(owner domain.CartOwner) string {
	return keyPrefix + owner.Key()
}

// Get retrieves the owner's cart.
func (r *CartRepository) Get(ctx context.Context, owner domain.CartOwner) (cart *domain.Cart, err error) {
	key := cartKey(owner)
	ctx, end := database.TraceRedis(ctx, "GetCart", "GET "+key)
	defer func() { end(err) }()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", owner.Key())
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	return decodeCart(data)
}

// SaveIfVersion writes cart if the stored version equals expected.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int) (saved bool, err error) {
	key := cartKey(cart.Owner)
	ctx, end := database.TraceRedis(ctx, "SaveCartIfVersion", "WATCH "+key+" MULTI SET EXEC")
	defer func() { end(err) }()

	next, data, err := r.encodeNext(cart, expected)
	if err != nil {
		return false, err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		if err := expectVersion(ctx, tx, key, expected); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}, key)

	if saved, err = casResult(err); saved {
		*cart = *next
	}
	return saved, err
}

// Transfer writes cart and deletes the source owner's cart atomically.
func (r *CartRepository) Transfer(ctx context.Context, cart *domain.Cart, expected int, from domain.CartOwner, fromVersion int) (saved bool, err error) {
	key := cartKey(cart.Owner)
	fromKey := cartKey(from)
	ctx, end := database.TraceRedis(ctx, "TransferCart", "WATCH "+key+" "+fromKey+" MULTI SET DEL EXEC")
	defer func() { end(err) }()

	next, data, err := r.encodeNext(cart, expected)
	if err != nil {
		return false, err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		if err := expectVersion(ctx, tx, key, expected); err != nil {
			return err
		}
		if err := expectVersion(ctx, tx, fromKey, fromVersion); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, r.ttl)
			p.Del(ctx, fromKey)
			return nil
		})
		return err
	}, key, fromKey)

	if saved, err = casResult(err); saved {
		*cart = *next
	}
	return saved, err
}

// Delete removes the owner's cart.
func (r *CartRepository) Delete(ctx context.Context, owner domain.CartOwner) (deleted bool, err error) {
	key := cartKey(owner)
	ctx, end := database.TraceRedis(ctx, "DeleteCart", "DEL "+key)
	defer func() { end(err) }()

	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del cart: %w", err)
	}
	return n > 0, nil
}

// DeleteIfVersion removes the owner's cart if its version equals expected.
func (r *CartRepository) DeleteIfVersion(ctx context.Context, owner domain.CartOwner, expected int) (deleted bool, err error) {
	key := cartKey(owner)
	ctx, end := database.TraceRedis(ctx, "DeleteCartIfVersion", "WATCH "+key+" MULTI DEL EXEC")
	defer func() { end(err) }()

	if expected < 1 {
		return false, nil
	}
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		if err := expectVersion(ctx, tx, key, expected); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	return casResult(err)
}

// encodeNext returns a copy of cart at version expected+1 with a fresh expiry,
// and its JSON encoding.
func (r *CartRepository) encodeNext(cart *domain.Cart, expected int) (*domain.Cart, []byte, error) {
	next := *cart
	next.Version = expected + 1
	next.Touch(r.now(), r.ttl)
	data, err := json.Marshal(&next)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal cart: %w", err)
	}
	return &next, data, nil
}

// expectVersion fails with errVersionMismatch unless the cart at key has
// version expected. A missing key has version 0.
func expectVersion(ctx context.Context, tx *redis.Tx, key string, expected int) error {
	data, err := tx.Get(ctx, key).Bytes()
	current := 0
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return fmt.Errorf("redis get cart: %w", err)
	default:
		var v struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshal cart: %w", err)
		}
		current = v.Version
	}
	if current != expected {
		return errVersionMismatch
	}
	return nil
}

// casResult maps a WATCH transaction result to (saved, err). A version
// mismatch or an aborted EXEC is a lost race, not an error.
func casResult(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errVersionMismatch), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("redis cart transaction: %w", err)
	}
}

func decodeCart(data []byte) (*domain.Cart, error) {
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	return &cart, nil
}
