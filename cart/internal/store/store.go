package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/alfikri/estore-bff/internal/log"
	"github.com/alfikri/estore-bff/internal/otel"
)

var (
	// ErrUnreachable wraps transport failures talking to redis.
	ErrUnreachable = errors.New("cart store unreachable")
	// ErrNotFound means the cart key is absent or expired.
	ErrNotFound = errors.New("cart not found")
	// ErrMalformedCart means the persisted document failed schema validation.
	ErrMalformedCart = errors.New("malformed cart document")
)

// Store persists cart documents in redis. Load-mutate-persist is not
// transactional: concurrent writers to the same cart key race and the last
// SET wins. See DESIGN.md before strengthening this to CAS.
type Store struct {
	cache *redis.Client
	ttl   time.Duration
}

func New(cache *redis.Client, ttl time.Duration) *Store {
	return &Store{cache: cache, ttl: ttl}
}

// GetCart loads and validates the cart document stored under id. The cart TTL
// is refreshed on a successful read, keeping active sessions alive.
func (s *Store) GetCart(c context.Context, id string) (Cart, error) {
	c, span := otel.Tracer.Start(c, "CartStore GetCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartStore GetCart").
		Str(log.KeyCartId, id).
		Logger()

	raw, err := s.cache.Get(c, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logger.Info().Msg("cart does not exist")
			return Cart{}, fmt.Errorf("cartId=%s with error=%w", id, ErrNotFound)
		}
		err = fmt.Errorf("failed retrieving cartId=%s with error=%w: %w", id, ErrUnreachable, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Cart{}, err
	}

	cart := Cart{}
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		err = fmt.Errorf("failed unmarshaling cartId=%s with error=%w: %w", id, ErrMalformedCart, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Cart{}, err
	}
	if err := cart.Validate(); err != nil {
		err = fmt.Errorf("failed validating cartId=%s with error=%w", id, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Cart{}, err
	}

	if err := s.cache.Expire(c, id, s.ttl).Err(); err != nil {
		logger.Warn().Err(err).Msg("failed refreshing cart ttl on read")
	}

	logger.Info().Msg("cart retrieved")
	return cart, nil
}

// CreateCart writes cart under id with the configured TTL, overwriting any
// existing document.
func (s *Store) CreateCart(c context.Context, id string, cart Cart) (Cart, error) {
	c, span := otel.Tracer.Start(c, "CartStore CreateCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartStore CreateCart").
		Str(log.KeyCartId, id).
		Logger()

	if err := s.persist(c, id, cart); err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Cart{}, err
	}

	logger.Info().Msg("cart created")
	return cart, nil
}

// UpdateCart persists cart under id. With merge set, an already persisted
// document absorbs the incoming items and promotions first (bundle linkage is
// propagated, promotions are unioned); without merge, or when no document
// exists yet, the incoming cart replaces whatever is stored.
func (s *Store) UpdateCart(c context.Context, id string, cart Cart, merge bool) (Cart, error) {
	c, span := otel.Tracer.Start(c, "CartStore UpdateCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartStore UpdateCart").
		Str(log.KeyCartId, id).
		Bool("merge", merge).
		Logger()

	updated := cart
	if merge {
		existing, err := s.GetCart(c, id)
		switch {
		case err == nil:
			logger.Info().Msg("merging incoming cart into existing cart")
			updated = mergeCarts(existing, cart)
		case errors.Is(err, ErrNotFound):
			logger.Info().Msg("cart did not exist, creating new cart")
		default:
			return Cart{}, err
		}
	}

	if err := s.persist(c, id, updated); err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Cart{}, err
	}

	logger.Info().Msg("cart updated")
	return updated, nil
}

// RenameCart rekeys a cart, used when an anonymous cart is claimed by a
// signed-in user.
func (s *Store) RenameCart(c context.Context, oldKey, newKey string) error {
	c, span := otel.Tracer.Start(c, "CartStore RenameCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartStore RenameCart").
		Str("oldKey", oldKey).
		Str("newKey", newKey).
		Logger()

	if err := s.cache.Rename(c, oldKey, newKey).Err(); err != nil {
		if err.Error() == "ERR no such key" {
			logger.Info().Msg("cart to rename does not exist")
			return fmt.Errorf("cartId=%s with error=%w", oldKey, ErrNotFound)
		}
		err = fmt.Errorf("failed renaming cartId=%s with error=%w: %w", oldKey, ErrUnreachable, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger.Info().Msg("cart renamed")
	return nil
}

func (s *Store) DeleteCart(c context.Context, id string) error {
	c, span := otel.Tracer.Start(c, "CartStore DeleteCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartStore DeleteCart").
		Str(log.KeyCartId, id).
		Logger()

	if err := s.cache.Del(c, id).Err(); err != nil {
		err = fmt.Errorf("failed deleting cartId=%s with error=%w: %w", id, ErrUnreachable, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger.Info().Msg("cart deleted")
	return nil
}

func (s *Store) persist(c context.Context, id string, cart Cart) error {
	cart.Schema = SchemaVersion
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed marshaling cartId=%s with error=%w", id, err)
	}
	if err := s.cache.Set(c, id, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed persisting cartId=%s with error=%w: %w", id, ErrUnreachable, err)
	}
	return nil
}

// mergeCarts folds the incoming items into existing. Matching items keep
// bundle cross-references in sync and bump quantity; new child items inherit
// their parent's quantity; a new parent whose declared child already exists
// standalone is demoted to standalone to avoid a conflicting duplicate link.
func mergeCarts(existing, incoming Cart) Cart {
	for _, item := range incoming.Items {
		existingItem := existing.FindItem(item.ProductId)

		if existingItem != nil {
			// keep the bundle linkage intact in both directions
			if item.ChildProductId != "" {
				existingItem.ChildProductId = item.ChildProductId
			}
			if existingItem.ParentProductId != "" {
				item.ParentProductId = existingItem.ParentProductId
			}

			if item.ParentProductId != "" {
				if parent := existing.FindParentOf(item.ProductId); parent != nil {
					existingItem.Quantity = parent.Quantity
				}
			} else {
				existingItem.Quantity++
				if existingItem.ChildProductId != "" {
					if child := existing.FindItem(existingItem.ChildProductId); child != nil {
						child.Quantity = existingItem.Quantity
					}
				}
			}
			continue
		}

		if item.ParentProductId != "" {
			if parent := existing.FindParentOf(item.ProductId); parent != nil {
				item.Quantity = parent.Quantity
			}
		}
		if item.ChildProductId != "" && existing.FindItem(item.ChildProductId) != nil {
			item.ChildProductId = ""
		}
		existing.Items = append(existing.Items, item)
	}

	existing.Promotions = unionPromotions(existing.Promotions, incoming.Promotions)
	return existing
}

func unionPromotions(existing, incoming []string) []string {
	seen := map[string]struct{}{}
	union := make([]string, 0, len(existing)+len(incoming))
	for _, promotion := range append(append([]string{}, existing...), incoming...) {
		if _, ok := seen[promotion]; ok {
			continue
		}
		seen[promotion] = struct{}{}
		union = append(union, promotion)
	}
	return union
}
