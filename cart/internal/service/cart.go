package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alfikri/estore-bff/cart/internal/store"
	"github.com/alfikri/estore-bff/cart/pkg/request"
	"github.com/alfikri/estore-bff/cart/pkg/response"
	"github.com/alfikri/estore-bff/catalog"
	inErrors "github.com/alfikri/estore-bff/internal/common/errors"
	"github.com/alfikri/estore-bff/internal/config"
	"github.com/alfikri/estore-bff/internal/log"
	"github.com/alfikri/estore-bff/internal/otel"
)

// productIdToken matches a plain price id or a bracketed parent/child bundle
// pair, e.g. "4369" or "[4369,5521]".
var (
	productIdToken = regexp.MustCompile(`(\d{3,}|\[\d{3,},\d{3,}\])`)
	numericRun     = regexp.MustCompile(`\d{3,}`)
)

type CartService struct {
	store           *store.Store
	catalog         *catalog.Client
	maxItemQuantity int
}

func NewCartService(
	cartStore *store.Store,
	catalogClient *catalog.Client,
	cfg config.Cart,
) CartService {
	return CartService{
		store:           cartStore,
		catalog:         catalogClient,
		maxItemQuantity: cfg.MaxItemQuantity,
	}
}

// mutation is one named cart state transition applied by updateCart. The set
// of mutations is closed: each endpoint binds exactly one at compile time.
type mutation func(cart *store.Cart) error

// updateCart runs the load-mutate-persist-reconcile cycle shared by every
// mutation endpoint.
func (s CartService) updateCart(
	c context.Context,
	cartId string,
	mutate mutation,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService updateCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService updateCart").
		Str(log.KeyCartId, cartId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "loading cart").Logger()
	logger.Info().Msg("loading cart")
	c = logger.WithContext(c)
	cart, err := s.store.GetCart(c, cartId)
	if err != nil {
		err = fmt.Errorf("failed loading cartId=%s with error=%w", cartId, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("loaded cart")

	logger = logger.With().Str(log.KeyProcess, "applying mutation").Logger()
	logger.Info().Msg("applying mutation")
	if err := mutate(&cart); err != nil {
		err = fmt.Errorf("failed mutating cartId=%s with error=%w", cartId, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("applied mutation")

	logger = logger.With().Str(log.KeyProcess, "persisting cart").Logger()
	logger.Info().Msg("persisting cart")
	updated, err := s.store.UpdateCart(c, cartId, cart, false)
	if err != nil {
		err = fmt.Errorf("failed persisting cartId=%s with error=%w", cartId, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("persisted cart")

	return s.generateCartResponse(c, cartId, updated)
}

// generateCartResponse fetches the offerings snapshot for the cart's product
// ids and reconciles. A cart without items short-circuits to an empty
// response without calling the catalog.
func (s CartService) generateCartResponse(
	c context.Context,
	cartId string,
	cart store.Cart,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService generateCartResponse")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService generateCartResponse").
		Str(log.KeyCartId, cartId).
		Logger()

	if len(cart.Items) == 0 {
		logger.Info().Msg("cart has no items, returning empty response")
		return response.Cart{
			LineItems:  []response.LineItem{},
			Promotions: []string{},
			Errors:     []response.CartError{},
		}, nil
	}

	storeKey := storeKeyFromCartId(cartId)
	logger = logger.With().
		Str(log.KeyStoreKey, storeKey).
		Str(log.KeyProcess, "fetching offerings").
		Logger()
	logger.Info().Msg("fetching offerings")
	c = logger.WithContext(c)
	offerings, err := s.catalog.OfferingsByPriceIds(c, storeKey, cart.ProductIds())
	if err != nil {
		err = fmt.Errorf("failed fetching offerings for cartId=%s with error=%w", cartId, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("fetched offerings")

	return s.CreateCartResponse(c, cartId, cart, offerings)
}

// GetCart loads and reconciles the cart; a missing cart yields an empty
// response rather than an error.
func (s CartService) GetCart(c context.Context, cartId string) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService GetCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService GetCart").
		Str(log.KeyCartId, cartId).
		Logger()

	c = logger.WithContext(c)
	cart, err := s.store.GetCart(c, cartId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Info().Msg("cart not found, returning empty response")
			return s.generateCartResponse(c, cartId, store.Cart{})
		}
		err = fmt.Errorf("failed loading cartId=%s with error=%w", cartId, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	return s.generateCartResponse(c, cartId, cart)
}

// AddItem increments the quantity of an existing item or appends a new one
// with quantity 1. Validation happens at reconciliation, not here.
func (s CartService) AddItem(
	c context.Context,
	cartId string,
	productId string,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddItem").
		Str(log.KeyCartId, cartId).
		Str(log.KeyProductId, productId).
		Logger()
	logger.Info().Msg("adding item")

	c = logger.WithContext(c)
	return s.updateCart(c, cartId, func(cart *store.Cart) error {
		if item := cart.FindItem(productId); item != nil {
			item.Quantity++
			return nil
		}
		cart.Items = append(cart.Items, store.Item{ProductId: productId, Quantity: 1})
		return nil
	})
}

// RemoveItem removes the item with productId and cascades to its linked
// child. Removing a child leaves its parent in place.
func (s CartService) RemoveItem(
	c context.Context,
	cartId string,
	productId string,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveItem").
		Str(log.KeyCartId, cartId).
		Str(log.KeyProductId, productId).
		Logger()
	logger.Info().Msg("removing item")

	c = logger.WithContext(c)
	return s.updateCart(c, cartId, func(cart *store.Cart) error {
		kept := cart.Items[:0]
		removed := 0
		for _, item := range cart.Items {
			if item.ProductId == productId || item.ParentProductId == productId {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		if removed == 0 {
			return inErrors.ErrNothingRemoved
		}
		cart.Items = kept
		return nil
	})
}

// UpdateQuantity sets the quantity of an existing non-child item, clamped to
// [1, maxItemQuantity], and mirrors it onto a linked child. A zero quantity
// removes the item and its child.
func (s CartService) UpdateQuantity(
	c context.Context,
	cartId string,
	productId string,
	quantity float64,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService UpdateQuantity")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService UpdateQuantity").
		Str(log.KeyCartId, cartId).
		Str(log.KeyProductId, productId).
		Float64(log.KeyQuantity, quantity).
		Logger()
	logger.Info().Msg("updating item quantity")

	c = logger.WithContext(c)
	return s.updateCart(c, cartId, func(cart *store.Cart) error {
		item := cart.FindItem(productId)
		if item == nil {
			return inErrors.ErrItemNotFound
		}
		if item.ParentProductId != "" {
			return inErrors.ErrChildQuantityUpdate
		}

		if quantity == 0 {
			childProductId := item.ChildProductId
			kept := cart.Items[:0]
			for _, current := range cart.Items {
				if current.ProductId == productId ||
					(childProductId != "" && current.ProductId == childProductId) {
					continue
				}
				kept = append(kept, current)
			}
			cart.Items = kept
			return nil
		}

		item.Quantity = s.clampQuantity(quantity)
		if item.ChildProductId != "" {
			if child := cart.FindItem(item.ChildProductId); child != nil {
				child.Quantity = item.Quantity
			}
		}
		return nil
	})
}

func (s CartService) clampQuantity(quantity float64) int {
	clamped := int(math.Round(math.Abs(quantity)))
	if clamped < 1 {
		clamped = 1
	}
	if clamped > s.maxItemQuantity {
		clamped = s.maxItemQuantity
	}
	return clamped
}

// AddPromotion appends a promotion code if it is not already present.
func (s CartService) AddPromotion(
	c context.Context,
	cartId string,
	promotion string,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService AddPromotion")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddPromotion").
		Str(log.KeyCartId, cartId).
		Str(log.KeyPromotion, promotion).
		Logger()
	logger.Info().Msg("adding promotion")

	c = logger.WithContext(c)
	return s.updateCart(c, cartId, func(cart *store.Cart) error {
		for _, existing := range cart.Promotions {
			if existing == promotion {
				return nil
			}
		}
		cart.Promotions = append(cart.Promotions, promotion)
		return nil
	})
}

// RemovePromotion removes a promotion code. A cart without promotions, or a
// code that is not present, is a precondition error.
func (s CartService) RemovePromotion(
	c context.Context,
	cartId string,
	promotion string,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService RemovePromotion")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemovePromotion").
		Str(log.KeyCartId, cartId).
		Str(log.KeyPromotion, promotion).
		Logger()
	logger.Info().Msg("removing promotion")

	c = logger.WithContext(c)
	return s.updateCart(c, cartId, func(cart *store.Cart) error {
		if len(cart.Promotions) == 0 {
			return inErrors.ErrNoPromotions
		}
		for i, existing := range cart.Promotions {
			if existing == promotion {
				cart.Promotions = append(cart.Promotions[:i], cart.Promotions[i+1:]...)
				return nil
			}
		}
		return inErrors.ErrNoPromotions
	})
}

// CartItemCount sums the item quantities; missing carts count as zero.
func (s CartService) CartItemCount(c context.Context, cartId string) (response.CartCount, error) {
	c, span := otel.Tracer.Start(c, "CartService CartItemCount")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService CartItemCount").
		Str(log.KeyCartId, cartId).
		Logger()

	c = logger.WithContext(c)
	cart, err := s.store.GetCart(c, cartId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Info().Msg("cart not found, count is zero")
			return response.CartCount{Count: 0}, nil
		}
		err = fmt.Errorf("failed counting cartId=%s with error=%w", cartId, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CartCount{}, err
	}

	return response.CartCount{Count: cart.ItemCount()}, nil
}

// DeleteCart removes the cart document.
func (s CartService) DeleteCart(c context.Context, cartId string) error {
	c, span := otel.Tracer.Start(c, "CartService DeleteCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService DeleteCart").
		Str(log.KeyCartId, cartId).
		Logger()
	logger.Info().Msg("deleting cart")

	c = logger.WithContext(c)
	if err := s.store.DeleteCart(c, cartId); err != nil {
		err = fmt.Errorf("failed deleting cartId=%s with error=%w", cartId, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("deleted cart")
	return nil
}

// ClaimCart rekeys a cart to the identified user while keeping its store
// segment, returning the new cart id for the reissued cookie.
func (s CartService) ClaimCart(
	c context.Context,
	cartId string,
	userExtKey string,
) (string, error) {
	c, span := otel.Tracer.Start(c, "CartService ClaimCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ClaimCart").
		Str(log.KeyCartId, cartId).
		Str(log.KeyUserExtKey, userExtKey).
		Logger()
	logger.Info().Msg("claiming cart")

	newCartId := userExtKey + "|" + storeKeyFromCartId(cartId)
	c = logger.WithContext(c)
	if err := s.store.RenameCart(c, cartId, newCartId); err != nil {
		err = fmt.Errorf("failed claiming cartId=%s with error=%w", cartId, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return "", err
	}

	logger.Info().Msgf("claimed cart as cartId=%s", newCartId)
	return newCartId, nil
}

// RedirectCart implements the storefront redirect protocol: claim an existing
// anonymous cart for an identified user, merge the requested items into an
// existing cart for the same store, or create a fresh cart.
func (s CartService) RedirectCart(
	c context.Context,
	param request.RedirectCart,
) (response.CartReference, error) {
	c, span := otel.Tracer.Start(c, "CartService RedirectCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RedirectCart").
		Str(log.KeyStoreKey, param.StoreKey).
		Str(log.KeyCartReference, param.CartReference).
		Str(log.KeyUserExtKey, param.UserExtKey).
		Logger()

	productIds := productIdToken.FindAllString(param.ProductIds, -1)
	if len(productIds) == 0 {
		otel.RecordError(inErrors.ErrEmptyProductIds, span)
		logger.Error().Err(inErrors.ErrEmptyProductIds).Msg(inErrors.ErrEmptyProductIds.Error())
		return response.CartReference{}, inErrors.ErrEmptyProductIds
	}
	seed := seedCart(param.Promotions, uniqueStrings(productIds))

	cartId, identified := parseCartReference(param.CartReference)
	storeChanged := cartId != "" && storeKeyFromCartId(cartId) != param.StoreKey

	c = logger.WithContext(c)
	switch {
	case param.UserExtKey != "" && cartId != "" && !identified && !storeChanged:
		// the anonymous cart becomes the user's cart, no item merge needed
		newCartId := param.UserExtKey + "|" + param.StoreKey
		logger = logger.With().Str(log.KeyProcess, "claiming anonymous cart").Logger()
		logger.Info().Msgf("claiming anonymous cart as cartId=%s", newCartId)
		err := s.store.RenameCart(c, cartId, newCartId)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("failed claiming cartId=%s with error=%w", cartId, err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.CartReference{}, err
		}
		return response.CartReference{CartId: newCartId, Identified: true}, nil

	case cartId != "" && !storeChanged:
		logger = logger.With().Str(log.KeyProcess, "merging into existing cart").Logger()
		logger.Info().Msg("merging requested items into existing cart")
		if _, err := s.store.UpdateCart(c, cartId, seed, true); err != nil {
			err = fmt.Errorf("failed merging into cartId=%s with error=%w", cartId, err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.CartReference{}, err
		}
		return response.CartReference{CartId: cartId, Identified: identified}, nil

	default:
		newCartId := uuid.NewString() + "|" + param.StoreKey
		logger = logger.With().Str(log.KeyProcess, "creating cart").Logger()
		logger.Info().Msgf("creating cartId=%s", newCartId)
		if _, err := s.store.CreateCart(c, newCartId, seed); err != nil {
			err = fmt.Errorf("failed creating cartId=%s with error=%w", newCartId, err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.CartReference{}, err
		}
		return response.CartReference{CartId: newCartId, Identified: false}, nil
	}
}

// seedCart expands the requested product id tokens into a cart document. A
// bundle token contributes two reciprocally linked items, quantity 1 each.
func seedCart(promotions []string, productIds []string) store.Cart {
	items := []store.Item{}
	for _, token := range productIds {
		group := numericRun.FindAllString(token, -1)
		if len(group) > 1 {
			items = append(items,
				store.Item{ProductId: group[0], ChildProductId: group[1], Quantity: 1},
				store.Item{ProductId: group[1], ParentProductId: group[0], Quantity: 1},
			)
			continue
		}
		items = append(items, store.Item{ProductId: token, Quantity: 1})
	}
	return store.NewCart(promotions, items)
}

// parseCartReference splits the cookie token `{cartId};{T|F}` into its parts.
func parseCartReference(reference string) (cartId string, identified bool) {
	if reference == "" {
		return "", false
	}
	parts := strings.Split(reference, ";")
	cartId = parts[0]
	identified = len(parts) > 1 && parts[1] == "T"
	return cartId, identified
}

func storeKeyFromCartId(cartId string) string {
	parts := strings.SplitN(cartId, "|", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func uniqueStrings(values []string) []string {
	seen := map[string]struct{}{}
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	return unique
}
