package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/alfikri/estore-bff/cart/internal/store"
	"github.com/alfikri/estore-bff/cart/internal/validation"
	"github.com/alfikri/estore-bff/cart/pkg/request"
	"github.com/alfikri/estore-bff/cart/pkg/response"
	inErrors "github.com/alfikri/estore-bff/internal/common/errors"
)

func TestCartLifecycle(t *testing.T) {
	c := context.Background()
	c = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}).
		WithContext(c)

	redisClient, redisContainer, catalogServer, cartStore, cartService := setupCartService(t, c)
	defer teardownCartService(t, redisClient, redisContainer, catalogServer)

	t.Run("get missing cart should return empty response", func(t *testing.T) {
		cart, err := cartService.GetCart(c, "missing|ACME_US")
		assert.NoError(t, err)
		assert.Empty(t, cart.LineItems)
		assert.Empty(t, cart.Errors)
		assert.False(t, cart.HasShipment)
	})

	t.Run("adding same item twice should increment quantity", func(t *testing.T) {
		cartId := "addTwice|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, nil))
		assert.NoError(t, err)

		_, err = cartService.AddItem(c, cartId, "1001")
		assert.NoError(t, err)
		cart, err := cartService.AddItem(c, cartId, "1001")
		assert.NoError(t, err)

		if assert.Len(t, cart.LineItems, 1) {
			lineItem := cart.LineItems[0]
			assert.EqualValues(t, 2, lineItem.Quantity)
			assert.EqualValues(t, "OFF-PERPETUAL", lineItem.OfferingId)
			assert.EqualValues(t, "SW052000", lineItem.TaxCode)
			assert.EqualValues(t, "Sketchpad", lineItem.ProductName1)
			assert.True(t, lineItem.UnitPrice.Equal(decimalFromString("99.99")))
			assert.True(t, lineItem.CalculatedPrice.Equal(decimalFromString("199.98")))
		}
		assert.Empty(t, cart.Errors)
		assert.True(t, cart.HasShipment, "DVD media should require shipment")
	})

	t.Run("bic subscription above quantity one should be reset to one", func(t *testing.T) {
		cartId := "bic|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, nil))
		assert.NoError(t, err)

		_, err = cartService.AddItem(c, cartId, "2002")
		assert.NoError(t, err)
		cart, err := cartService.AddItem(c, cartId, "2002")
		assert.NoError(t, err)

		if assert.Len(t, cart.Errors, 1) {
			assert.EqualValues(t, validation.CodeMultipleBicSubscriptions, cart.Errors[0].Code)
			assert.EqualValues(t, response.ActionSetQuantityToOne, cart.Errors[0].Action)
		}
		if assert.Len(t, cart.LineItems, 1) {
			assert.EqualValues(t, 1, cart.LineItems[0].Quantity)
			assert.EqualValues(t, "MONTH", cart.LineItems[0].BillingPeriod)
			assert.EqualValues(t, "monthly", cart.LineItems[0].PlanType)
		}

		// the correction is persisted so the next read is clean
		cart, err = cartService.GetCart(c, cartId)
		assert.NoError(t, err)
		assert.Empty(t, cart.Errors)
		if assert.Len(t, cart.LineItems, 1) {
			assert.EqualValues(t, 1, cart.LineItems[0].Quantity)
		}
	})

	t.Run("unknown product should be reported and removed", func(t *testing.T) {
		cartId := "unknown|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, nil))
		assert.NoError(t, err)

		cart, err := cartService.AddItem(c, cartId, "9999")
		assert.NoError(t, err)

		if assert.Len(t, cart.Errors, 1) {
			assert.EqualValues(t, validation.CodeInvalidItem, cart.Errors[0].Code)
			assert.EqualValues(t, response.ActionRemove, cart.Errors[0].Action)
		}
		assert.Empty(t, cart.LineItems)

		cart, err = cartService.GetCart(c, cartId)
		assert.NoError(t, err)
		assert.Empty(t, cart.Errors)
		assert.Empty(t, cart.LineItems)
	})

	t.Run("perpetual mixed with bic subscription should be flagged", func(t *testing.T) {
		cartId := "mixed|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, nil))
		assert.NoError(t, err)

		_, err = cartService.AddItem(c, cartId, "1001")
		assert.NoError(t, err)
		cart, err := cartService.AddItem(c, cartId, "2002")
		assert.NoError(t, err)

		if assert.Len(t, cart.Errors, 1) {
			assert.EqualValues(t, validation.CodeMixedOfferingTypes, cart.Errors[0].Code)
			assert.EqualValues(t, response.ActionUserAction, cart.Errors[0].Action)
		}
		// both items stay, sorted by their descriptor sort order
		if assert.Len(t, cart.LineItems, 2) {
			assert.EqualValues(t, "OFF-BIC", cart.LineItems[0].OfferingId)
			assert.EqualValues(t, "OFF-PERPETUAL", cart.LineItems[1].OfferingId)
		}
	})

	t.Run("orphaned maintenance should be removed", func(t *testing.T) {
		cartId := "orphan|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, []store.Item{
			{ProductId: "3003", Quantity: 1},
		}))
		assert.NoError(t, err)

		cart, err := cartService.GetCart(c, cartId)
		assert.NoError(t, err)
		if assert.Len(t, cart.Errors, 1) {
			assert.EqualValues(t, validation.CodeOrphanedMaintenance, cart.Errors[0].Code)
		}
		assert.Empty(t, cart.LineItems)
	})

	t.Run("bundle quantity update should mirror onto the child", func(t *testing.T) {
		cartId := "bundle|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, seedCart(nil, []string{"[1001,3003]"}))
		assert.NoError(t, err)

		cart, err := cartService.UpdateQuantity(c, cartId, "1001", 5)
		assert.NoError(t, err)
		assert.Empty(t, cart.Errors)
		if assert.Len(t, cart.LineItems, 2) {
			for _, lineItem := range cart.LineItems {
				assert.EqualValues(t, 5, lineItem.Quantity)
			}
		}

		_, err = cartService.UpdateQuantity(c, cartId, "3003", 2)
		assert.ErrorIs(t, err, inErrors.ErrChildQuantityUpdate)
	})

	t.Run("zero quantity should remove the item and its child", func(t *testing.T) {
		cartId := "zeroQty|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, seedCart(nil, []string{"[1001,3003]"}))
		assert.NoError(t, err)

		cart, err := cartService.UpdateQuantity(c, cartId, "1001", 0)
		assert.NoError(t, err)
		assert.Empty(t, cart.LineItems)
	})

	t.Run("removing a parent should cascade to its child", func(t *testing.T) {
		cartId := "cascade|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, seedCart(nil, []string{"[1001,3003]"}))
		assert.NoError(t, err)

		cart, err := cartService.RemoveItem(c, cartId, "1001")
		assert.NoError(t, err)
		assert.Empty(t, cart.LineItems)
	})

	t.Run("removing a child should leave the parent in place", func(t *testing.T) {
		cartId := "childOnly|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, seedCart(nil, []string{"[1001,3003]"}))
		assert.NoError(t, err)

		cart, err := cartService.RemoveItem(c, cartId, "3003")
		assert.NoError(t, err)
		if assert.Len(t, cart.LineItems, 1) {
			assert.EqualValues(t, "OFF-PERPETUAL", cart.LineItems[0].OfferingId)
		}
	})

	t.Run("removing an absent item should fail", func(t *testing.T) {
		cartId := "removeMissing|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, nil))
		assert.NoError(t, err)

		_, err = cartService.RemoveItem(c, cartId, "1001")
		assert.ErrorIs(t, err, inErrors.ErrNothingRemoved)
	})

	t.Run("promotions should add without duplicates and remove by code", func(t *testing.T) {
		cartId := "promotions|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, []store.Item{
			{ProductId: "1001", Quantity: 1},
		}))
		assert.NoError(t, err)

		_, err = cartService.AddPromotion(c, cartId, "SPRING24")
		assert.NoError(t, err)
		cart, err := cartService.AddPromotion(c, cartId, "SPRING24")
		assert.NoError(t, err)
		assert.EqualValues(t, []string{"SPRING24"}, cart.Promotions)

		cart, err = cartService.RemovePromotion(c, cartId, "SPRING24")
		assert.NoError(t, err)
		assert.Empty(t, cart.Promotions)

		_, err = cartService.RemovePromotion(c, cartId, "SPRING24")
		assert.ErrorIs(t, err, inErrors.ErrNoPromotions)
	})

	t.Run("item count should sum quantities and treat missing as zero", func(t *testing.T) {
		cartId := "count|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, []store.Item{
			{ProductId: "1001", Quantity: 2},
			{ProductId: "2002", Quantity: 1},
		}))
		assert.NoError(t, err)

		count, err := cartService.CartItemCount(c, cartId)
		assert.NoError(t, err)
		assert.EqualValues(t, 3, count.Count)

		count, err = cartService.CartItemCount(c, "missingCount|ACME_US")
		assert.NoError(t, err)
		assert.EqualValues(t, 0, count.Count)
	})

	t.Run("claiming a cart should rekey it to the user", func(t *testing.T) {
		cartId := "anonClaim|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, []store.Item{
			{ProductId: "1001", Quantity: 1},
		}))
		assert.NoError(t, err)

		newCartId, err := cartService.ClaimCart(c, cartId, "alice")
		assert.NoError(t, err)
		assert.EqualValues(t, "alice|ACME_US", newCartId)

		_, err = cartStore.GetCart(c, cartId)
		assert.ErrorIs(t, err, store.ErrNotFound)
		claimed, err := cartStore.GetCart(c, newCartId)
		assert.NoError(t, err)
		assert.Len(t, claimed.Items, 1)
	})
}

func TestRedirectCart(t *testing.T) {
	c := context.Background()
	c = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}).
		WithContext(c)

	redisClient, redisContainer, catalogServer, cartStore, cartService := setupCartService(t, c)
	defer teardownCartService(t, redisClient, redisContainer, catalogServer)

	t.Run("given no usable product ids should fail", func(t *testing.T) {
		_, err := cartService.RedirectCart(c, request.RedirectCart{
			ProductIds: "abc,12",
			StoreKey:   "ACME_US",
		})
		assert.ErrorIs(t, err, inErrors.ErrEmptyProductIds)
	})

	t.Run("given no reference should create an anonymous cart", func(t *testing.T) {
		reference, err := cartService.RedirectCart(c, request.RedirectCart{
			ProductIds: "1001,[1001,3003]",
			StoreKey:   "ACME_US",
			Promotions: []string{"SPRING24"},
		})
		assert.NoError(t, err)
		assert.False(t, reference.Identified)
		assert.True(t, strings.HasSuffix(reference.CartId, "|ACME_US"))

		cart, err := cartStore.GetCart(c, reference.CartId)
		assert.NoError(t, err)
		assert.EqualValues(t, []string{"SPRING24"}, cart.Promotions)
		assert.Len(t, cart.Items, 3)
	})

	t.Run("given matching reference should merge into the existing cart", func(t *testing.T) {
		cartId := "existing|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, []store.Item{
			{ProductId: "1001", Quantity: 1},
		}))
		assert.NoError(t, err)

		reference, err := cartService.RedirectCart(c, request.RedirectCart{
			ProductIds:    "1001,2002",
			StoreKey:      "ACME_US",
			CartReference: cartId + ";F",
		})
		assert.NoError(t, err)
		assert.EqualValues(t, cartId, reference.CartId)
		assert.False(t, reference.Identified)

		cart, err := cartStore.GetCart(c, cartId)
		assert.NoError(t, err)
		assert.EqualValues(t, []store.Item{
			{ProductId: "1001", Quantity: 2},
			{ProductId: "2002", Quantity: 1},
		}, cart.Items)
	})

	t.Run("given changed store should create a fresh cart", func(t *testing.T) {
		cartId := "usStore|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, []store.Item{
			{ProductId: "1001", Quantity: 1},
		}))
		assert.NoError(t, err)

		reference, err := cartService.RedirectCart(c, request.RedirectCart{
			ProductIds:    "2002",
			StoreKey:      "ACME_EU",
			CartReference: cartId + ";F",
		})
		assert.NoError(t, err)
		assert.NotEqualValues(t, cartId, reference.CartId)
		assert.True(t, strings.HasSuffix(reference.CartId, "|ACME_EU"))

		// the original cart is untouched
		original, err := cartStore.GetCart(c, cartId)
		assert.NoError(t, err)
		assert.Len(t, original.Items, 1)
	})

	t.Run("given identified user and anonymous cart should claim it", func(t *testing.T) {
		cartId := "toClaim|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, []store.Item{
			{ProductId: "1001", Quantity: 1},
		}))
		assert.NoError(t, err)

		reference, err := cartService.RedirectCart(c, request.RedirectCart{
			ProductIds:    "1001",
			StoreKey:      "ACME_US",
			UserExtKey:    "alice",
			CartReference: cartId + ";F",
		})
		assert.NoError(t, err)
		assert.True(t, reference.Identified)
		assert.EqualValues(t, "alice|ACME_US", reference.CartId)

		_, err = cartStore.GetCart(c, cartId)
		assert.ErrorIs(t, err, store.ErrNotFound)
		claimed, err := cartStore.GetCart(c, "alice|ACME_US")
		assert.NoError(t, err)
		assert.Len(t, claimed.Items, 1)
	})

	t.Run("given already identified reference should merge instead of claim", func(t *testing.T) {
		cartId := "bob|ACME_US"
		_, err := cartStore.CreateCart(c, cartId, store.NewCart(nil, []store.Item{
			{ProductId: "1001", Quantity: 1},
		}))
		assert.NoError(t, err)

		reference, err := cartService.RedirectCart(c, request.RedirectCart{
			ProductIds:    "2002",
			StoreKey:      "ACME_US",
			UserExtKey:    "bob",
			CartReference: cartId + ";T",
		})
		assert.NoError(t, err)
		assert.True(t, reference.Identified)
		assert.EqualValues(t, cartId, reference.CartId)

		cart, err := cartStore.GetCart(c, cartId)
		assert.NoError(t, err)
		assert.Len(t, cart.Items, 2)
	})
}
