package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/alfikri/estore-bff/cart/internal/store"
	"github.com/alfikri/estore-bff/cart/internal/validation"
	"github.com/alfikri/estore-bff/cart/pkg/response"
	"github.com/alfikri/estore-bff/catalog"
	"github.com/alfikri/estore-bff/internal/log"
	"github.com/alfikri/estore-bff/internal/otel"
)

var shippableMediaTypes = map[string]struct{}{
	"DVD": {},
	"USB": {},
}

// CreateCartResponse reconciles the persisted cart against the offerings
// snapshot: each item is validated, remediations are applied (quantity reset
// in place, invalid items dropped), conflicts between surviving line items are
// reported, and when anything was corrected the cleaned item set is persisted
// back under cartId.
func (s CartService) CreateCartResponse(
	c context.Context,
	cartId string,
	cart store.Cart,
	offerings catalog.Offerings,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService CreateCartResponse")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService CreateCartResponse").
		Str(log.KeyCartId, cartId).
		Int(log.KeyCartItems, len(cart.Items)).
		Logger()

	cartResponse := response.Cart{
		LineItems:   []response.LineItem{},
		Promotions:  cart.Promotions,
		HasShipment: false,
		Errors:      []response.CartError{},
	}
	if cartResponse.Promotions == nil {
		cartResponse.Promotions = []string{}
	}
	updatedItems := []store.Item{}

	for _, cartItem := range cart.Items {
		offering := offerings.FindOfferingByPriceId(cartItem.ProductId)
		parentOffering := offerings.FindOfferingByPriceId(cartItem.ParentProductId)

		validationError := validation.ValidateOffering(offering, cartItem, parentOffering)
		if validationError != nil {
			logger.Info().
				Str(log.KeyProductId, cartItem.ProductId).
				Int("code", validationError.Code).
				Str("action", validationError.Action).
				Msg("cart item failed validation")
			if validationError.Action == response.ActionSetQuantityToOne {
				cartItem.Quantity = 1
				validationError.LineItems = []interface{}{cartItem}
			}
			cartResponse.Errors = append(cartResponse.Errors, *validationError)
			if validationError.Action == response.ActionRemove {
				continue
			}
		}

		updatedItems = append(updatedItems, cartItem)
		lineItem := createLineItem(offerings, offering, cartItem)

		for _, existing := range cartResponse.LineItems {
			if conflict := validation.MixedItemCheck(lineItem, existing); conflict != nil {
				cartResponse.Errors = append(cartResponse.Errors, *conflict)
				break
			}
		}
		cartResponse.LineItems = append(cartResponse.LineItems, lineItem)

		if !cartResponse.HasShipment {
			_, shippable := shippableMediaTypes[offering.MediaType]
			cartResponse.HasShipment = shippable
		}
	}

	// absent sortOrder sorts last, ties keep insertion order
	sort.SliceStable(cartResponse.LineItems, func(i, j int) bool {
		a, b := cartResponse.LineItems[i].SortOrder, cartResponse.LineItems[j].SortOrder
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})

	if len(cartResponse.Errors) > 0 {
		logger = logger.With().
			Int(log.KeyValidationErrors, len(cartResponse.Errors)).
			Str(log.KeyProcess, "persisting corrected cart").
			Logger()
		logger.Info().Msg("persisting corrected cart")
		cart.Items = updatedItems
		if _, err := s.store.UpdateCart(c, cartId, cart, false); err != nil {
			err = fmt.Errorf("failed persisting corrected cartId=%s with error=%w", cartId, err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, err
		}
		logger.Info().Msg("persisted corrected cart")
	}

	return cartResponse, nil
}

// createLineItem builds the presentation entry for a surviving cart item,
// merging descriptor fields from the offering and its billing plan.
func createLineItem(
	offerings catalog.Offerings,
	offering *catalog.Offering,
	cartItem store.Item,
) response.LineItem {
	if offering == nil {
		return response.LineItem{ProductId: cartItem.ProductId, Quantity: cartItem.Quantity}
	}

	detail := offerings.Detail(offering)
	price, _ := offerings.Price(cartItem.ProductId)

	lineItem := response.LineItem{
		OfferingId:      offering.Id,
		ExternalKey:     offering.ExternalKey,
		OfferingType:    offering.OfferingType,
		ProductLine:     offering.ProductLine,
		TaxCode:         detail.TaxCode,
		Quantity:        cartItem.Quantity,
		UnitPrice:       price,
		CalculatedPrice: price.Mul(decimal.NewFromInt(int64(cartItem.Quantity))).Round(2),
		ProductId:       cartItem.ProductId,
		MediaType:       offering.MediaType,
		ImageUrl:        offering.Descriptors.ImageUrl,
		ParentProductId: cartItem.ParentProductId,
		ChildProductId:  cartItem.ChildProductId,
	}

	if billingPlan := offerings.BillingPlan(cartItem.ProductId); billingPlan != nil {
		lineItem.BillingPeriod = billingPlan.BillingPeriod
		lineItem.BillingPeriodCount = billingPlan.BillingPeriodCount
		mergeDescriptors(&lineItem, billingPlan.Descriptors.Estore)
	}
	mergeDescriptors(&lineItem, offering.Descriptors.Estore)

	return lineItem
}

// mergeDescriptors copies the non-zero estore descriptor fields onto the line
// item. Offering descriptors are merged after the billing plan's, so they win
// on overlap.
func mergeDescriptors(lineItem *response.LineItem, descriptors catalog.EstoreDescriptors) {
	if descriptors.ProductName1 != "" {
		lineItem.ProductName1 = descriptors.ProductName1
	}
	if descriptors.ProductName2 != "" {
		lineItem.ProductName2 = descriptors.ProductName2
	}
	if descriptors.MiniCartName1 != "" {
		lineItem.MiniCartName1 = descriptors.MiniCartName1
	}
	if descriptors.MiniCartName2 != "" {
		lineItem.MiniCartName2 = descriptors.MiniCartName2
	}
	if descriptors.DeliveryMethod != "" {
		lineItem.DeliveryMethod = descriptors.DeliveryMethod
	}
	if descriptors.Year != "" {
		lineItem.Year = descriptors.Year
	}
	if descriptors.PlanType != "" {
		lineItem.PlanType = descriptors.PlanType
	}
	if descriptors.SortOrder != nil {
		lineItem.SortOrder = descriptors.SortOrder
	}
}
