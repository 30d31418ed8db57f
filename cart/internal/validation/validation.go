// Package validation classifies cart contents against the storefront business
// rules. Everything here is pure: the same inputs always yield the same error
// code, and errors are stamped copies of immutable templates.
package validation

import (
	"github.com/alfikri/estore-bff/cart/internal/store"
	"github.com/alfikri/estore-bff/cart/pkg/response"
	"github.com/alfikri/estore-bff/catalog"
)

const (
	CodeMultipleBicSubscriptions  = 11000
	CodeInvalidItem               = 12000
	CodeMixedOfferingTypes        = 13000
	CodeIncompatibleSubscriptions = 14000
	CodeOrphanedMaintenance       = 15000
)

var errorTemplates = map[int]response.CartError{
	CodeMultipleBicSubscriptions: {
		Code:     CodeMultipleBicSubscriptions,
		Message:  "Adding multiple BIC subscriptions is not supported",
		Priority: 10000,
		Action:   response.ActionSetQuantityToOne,
	},
	CodeInvalidItem: {
		Code:     CodeInvalidItem,
		Message:  "Invalid item in cart. Item will be removed from cart",
		Priority: 100,
		Action:   response.ActionRemove,
	},
	CodeMixedOfferingTypes: {
		Code:     CodeMixedOfferingTypes,
		Message:  "Incompatible product offering types",
		Priority: 1000,
		Action:   response.ActionUserAction,
	},
	CodeIncompatibleSubscriptions: {
		Code:     CodeIncompatibleSubscriptions,
		Message:  "Incompatible subscriptions",
		Priority: 1000,
		Action:   response.ActionUserAction,
	},
	CodeOrphanedMaintenance: {
		Code:     CodeOrphanedMaintenance,
		Message:  "Cannot add maintenance subscription without perpetual product",
		Priority: 1000,
		Action:   response.ActionRemove,
	},
}

// Error copies the template for code and stamps it with the offending items.
func Error(code int, lineItems ...interface{}) *response.CartError {
	template := errorTemplates[code]
	template.LineItems = lineItems
	return &template
}

// ValidateOffering checks one cart item against its resolved offering. Rules
// are evaluated in fixed order and the first match wins.
func ValidateOffering(
	offering *catalog.Offering,
	cartItem store.Item,
	parentOffering *catalog.Offering,
) *response.CartError {
	switch {
	case offering == nil:
		return Error(CodeInvalidItem, cartItem)
	case offering.OfferingType == catalog.OfferingTypeBicSubscription && cartItem.Quantity > 1:
		return Error(CodeMultipleBicSubscriptions, cartItem)
	case offering.OfferingType == catalog.OfferingTypeMaintenanceSubscription &&
		parentOffering == nil:
		return Error(CodeOrphanedMaintenance, cartItem)
	case offering.OfferingType == catalog.OfferingTypeMaintenanceSubscription &&
		offering.ProductLine != parentOffering.ProductLine:
		return Error(CodeOrphanedMaintenance, cartItem)
	}
	return nil
}

// MixedItemCheck reports a conflict between two line items the user has to
// resolve: a perpetual offering mixed with a BIC or meta subscription, or two
// subscriptions billed on different periods.
func MixedItemCheck(item1, item2 response.LineItem) *response.CartError {
	if mixesPerpetualAndSubscription(item1, item2) ||
		mixesPerpetualAndSubscription(item2, item1) {
		return Error(CodeMixedOfferingTypes, item1, item2)
	}

	if (item1.BillingPeriod != "" && item2.BillingPeriod != "" &&
		item1.BillingPeriod != item2.BillingPeriod) ||
		(item1.BillingPeriodCount != 0 && item2.BillingPeriodCount != 0 &&
			item1.BillingPeriodCount != item2.BillingPeriodCount) {
		return Error(CodeIncompatibleSubscriptions, item1, item2)
	}

	return nil
}

func mixesPerpetualAndSubscription(item1, item2 response.LineItem) bool {
	return item1.OfferingType == catalog.OfferingTypePerpetual &&
		(item2.OfferingType == catalog.OfferingTypeBicSubscription ||
			item2.OfferingType == catalog.OfferingTypeMetaSubscription)
}
