package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alfikri/estore-bff/cart/internal/store"
	"github.com/alfikri/estore-bff/cart/pkg/response"
	"github.com/alfikri/estore-bff/catalog"
)

func TestValidateOffering(t *testing.T) {
	perpetual := &catalog.Offering{
		OfferingType: catalog.OfferingTypePerpetual,
		ProductLine:  "SKETCHPAD",
	}
	bic := &catalog.Offering{
		OfferingType: catalog.OfferingTypeBicSubscription,
		ProductLine:  "SKETCHPAD",
	}
	maintenance := &catalog.Offering{
		OfferingType: catalog.OfferingTypeMaintenanceSubscription,
		ProductLine:  "SKETCHPAD",
	}

	tests := []struct {
		name           string
		offering       *catalog.Offering
		cartItem       store.Item
		parentOffering *catalog.Offering
		expectedCode   int
		expectedAction string
	}{
		{
			name:           "given unresolved offering should report invalid item",
			offering:       nil,
			cartItem:       store.Item{ProductId: "1001", Quantity: 1},
			expectedCode:   CodeInvalidItem,
			expectedAction: response.ActionRemove,
		},
		{
			name:           "given bic subscription with quantity above one should reset quantity",
			offering:       bic,
			cartItem:       store.Item{ProductId: "2002", Quantity: 3},
			expectedCode:   CodeMultipleBicSubscriptions,
			expectedAction: response.ActionSetQuantityToOne,
		},
		{
			name:         "given bic subscription with quantity one should pass",
			offering:     bic,
			cartItem:     store.Item{ProductId: "2002", Quantity: 1},
			expectedCode: 0,
		},
		{
			name:           "given maintenance without parent should report orphan",
			offering:       maintenance,
			cartItem:       store.Item{ProductId: "3003", Quantity: 1},
			parentOffering: nil,
			expectedCode:   CodeOrphanedMaintenance,
			expectedAction: response.ActionRemove,
		},
		{
			name:     "given maintenance with parent from another product line should report orphan",
			offering: maintenance,
			cartItem: store.Item{ProductId: "3003", Quantity: 1, ParentProductId: "1001"},
			parentOffering: &catalog.Offering{
				OfferingType: catalog.OfferingTypePerpetual,
				ProductLine:  "RENDERFARM",
			},
			expectedCode:   CodeOrphanedMaintenance,
			expectedAction: response.ActionRemove,
		},
		{
			name:           "given maintenance with matching parent should pass",
			offering:       maintenance,
			cartItem:       store.Item{ProductId: "3003", Quantity: 1, ParentProductId: "1001"},
			parentOffering: perpetual,
			expectedCode:   0,
		},
		{
			name:         "given perpetual with any quantity should pass",
			offering:     perpetual,
			cartItem:     store.Item{ProductId: "1001", Quantity: 7},
			expectedCode: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := ValidateOffering(tt.offering, tt.cartItem, tt.parentOffering)
			if tt.expectedCode == 0 {
				assert.Nil(t, actual)
				return
			}
			if assert.NotNil(t, actual) {
				assert.EqualValues(t, tt.expectedCode, actual.Code)
				assert.EqualValues(t, tt.expectedAction, actual.Action)
				assert.EqualValues(t, []interface{}{tt.cartItem}, actual.LineItems)
			}
		})
	}
}

func TestValidateOfferingRuleOrder(t *testing.T) {
	// a missing offering wins over every other rule
	actual := ValidateOffering(nil, store.Item{ProductId: "1001", Quantity: 5}, nil)
	if assert.NotNil(t, actual) {
		assert.EqualValues(t, CodeInvalidItem, actual.Code)
	}
}

func TestMixedItemCheck(t *testing.T) {
	tests := []struct {
		name         string
		item1        response.LineItem
		item2        response.LineItem
		expectedCode int
	}{
		{
			name:         "given perpetual and bic subscription should report mixed offering types",
			item1:        response.LineItem{OfferingType: catalog.OfferingTypePerpetual},
			item2:        response.LineItem{OfferingType: catalog.OfferingTypeBicSubscription},
			expectedCode: CodeMixedOfferingTypes,
		},
		{
			name:         "given bic subscription and perpetual should report mixed offering types",
			item1:        response.LineItem{OfferingType: catalog.OfferingTypeBicSubscription},
			item2:        response.LineItem{OfferingType: catalog.OfferingTypePerpetual},
			expectedCode: CodeMixedOfferingTypes,
		},
		{
			name:         "given perpetual and meta subscription should report mixed offering types",
			item1:        response.LineItem{OfferingType: catalog.OfferingTypePerpetual},
			item2:        response.LineItem{OfferingType: catalog.OfferingTypeMetaSubscription},
			expectedCode: CodeMixedOfferingTypes,
		},
		{
			name:         "given perpetual and maintenance should pass",
			item1:        response.LineItem{OfferingType: catalog.OfferingTypePerpetual},
			item2:        response.LineItem{OfferingType: catalog.OfferingTypeMaintenanceSubscription},
			expectedCode: 0,
		},
		{
			name: "given differing billing periods should report incompatible subscriptions",
			item1: response.LineItem{
				OfferingType:  catalog.OfferingTypeBicSubscription,
				BillingPeriod: "MONTH",
			},
			item2: response.LineItem{
				OfferingType:  catalog.OfferingTypeBicSubscription,
				BillingPeriod: "YEAR",
			},
			expectedCode: CodeIncompatibleSubscriptions,
		},
		{
			name: "given differing billing period counts should report incompatible subscriptions",
			item1: response.LineItem{
				OfferingType:       catalog.OfferingTypeBicSubscription,
				BillingPeriod:      "MONTH",
				BillingPeriodCount: 1,
			},
			item2: response.LineItem{
				OfferingType:       catalog.OfferingTypeBicSubscription,
				BillingPeriod:      "MONTH",
				BillingPeriodCount: 3,
			},
			expectedCode: CodeIncompatibleSubscriptions,
		},
		{
			name: "given one item without billing period should pass",
			item1: response.LineItem{
				OfferingType:  catalog.OfferingTypeBicSubscription,
				BillingPeriod: "MONTH",
			},
			item2:        response.LineItem{OfferingType: catalog.OfferingTypeBicSubscription},
			expectedCode: 0,
		},
		{
			name: "given matching billing periods should pass",
			item1: response.LineItem{
				OfferingType:       catalog.OfferingTypeBicSubscription,
				BillingPeriod:      "MONTH",
				BillingPeriodCount: 1,
			},
			item2: response.LineItem{
				OfferingType:       catalog.OfferingTypeBicSubscription,
				BillingPeriod:      "MONTH",
				BillingPeriodCount: 1,
			},
			expectedCode: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := MixedItemCheck(tt.item1, tt.item2)
			if tt.expectedCode == 0 {
				assert.Nil(t, actual)
				return
			}
			if assert.NotNil(t, actual) {
				assert.EqualValues(t, tt.expectedCode, actual.Code)
				assert.EqualValues(t, []interface{}{tt.item1, tt.item2}, actual.LineItems)
			}
		})
	}
}

func TestErrorStampingDoesNotMutateTemplate(t *testing.T) {
	first := Error(CodeInvalidItem, store.Item{ProductId: "1001"})
	second := Error(CodeInvalidItem)

	assert.Len(t, first.LineItems, 1)
	assert.Empty(t, second.LineItems)
	assert.EqualValues(t, first.Code, second.Code)
	assert.EqualValues(t, first.Message, second.Message)
	assert.EqualValues(t, first.Priority, second.Priority)
	assert.EqualValues(t, first.Action, second.Action)
}
