package response

import (
	"github.com/shopspring/decimal"
)

const (
	ActionSetQuantityToOne = "setQuantityToOne"
	ActionRemove           = "remove"
	ActionUserAction       = "userAction"
)

// Cart is the client-facing cart contract computed per request by the
// reconciliation engine.
type Cart struct {
	LineItems   []LineItem  `json:"lineItems"`
	Promotions  []string    `json:"promotions"`
	HasShipment bool        `json:"hasShipment"`
	Errors      []CartError `json:"errors"`
}

// LineItem joins a persisted cart item with live catalog data.
type LineItem struct {
	OfferingId         string          `json:"offeringId"`
	ExternalKey        string          `json:"externalKey"`
	OfferingType       string          `json:"offeringType"`
	ProductLine        string          `json:"productLine"`
	TaxCode            string          `json:"taxCode"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	CalculatedPrice    decimal.Decimal `json:"calculatedPrice"`
	ProductId          string          `json:"productId"`
	MediaType          string          `json:"mediaType"`
	ProductName1       string          `json:"productName1"`
	ProductName2       string          `json:"productName2"`
	MiniCartName1      string          `json:"miniCartName1"`
	MiniCartName2      string          `json:"miniCartName2"`
	DeliveryMethod     string          `json:"deliveryMethod"`
	Year               string          `json:"year"`
	ImageUrl           string          `json:"imageUrl"`
	PlanType           string          `json:"planType"`
	BillingPeriod      string          `json:"billingPeriod,omitempty"`
	BillingPeriodCount int             `json:"billingPeriodCount,omitempty"`
	SortOrder          *int            `json:"sortOrder,omitempty"`
	ParentProductId    string          `json:"parentProductId,omitempty"`
	ChildProductId     string          `json:"childProductId,omitempty"`
}

// CartError reports a validation finding. Code, Message, Priority and Action
// come from a fixed template; LineItems carries the offending item(s).
type CartError struct {
	Code      int           `json:"code"`
	Message   string        `json:"message"`
	Priority  int           `json:"priority"`
	Action    string        `json:"action"`
	LineItems []interface{} `json:"lineItems"`
}

// CartCount is the response for the item count endpoint.
type CartCount struct {
	Count int `json:"count"`
}

// CartReference describes the cookie token tying an HTTP client to its cart.
type CartReference struct {
	CartId     string `json:"cartId"`
	Identified bool   `json:"identified"`
}
