package store

import (
	"fmt"
)

const SchemaVersion = 1

const StateActive = "active"

// Cart is the persisted cart document. It is the storage schema, not the
// client-facing response; reconciliation derives the response from it.
type Cart struct {
	Schema     int      `json:"schema"`
	State      string   `json:"state"`
	Promotions []string `json:"promotions,omitempty"`
	Items      []Item   `json:"items"`
}

type Item struct {
	ProductId       string `json:"productId"`
	Quantity        int    `json:"quantity"`
	ParentProductId string `json:"parentProductId,omitempty"`
	ChildProductId  string `json:"childProductId,omitempty"`
}

func NewCart(promotions []string, items []Item) Cart {
	return Cart{
		Schema:     SchemaVersion,
		State:      StateActive,
		Promotions: promotions,
		Items:      items,
	}
}

// Validate rejects documents that cannot have been written by this schema
// version instead of trusting ad hoc field access on whatever was stored.
func (cart Cart) Validate() error {
	if cart.Schema > SchemaVersion {
		return fmt.Errorf("%w: schema version %d", ErrMalformedCart, cart.Schema)
	}
	if cart.State == "" {
		return fmt.Errorf("%w: missing state", ErrMalformedCart)
	}
	for _, item := range cart.Items {
		if item.ProductId == "" {
			return fmt.Errorf("%w: item without productId", ErrMalformedCart)
		}
		if item.Quantity < 0 {
			return fmt.Errorf(
				"%w: productId=%s quantity=%d",
				ErrMalformedCart,
				item.ProductId,
				item.Quantity,
			)
		}
	}
	return nil
}

// FindItem returns the item whose ProductId equals productId, or nil.
func (cart *Cart) FindItem(productId string) *Item {
	for i := range cart.Items {
		if cart.Items[i].ProductId == productId {
			return &cart.Items[i]
		}
	}
	return nil
}

// FindParentOf returns the item whose ChildProductId equals productId, or nil.
func (cart *Cart) FindParentOf(productId string) *Item {
	for i := range cart.Items {
		if cart.Items[i].ChildProductId == productId {
			return &cart.Items[i]
		}
	}
	return nil
}

func (cart Cart) ItemCount() int {
	count := 0
	for _, item := range cart.Items {
		count += item.Quantity
	}
	return count
}

func (cart Cart) ProductIds() []string {
	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductId)
	}
	return ids
}
