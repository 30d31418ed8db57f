package request

// AddItem adds one unit of a product to the cart.
type AddItem struct {
	ProductId string `json:"productId" validate:"required,numeric"`
}

// UpdateQuantity sets the quantity of an existing item. A zero quantity
// removes the item and its linked child.
type UpdateQuantity struct {
	Quantity float64 `json:"quantity"`
}

// AddPromotion applies a promotion code to the cart.
type AddPromotion struct {
	Promotion string `json:"promotion" validate:"required"`
}

// RedirectCart carries the query parameters of the storefront redirect flow.
type RedirectCart struct {
	ProductIds    string   `validate:"required"`
	StoreKey      string   `validate:"required"`
	Promotions    []string `validate:"-"`
	UserExtKey    string   `validate:"-"`
	CartReference string   `validate:"-"`
}
