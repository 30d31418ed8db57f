package constants

const (
	APP_MAIN_ESTORE  = "estore-bff"
	APP_CART_SERVICE = "cart-bff"
)
