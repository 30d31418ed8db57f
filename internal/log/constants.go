package log

const (
	KeyAppName          = "app"
	KeyCacheKey         = "cacheKey"
	KeyCartId           = "cartId"
	KeyCartItems        = "cartItems"
	KeyCartReference    = "cartReference"
	KeyConfig           = "config"
	KeyProcess          = "process"
	KeyProductId        = "productId"
	KeyPromotion        = "promotion"
	KeyQuantity         = "quantity"
	KeyRequestBody      = "requestBody"
	KeyRequestHeader    = "requestHeader"
	KeyRequestHost      = "host"
	KeyRequestID        = "requestId"
	KeyRequestIp        = "requesterIP"
	KeyRequestMethod    = "requestMethod"
	KeyRequestURI       = "requestURI"
	KeyRequestURL       = "requestURL"
	KeyStoreKey         = "storeKey"
	KeyTag              = "tag"
	KeyUserExtKey       = "userExtKey"
	KeyValidationErrors = "validationErrors"
)
