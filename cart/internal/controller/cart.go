package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/alfikri/estore-bff/cart/internal/service"
	"github.com/alfikri/estore-bff/cart/internal/store"
	"github.com/alfikri/estore-bff/cart/pkg/request"
	inErrors "github.com/alfikri/estore-bff/internal/common/errors"
	inHttp "github.com/alfikri/estore-bff/internal/common/http"
	"github.com/alfikri/estore-bff/internal/config"
	"github.com/alfikri/estore-bff/internal/log"
	"github.com/alfikri/estore-bff/internal/middleware"
	"github.com/alfikri/estore-bff/internal/otel"
)

type CartController struct {
	service      *service.CartService
	cookieName   string
	redirectPath string
}

func AttachCartController(
	router *mux.Router,
	cartService *service.CartService,
	cfg config.Config,
) {
	// non-production cookies carry the environment so they never collide with
	// the production cookie on a shared parent domain
	cookieName := cfg.Cart.CookieName
	if cfg.Application.Env != "production" {
		cookieName += "-" + cfg.Application.Env
	}
	controller := CartController{
		service:      cartService,
		cookieName:   cookieName,
		redirectPath: cfg.Cart.RedirectPath,
	}

	sub := router.PathPrefix("/carts").Subrouter()
	sub.HandleFunc("/redirect", controller.RedirectCart).Methods(http.MethodGet)
	sub.HandleFunc("/key/{userExtKey}", controller.UpdateKey).Methods(http.MethodPut)
	sub.HandleFunc("/{cartId}", controller.GetCart).Methods(http.MethodGet)
	sub.HandleFunc("/{cartId}", controller.DeleteCart).Methods(http.MethodDelete)
	sub.HandleFunc("/{cartId}/count", controller.GetCartItemCount).Methods(http.MethodGet)
	sub.HandleFunc("/{cartId}/items", controller.AddItem).Methods(http.MethodPost)
	sub.HandleFunc("/{cartId}/items/{productId}", controller.UpdateQuantity).
		Methods(http.MethodPut)
	sub.HandleFunc("/{cartId}/items/{productId}", controller.RemoveItem).
		Methods(http.MethodDelete)
	sub.HandleFunc("/{cartId}/promotions", controller.AddPromotion).Methods(http.MethodPost)
	sub.HandleFunc("/{cartId}/promotions/{promotion}", controller.RemovePromotion).
		Methods(http.MethodDelete)
}

// statusFor maps the error taxonomy to http: infrastructure errors are 5xx,
// business and precondition errors are 4xx.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrMalformedCart):
		return http.StatusInternalServerError
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, inErrors.ErrItemNotFound),
		errors.Is(err, inErrors.ErrNothingRemoved),
		errors.Is(err, inErrors.ErrNoPromotions),
		errors.Is(err, inErrors.ErrChildQuantityUpdate),
		errors.Is(err, inErrors.ErrEmptyProductIds),
		errors.Is(err, inErrors.ErrMissingCartCookie):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (t CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController GetCart")
	defer span.End()

	cartId := mux.Vars(r)["cartId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController GetCart").
		Str(log.KeyCartId, cartId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart").Logger()
	logger.Info().Msg("finding cart")
	c = logger.WithContext(c)
	cart, err := t.service.GetCart(c, cartId)
	if err != nil {
		err = fmt.Errorf("failed finding cartId=%s with error=%w", cartId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("found cart")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("cartId=%s found", cartId),
		"data":       map[string]interface{}{"cart": cart},
	})
}

func (t CartController) AddItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController AddItem")
	defer span.End()

	cartId := mux.Vars(r)["cartId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController AddItem").
		Str(log.KeyCartId, cartId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.AddItem{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().
		Str(log.KeyProcess, "adding item").
		Str(log.KeyProductId, reqBody.ProductId).
		Logger()
	logger.Info().Msg("adding item")
	c = logger.WithContext(c)
	cart, err := t.service.AddItem(c, cartId, reqBody.ProductId)
	if err != nil {
		err = fmt.Errorf("failed adding productId=%s with error=%w", reqBody.ProductId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("added item")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("added productId=%s", reqBody.ProductId),
		"data":       map[string]interface{}{"cart": cart},
	})
}

func (t CartController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController RemoveItem")
	defer span.End()

	pathValues := mux.Vars(r)
	cartId, productId := pathValues["cartId"], pathValues["productId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController RemoveItem").
		Str(log.KeyCartId, cartId).
		Str(log.KeyProductId, productId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "removing item").Logger()
	logger.Info().Msg("removing item")
	c = logger.WithContext(c)
	cart, err := t.service.RemoveItem(c, cartId, productId)
	if err != nil {
		err = fmt.Errorf("failed removing productId=%s with error=%w", productId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("removed item")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("removed productId=%s", productId),
		"data":       map[string]interface{}{"cart": cart},
	})
}

func (t CartController) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController UpdateQuantity")
	defer span.End()

	pathValues := mux.Vars(r)
	cartId, productId := pathValues["cartId"], pathValues["productId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController UpdateQuantity").
		Str(log.KeyCartId, cartId).
		Str(log.KeyProductId, productId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.UpdateQuantity{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().
		Str(log.KeyProcess, "updating quantity").
		Float64(log.KeyQuantity, reqBody.Quantity).
		Logger()
	logger.Info().Msg("updating quantity")
	c = logger.WithContext(c)
	cart, err := t.service.UpdateQuantity(c, cartId, productId, reqBody.Quantity)
	if err != nil {
		err = fmt.Errorf("failed updating quantity of productId=%s with error=%w", productId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("updated quantity")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("updated quantity of productId=%s", productId),
		"data":       map[string]interface{}{"cart": cart},
	})
}

func (t CartController) AddPromotion(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController AddPromotion")
	defer span.End()

	cartId := mux.Vars(r)["cartId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController AddPromotion").
		Str(log.KeyCartId, cartId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.AddPromotion{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().
		Str(log.KeyProcess, "adding promotion").
		Str(log.KeyPromotion, reqBody.Promotion).
		Logger()
	logger.Info().Msg("adding promotion")
	c = logger.WithContext(c)
	cart, err := t.service.AddPromotion(c, cartId, reqBody.Promotion)
	if err != nil {
		err = fmt.Errorf("failed adding promotion=%s with error=%w", reqBody.Promotion, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("added promotion")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("added promotion=%s", reqBody.Promotion),
		"data":       map[string]interface{}{"cart": cart},
	})
}

func (t CartController) RemovePromotion(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController RemovePromotion")
	defer span.End()

	pathValues := mux.Vars(r)
	cartId, promotion := pathValues["cartId"], pathValues["promotion"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController RemovePromotion").
		Str(log.KeyCartId, cartId).
		Str(log.KeyPromotion, promotion).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "removing promotion").Logger()
	logger.Info().Msg("removing promotion")
	c = logger.WithContext(c)
	cart, err := t.service.RemovePromotion(c, cartId, promotion)
	if err != nil {
		err = fmt.Errorf("failed removing promotion=%s with error=%w", promotion, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("removed promotion")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("removed promotion=%s", promotion),
		"data":       map[string]interface{}{"cart": cart},
	})
}

func (t CartController) GetCartItemCount(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController GetCartItemCount")
	defer span.End()

	cartId := mux.Vars(r)["cartId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController GetCartItemCount").
		Str(log.KeyCartId, cartId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "counting cart items").Logger()
	logger.Info().Msg("counting cart items")
	c = logger.WithContext(c)
	count, err := t.service.CartItemCount(c, cartId)
	if err != nil {
		err = fmt.Errorf("failed counting cartId=%s with error=%w", cartId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msgf("counted %d cart items", count.Count)

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("counted cartId=%s", cartId),
		"data":       count,
	})
}

func (t CartController) DeleteCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController DeleteCart")
	defer span.End()

	cartId := mux.Vars(r)["cartId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController DeleteCart").
		Str(log.KeyCartId, cartId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "deleting cart").Logger()
	logger.Info().Msg("deleting cart")
	c = logger.WithContext(c)
	if err := t.service.DeleteCart(c, cartId); err != nil {
		err = fmt.Errorf("failed deleting cartId=%s with error=%w", cartId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("deleted cart")

	w.WriteHeader(http.StatusNoContent)
}

// UpdateKey claims the cart referenced by the cookie for the identified user
// and reissues the cookie with the identified flag.
func (t CartController) UpdateKey(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController UpdateKey")
	defer span.End()

	userExtKey := mux.Vars(r)["userExtKey"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController UpdateKey").
		Str(log.KeyUserExtKey, userExtKey).
		Logger()

	cookie, err := r.Cookie(t.cookieName)
	if err != nil || userExtKey == "" {
		err = inErrors.ErrMissingCartCookie
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	cartId := strings.Split(decodeCookieValue(cookie.Value), ";")[0]
	logger = logger.With().Str(log.KeyCartId, cartId).Logger()

	logger = logger.With().Str(log.KeyProcess, "claiming cart").Logger()
	logger.Info().Msg("claiming cart")
	c = logger.WithContext(c)
	newCartId, err := t.service.ClaimCart(c, cartId, userExtKey)
	if err != nil {
		err = fmt.Errorf("failed claiming cartId=%s with error=%w", cartId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msgf("claimed cart as cartId=%s", newCartId)

	t.setCartCookie(w, r, newCartId, true)
	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "cart key updated",
	})
}

// RedirectCart seeds or merges a cart from query parameters, sets the cart
// reference cookie and redirects the browser to the storefront cart page.
func (t CartController) RedirectCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController RedirectCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController RedirectCart").
		Logger()

	query := r.URL.Query()
	userExtKey := query.Get("userExtKey")
	if fromToken := middleware.UserExtKeyFromContext(c); fromToken != "" {
		userExtKey = fromToken
	}

	reference := ""
	if cookie, err := r.Cookie(t.cookieName); err == nil {
		reference = decodeCookieValue(cookie.Value)
	}

	param := request.RedirectCart{
		ProductIds:    query.Get("productIds"),
		StoreKey:      query.Get("storeKey"),
		UserExtKey:    userExtKey,
		CartReference: reference,
	}
	if promotions := query.Get("promotions"); promotions != "" {
		param.Promotions = strings.Split(promotions, ",")
	}

	logger = logger.With().Str(log.KeyProcess, "validating query").Logger()
	logger.Info().Msg("validating query")
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, param); err != nil {
		err = fmt.Errorf("failed validating redirect query with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("validated query")

	logger = logger.With().Str(log.KeyProcess, "redirecting cart").Logger()
	logger.Info().Msg("redirecting cart")
	c = logger.WithContext(c)
	cartReference, err := t.service.RedirectCart(c, param)
	if err != nil {
		err = fmt.Errorf("failed redirecting cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusFor(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msgf("redirected to cartId=%s", cartReference.CartId)

	t.setCartCookie(w, r, cartReference.CartId, cartReference.Identified)
	http.Redirect(w, r, t.redirectPath, http.StatusFound)
}

// setCartCookie issues the `{cartId};{T|F}` reference cookie scoped to the
// request's parent domain.
func (t CartController) setCartCookie(
	w http.ResponseWriter,
	r *http.Request,
	cartId string,
	identified bool,
) {
	flag := ";F"
	if identified {
		flag = ";T"
	}
	// the reference contains `;` and `|` so it is escaped on the wire
	http.SetCookie(w, &http.Cookie{
		Name:   t.cookieName,
		Value:  url.QueryEscape(cartId + flag),
		Domain: parentDomain(r.Host),
		Path:   "/",
	})
}

func decodeCookieValue(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}

// parentDomain strips the host down to its registrable parent so the cookie
// is shared with the storefront, e.g. "cart.shop.example.com" scopes to
// ".shop.example.com".
func parentDomain(host string) string {
	if i := strings.Index(host, "."); i != -1 {
		return host[i:]
	}
	return ""
}
