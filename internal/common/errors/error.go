package errors

import (
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrChildQuantityUpdate = errors.New("child item quantity update not allowed")
	ErrEmptyProductIds     = errors.New("productIds is undefined")
	ErrItemNotFound        = errors.New("unable to update item quantity, item not found")
	ErrMissingCartCookie   = errors.New("cart reference cookie does not exist")
	ErrNoPromotions        = errors.New("promotion not found in cart")
	ErrNothingRemoved      = errors.New("unable to update cart, nothing removed")
	ErrTokenInvalid        = errors.New("invalid token")
)

func HandleError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.AddEvent(err.Error())
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
