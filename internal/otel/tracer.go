package otel

import (
	"go.opentelemetry.io/otel"

	"github.com/alfikri/estore-bff/internal/common/constants"
)

var Tracer = otel.Tracer(constants.APP_CART_SERVICE)
