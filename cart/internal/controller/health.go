package controller

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	inErrors "github.com/alfikri/estore-bff/internal/common/errors"
	inHttp "github.com/alfikri/estore-bff/internal/common/http"
	"github.com/alfikri/estore-bff/internal/log"
	"github.com/alfikri/estore-bff/internal/otel"
)

type HealthController struct {
	cache *redis.Client
}

func AttachHealthController(router *mux.Router, cache *redis.Client) {
	controller := HealthController{cache: cache}
	router.HandleFunc("/health", controller.Health).Methods(http.MethodGet)
}

func (t HealthController) Health(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "HealthController Health")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "HealthController Health").
		Str(log.KeyProcess, "pinging cache").
		Logger()

	if err := t.cache.Ping(c).Err(); err != nil {
		err = fmt.Errorf("failed pinging cache with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusServiceUnavailable,
			"message":    err.Error(),
		})
		return
	}

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "healthy",
	})
}
