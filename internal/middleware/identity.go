package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	inErrors "github.com/alfikri/estore-bff/internal/common/errors"
	inHttp "github.com/alfikri/estore-bff/internal/common/http"
	"github.com/alfikri/estore-bff/internal/log"
	"github.com/alfikri/estore-bff/internal/otel"
)

type userExtKey struct{}

func UserExtKeyFromContext(c context.Context) string {
	key, ok := c.Value(userExtKey{}).(string)
	if !ok {
		return ""
	}
	return key
}

// Identity resolves the external user key from an optional bearer token. A
// request without a token stays anonymous; a request with an invalid token is
// rejected.
func Identity(secretKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, span := otel.Tracer.Start(r.Context(), "middleware Identity")
			defer span.End()

			logger := zerolog.Ctx(c).
				With().
				Str(log.KeyTag, "middleware Identity").
				Logger()

			authorization := r.Header.Get("Authorization")
			if authorization == "" {
				logger.Trace().Msg("no authorization header, continuing anonymous")
				next.ServeHTTP(w, r.WithContext(c))
				return
			}

			token := strings.TrimPrefix(authorization, "Bearer ")
			claims := jwt.RegisteredClaims{}
			jwtToken, err := jwt.ParseWithClaims(
				token,
				&claims,
				func(t *jwt.Token) (interface{}, error) { return []byte(secretKey), nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
				jwt.WithExpirationRequired(),
			)
			if err != nil || !jwtToken.Valid || claims.Subject == "" {
				err = fmt.Errorf("failed parsing bearer token with error=%w", inErrors.ErrTokenInvalid)
				inErrors.HandleError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
					"status":     "failed",
					"statusCode": http.StatusUnauthorized,
					"message":    inErrors.ErrTokenInvalid.Error(),
				})
				return
			}

			logger = logger.With().Str(log.KeyUserExtKey, claims.Subject).Logger()
			logger.Trace().Msg("resolved user external key from bearer token")
			c = context.WithValue(c, userExtKey{}, claims.Subject)
			c = logger.WithContext(c)
			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}
