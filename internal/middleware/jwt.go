package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"valeservice/internal/models"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const tokenContextKey = "user"

// JWTConfig selects how bearer tokens are verified. When JWKSURL is set the
// keys are fetched from it and refreshed in the background, otherwise tokens
// must be signed with Secret (HS256).
type JWTConfig struct {
	Secret  string
	JWKSURL string
}

// JWTMiddleware verifies bearer tokens and stores the parsed *models.Claims
// under the echo context. The returned stop function ends the key refresh.
func JWTMiddleware(cfg JWTConfig, logger *zap.Logger) (echo.MiddlewareFunc, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config := echojwt.Config{
		ContextKey: tokenContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(models.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var extractErr *echojwt.TokenExtractionError
			if errors.As(err, &extractErr) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}

	stop := func() {}
	if cfg.JWKSURL != "" {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.Warn("failed to refresh JWKS", zap.String("url", cfg.JWKSURL), zap.Error(err))
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load JWKS from %s: %w", cfg.JWKSURL, err)
		}
		config.KeyFunc = jwks.Keyfunc
		stop = jwks.EndBackground
	} else {
		if cfg.Secret == "" {
			return nil, nil, errors.New("jwt secret is required when no JWKS url is configured")
		}
		config.SigningKey = []byte(cfg.Secret)
		config.SigningMethod = jwt.SigningMethodHS256.Alg()
	}

	return echojwt.WithConfig(config), stop, nil
}

// ClaimsFromContext returns the verified claims stored by JWTMiddleware.
func ClaimsFromContext(c echo.Context) (*models.Claims, bool) {
	token, ok := c.Get(tokenContextKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}
	claims, ok := token.Claims.(*models.Claims)
	return claims, ok
}
