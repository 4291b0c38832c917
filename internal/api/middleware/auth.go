package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys the Auth middleware fills from the token claims.
const (
	CtxUserID = "user_id"
	CtxName   = "name"
	CtxEmail  = "email"
	CtxRole   = "role"
)

// Auth validates the JWT and injects claims into context. The token comes
// from the Authorization header or, for WebSocket handshakes where browsers
// cannot set headers, from the token query parameter.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := tokenFrom(c)
			if err != nil {
				return err
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			sub, _ := claims.GetSubject()
			role, _ := claims["role"].(string)
			if sub == "" || role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing identity")
			}

			c.Set(CtxUserID, sub)
			c.Set(CtxRole, role)
			c.Set(CtxName, claims["name"])
			c.Set(CtxEmail, claims["email"])

			return next(c)
		}
	}
}

func tokenFrom(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if q := c.QueryParam("token"); q != "" {
			return q, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}
