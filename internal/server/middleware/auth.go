package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}

// AuthMiddleware resolves the caller from a bearer token: the master API key
// or a JWT verified against the auth service's JWKS.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "Unauthorized")
		}

		cc := c.(*AppContext)
		app := cc.App

		if app.MasterAPIKey != "" && app.MasterUserID != "" && token == app.MasterAPIKey {
			cc.User = &AppUser{
				UserID: app.MasterUserID,
				Role:   RoleAdmin,
			}
			return next(c)
		}

		if app.Key == nil {
			return unauthorized(c, "Unauthorized")
		}
		parsed, err := jwt.Parse(token, app.Key.Keyfunc)
		if err != nil || !parsed.Valid {
			return unauthorized(c, "Unauthorized")
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Unauthorized")
		}

		userID, ok := userIDFromClaims(claims)
		if !ok {
			return unauthorized(c, "Invalid user ID")
		}

		role := RoleUser
		if roleClaim, ok := claims["role"].(string); ok && roleClaim != "" {
			role = roleClaim
		}

		cc.User = &AppUser{
			UserID: userID,
			Role:   role,
		}

		return next(c)
	}
}

// userIDFromClaims reads "id" (string or number) and falls back to "sub".
func userIDFromClaims(claims jwt.MapClaims) (string, bool) {
	switch id := claims["id"].(type) {
	case string:
		if id != "" {
			return id, true
		}
	case float64:
		return strconv.FormatInt(int64(id), 10), true
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, true
	}
	return "", false
}
