package handler

import (
	"net/http"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// AuthJWTが動いていない時（JWT_SECRET無し）は誰でも通す。
// 動いている時はsubと対象のuser_idが一致する必要がある。
func authorizeUser(c echo.Context, userID string) error {
	raw := c.Get(middleware.CtxUserIDKey)
	if raw == nil {
		return nil
	}
	sub, ok := raw.(string)
	if !ok || sub == "" {
		return usecase.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(userID) == "" {
		// user_id無しは検証側で弾く
		return nil
	}
	if sub != strings.TrimSpace(userID) {
		return usecase.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return nil
}
