package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// AuthJWT の後ろに置く。roles のどれでもなければ 403。
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxUserRoleKey).(string)
			if role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			if !slices.Contains(roles, role) {
				return c.JSON(http.StatusForbidden, errorJSON(forbiddenMessage(roles)))
			}
			return next(c)
		}
	}
}

// 管理系APIの入口
func AdminRoleGuard() echo.MiddlewareFunc {
	return RequireRole(RoleAdmin)
}

func forbiddenMessage(roles []string) string {
	if len(roles) == 1 && roles[0] == RoleAdmin {
		return "admin only"
	}
	return "forbidden"
}
