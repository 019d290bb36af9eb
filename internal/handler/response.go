package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse は { message: string } の形
type SuccessResponse struct {
	Message string `json:"message"`
}

type statusRule struct {
	target error
	status int
}

// 上から順に判定する
var statusRules = []statusRule{
	{model.ErrProductNotFound, http.StatusNotFound},
	{model.ErrOrderNotFound, http.StatusNotFound},
	{model.ErrInvalidQuantity, http.StatusBadRequest},
	{model.ErrEmptyCart, http.StatusBadRequest},
	{model.ErrInsufficientStock, http.StatusConflict},
	{model.ErrInvalidTransition, http.StatusConflict},
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	// リトライしてよい
	if errors.Is(err, model.ErrStorageUnavailable) {
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: model.ErrStorageUnavailable.Error()})
	}

	for _, r := range statusRules {
		if errors.Is(err, r.target) {
			return c.JSON(r.status, ErrorResponse{Error: err.Error()})
		}
	}

	//500
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func getUserIDFromContext(c echo.Context) (string, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func isAdmin(c echo.Context) bool {
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return role == middleware.RoleAdmin
}

// 整数のクエリ。空ならdef。
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}
