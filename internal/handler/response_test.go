package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{usecase.NewHTTPError(http.StatusBadRequest, "invalid page"), http.StatusBadRequest},
		{fmt.Errorf("%w: p1", model.ErrProductNotFound), http.StatusNotFound},
		{model.ErrOrderNotFound, http.StatusNotFound},
		{model.ErrInvalidQuantity, http.StatusBadRequest},
		{model.ErrEmptyCart, http.StatusBadRequest},
		{fmt.Errorf("%w: p1", model.ErrInsufficientStock), http.StatusConflict},
		{model.ErrInvalidTransition, http.StatusConflict},
		{fmt.Errorf("%w: dial tcp", model.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, writeError(c, tc.err))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestWriteError_StorageUnavailableIsRetryable(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, writeError(c, fmt.Errorf("%w: timeout", model.ErrStorageUnavailable)))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	// 内部の詳細は返さない
	assert.JSONEq(t, `{"error":"storage unavailable"}`, rec.Body.String())
}

func TestHealth_PingFailure(t *testing.T) {
	e := echo.New()
	NewHealthHandler(func(ctx context.Context) error { return errors.New("down") }).RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
