package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"storefront/internal/domain/model"
)

// 入力チェックなど、ステータスを自分で決めるエラー
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func badRequest(message string) error {
	return NewHTTPError(http.StatusBadRequest, message)
}

func unauthorized() error {
	return NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

// DBのエラーは「一時的に使えない」として返す
func storageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
}

var domainErrors = []error{
	model.ErrProductNotFound,
	model.ErrInvalidQuantity,
	model.ErrInsufficientStock,
	model.ErrStorageUnavailable,
	model.ErrEmptyCart,
	model.ErrOrderNotFound,
	model.ErrInvalidTransition,
}

// トランザクションから返ったエラーを分類する。
// 既知のエラーはそのまま、それ以外（commit失敗など）はストレージ障害。
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return storageError(err)
}

// メトリクスとログ用の理由ラベル
func failureReason(err error) string {
	switch {
	case errors.Is(err, model.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, model.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, model.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, model.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, model.ErrStorageUnavailable):
		return "storage_unavailable"
	}
	if _, ok := AsHTTPError(err); ok {
		return "invalid_input"
	}
	return "unknown"
}
