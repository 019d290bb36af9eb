package model

import "errors"

// 注文・カート処理の失敗理由。
// 呼び出し側は errors.Is で判定する（商品IDなどは %w で付け足す）。
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")

	// DBが使えない。リトライ可能として返す（内部ではリトライしない）
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrEmptyCart         = errors.New("cart is empty")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
