package model

import "time"

// カートの明細
// 価格は持たない。表示のたびに現在の商品価格で計算する。
type CartItem struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CartID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_product" json:"-"`
	ProductID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_product" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
