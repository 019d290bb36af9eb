package model

import "time"

// 1ユーザーにつきカートは1つ
type Cart struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"user_id"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

// 注文作成の入力。永続化はしない。
type CartLineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// カート明細をワークフロー入力に変換
func (c Cart) LineItems() []CartLineItem {
	out := make([]CartLineItem, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, CartLineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
