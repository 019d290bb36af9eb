package model

import "github.com/shopspring/decimal"

// 注文明細
// 商品名と単価は購入時点のスナップショット。後から価格が変わっても変えない。
type OrderItem struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"-"`
	OrderID     string          `gorm:"type:varchar(36);not null;index" json:"-"`
	Position    int             `gorm:"not null" json:"-"`
	ProductID   string          `gorm:"type:varchar(36);not null;index" json:"product_id"`
	ProductName string          `gorm:"type:varchar(100);not null" json:"name"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"subtotal"`
}
