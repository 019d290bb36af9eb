package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"type:varchar(50);index" json:"category"`
	Tags        []string        `gorm:"serializer:json" json:"tags"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock       int64           `gorm:"not null;check:stock >= 0" json:"stock"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`

	//スキーマにない任意項目（色・サイズなど）
	Attributes map[string]string `gorm:"serializer:json" json:"attributes,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 購入者から見えるか（公開中かつ未削除）
func (p Product) Available() bool {
	return p.IsActive && !p.DeletedAt.Valid
}
