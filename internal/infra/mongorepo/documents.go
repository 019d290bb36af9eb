package mongorepo

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// 金額はDecimal128で保存する（floatにしない）
func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode decimal %s: %w", v.String(), err)
	}
	return d, nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repo.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return repo.ErrConflict
	}
	return err
}

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Category    string               `bson:"category"`
	Tags        []string             `bson:"tags"`
	Price       primitive.Decimal128 `bson:"price"`
	Stock       int64                `bson:"stock"`
	IsActive    bool                 `bson:"is_active"`
	Attributes  map[string]string    `bson:"attributes,omitempty"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
	DeletedAt   *time.Time           `bson:"deleted_at"`
}

func newProductDoc(p model.Product) (productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return productDoc{}, err
	}
	d := productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Tags:        p.Tags,
		Price:       price,
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		Attributes:  p.Attributes,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if p.DeletedAt.Valid {
		t := p.DeletedAt.Time
		d.DeletedAt = &t
	}
	return d, nil
}

func (d productDoc) toModel() (model.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return model.Product{}, err
	}
	p := model.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Tags:        d.Tags,
		Price:       price,
		Stock:       d.Stock,
		IsActive:    d.IsActive,
		Attributes:  d.Attributes,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.DeletedAt != nil {
		p.DeletedAt = gorm.DeletedAt{Time: *d.DeletedAt, Valid: true}
	}
	return p, nil
}

type cartItemDoc struct {
	ID        string    `bson:"id"`
	ProductID string    `bson:"product_id"`
	Quantity  int64     `bson:"quantity"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// カートは明細を埋め込んだ1ドキュメント
type cartDoc struct {
	ID        string        `bson:"_id"`
	UserID    string        `bson:"user_id"`
	Items     []cartItemDoc `bson:"items"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (d cartDoc) toModel() model.Cart {
	c := model.Cart{
		ID:        d.ID,
		UserID:    d.UserID,
		Items:     make([]model.CartItem, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, it := range d.Items {
		c.Items = append(c.Items, model.CartItem{
			ID:        it.ID,
			CartID:    d.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			CreatedAt: it.CreatedAt,
			UpdatedAt: it.UpdatedAt,
		})
	}
	return c
}

type orderItemDoc struct {
	ID          string               `bson:"id"`
	ProductID   string               `bson:"product_id"`
	ProductName string               `bson:"product_name"`
	Quantity    int64                `bson:"quantity"`
	UnitPrice   primitive.Decimal128 `bson:"unit_price"`
	Subtotal    primitive.Decimal128 `bson:"subtotal"`
}

// 注文も明細を埋め込む
type orderDoc struct {
	ID              string               `bson:"_id"`
	UserID          string               `bson:"user_id"`
	Items           []orderItemDoc       `bson:"items"`
	Total           primitive.Decimal128 `bson:"total"`
	Status          string               `bson:"status"`
	ShippingAddress string               `bson:"shipping_address,omitempty"`
	IdempotencyKey  *string              `bson:"idempotency_key,omitempty"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

func newOrderDoc(o model.Order) (orderDoc, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return orderDoc{}, err
	}
	d := orderDoc{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           make([]orderItemDoc, 0, len(o.Items)),
		Total:           total,
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		IdempotencyKey:  o.IdempotencyKey,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		unit, err := toDecimal128(it.UnitPrice)
		if err != nil {
			return orderDoc{}, err
		}
		sub, err := toDecimal128(it.Subtotal)
		if err != nil {
			return orderDoc{}, err
		}
		d.Items = append(d.Items, orderItemDoc{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   unit,
			Subtotal:    sub,
		})
	}
	return d, nil
}

func (d orderDoc) toModel() (model.Order, error) {
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return model.Order{}, err
	}
	o := model.Order{
		ID:              d.ID,
		UserID:          d.UserID,
		Items:           make([]model.OrderItem, 0, len(d.Items)),
		Total:           total,
		Status:          model.OrderStatus(d.Status),
		ShippingAddress: d.ShippingAddress,
		IdempotencyKey:  d.IdempotencyKey,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for i, it := range d.Items {
		unit, err := fromDecimal128(it.UnitPrice)
		if err != nil {
			return model.Order{}, err
		}
		sub, err := fromDecimal128(it.Subtotal)
		if err != nil {
			return model.Order{}, err
		}
		o.Items = append(o.Items, model.OrderItem{
			ID:          it.ID,
			OrderID:     d.ID,
			Position:    i,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   unit,
			Subtotal:    sub,
		})
	}
	return o, nil
}

type adjustmentDoc struct {
	ID          string    `bson:"_id"`
	ProductID   string    `bson:"product_id"`
	ActorUserID string    `bson:"actor_user_id"`
	Delta       int64     `bson:"delta"`
	Reason      string    `bson:"reason"`
	CreatedAt   time.Time `bson:"created_at"`
}

type auditLogDoc struct {
	ID           string    `bson:"_id"`
	ActorUserID  string    `bson:"actor_user_id"`
	Action       string    `bson:"action"`
	ResourceType string    `bson:"resource_type"`
	ResourceID   string    `bson:"resource_id"`
	BeforeJSON   string    `bson:"before_json"`
	AfterJSON    string    `bson:"after_json"`
	CreatedAt    time.Time `bson:"created_at"`
}
