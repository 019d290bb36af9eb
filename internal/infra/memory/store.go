// Package memory はプロセス内で完結するrepository実装。
// ローカル開発とテスト用。再起動でデータは消える。
package memory

import (
	"context"
	"sync"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type state struct {
	products    map[string]model.Product
	carts       map[string]model.Cart // key: userID
	orders      map[string]model.Order
	orderIDs    []string // 作成順
	adjustments []model.InventoryAdjustment
	auditLogs   []model.AuditLog
}

func newState() *state {
	return &state{
		products: map[string]model.Product{},
		carts:    map[string]model.Cart{},
		orders:   map[string]model.Order{},
	}
}

func (s *state) clone() *state {
	c := &state{
		products:    make(map[string]model.Product, len(s.products)),
		carts:       make(map[string]model.Cart, len(s.carts)),
		orders:      make(map[string]model.Order, len(s.orders)),
		orderIDs:    append([]string(nil), s.orderIDs...),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
		auditLogs:   append([]model.AuditLog(nil), s.auditLogs...),
	}
	for k, v := range s.products {
		c.products[k] = copyProduct(v)
	}
	for k, v := range s.carts {
		c.carts[k] = copyCart(v)
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

// Store は全データを1つのmutexで守る
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// base は「Store直下」か「トランザクション中のコピー」のどちらかを操作する
type base struct {
	store *Store
	tx    *state
}

// 判定と更新は fn の中で済ませる（ロック内）
func (b base) do(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

func (s *Store) Products() *ProductRepository     { return &ProductRepository{base{store: s}} }
func (s *Store) Inventory() *InventoryRepository { return &InventoryRepository{base{store: s}} }
func (s *Store) Carts() *CartRepository           { return &CartRepository{base{store: s}} }
func (s *Store) Orders() *OrderRepository         { return &OrderRepository{base{store: s}} }
func (s *Store) AuditLogs() *AuditLogRepository   { return &AuditLogRepository{base{store: s}} }

type txRepos struct {
	b base
}

func (r txRepos) Products() repo.ProductRepository    { return &ProductRepository{r.b} }
func (r txRepos) Inventory() repo.InventoryRepository { return &InventoryRepository{r.b} }
func (r txRepos) Carts() repo.CartRepository          { return &CartRepository{r.b} }
func (r txRepos) Orders() repo.OrderRepository        { return &OrderRepository{r.b} }
func (r txRepos) AuditLogs() repo.AuditLogRepository  { return &AuditLogRepository{r.b} }

// WithinTx はロックを取ったままコピーに対して fn を実行し、成功したときだけ差し替える。
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(txRepos{b: base{store: s, tx: work}}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func copyProduct(p model.Product) model.Product {
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	if p.Attributes != nil {
		attrs := make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			attrs[k] = v
		}
		p.Attributes = attrs
	}
	return p
}

func copyCart(c model.Cart) model.Cart {
	c.Items = append([]model.CartItem{}, c.Items...)
	return c
}

func copyOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem{}, o.Items...)
	if o.IdempotencyKey != nil {
		k := *o.IdempotencyKey
		o.IdempotencyKey = &k
	}
	return o
}
