package usecase_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/memory"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// 連番のID（並行テストでも重複しない）
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

// 受け取ったイベントを記録するだけ
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev model.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []model.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.OrderEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func seedProduct(t *testing.T, s *memory.Store, id string, price string, stock int64) model.Product {
	t.Helper()
	p := model.Product{
		ID:        id,
		Name:      "product " + id,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		IsActive:  true,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, s.Products().Create(context.Background(), p))
	return p
}

func stockOf(t *testing.T, s *memory.Store, id string) int64 {
	t.Helper()
	p, err := s.Products().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertHTTPStatus(t *testing.T, err error, status int) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "want HTTPError, got %v", err) {
		assert.Equal(t, status, he.Status)
	}
}

func assertBadRequest(t *testing.T, err error) {
	t.Helper()
	assertHTTPStatus(t, err, http.StatusBadRequest)
}

// =====================
// 障害注入用のラッパー
// =====================

// Orders() だけ差し替える TransactionManager
type wrapTx struct {
	inner  repo.TransactionManager
	orders func(repo.OrderRepository) repo.OrderRepository
}

func (w wrapTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return w.inner.WithinTx(ctx, func(r repo.TxRepos) error {
		return fn(wrapRepos{TxRepos: r, orders: w.orders(r.Orders())})
	})
}

type wrapRepos struct {
	repo.TxRepos
	orders repo.OrderRepository
}

func (r wrapRepos) Orders() repo.OrderRepository { return r.orders }

// Create が必ず失敗する
type failingCreate struct {
	repo.OrderRepository
	err error
}

func (f failingCreate) Create(ctx context.Context, o model.Order) error { return f.err }

// 別リクエストが先に同じキーでコミットした状況を再現する
type racingOrders struct {
	repo.OrderRepository
}

func (racingOrders) FindByIdempotencyKey(ctx context.Context, userID string, key string) (model.Order, bool, error) {
	return model.Order{}, false, nil
}

func (racingOrders) Create(ctx context.Context, o model.Order) error { return repo.ErrConflict }

// トランザクション内でどの読み取りを使ったかを順に記録する
type readTracer struct {
	inner repo.TransactionManager
	mu    sync.Mutex
	calls []string
}

func (l *readTracer) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *readTracer) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *readTracer) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return l.inner.WithinTx(ctx, func(r repo.TxRepos) error {
		return fn(tracedRepos{TxRepos: r, l: l})
	})
}

type tracedRepos struct {
	repo.TxRepos
	l *readTracer
}

func (r tracedRepos) Products() repo.ProductRepository {
	return tracedProducts{ProductRepository: r.TxRepos.Products(), l: r.l}
}

func (r tracedRepos) Orders() repo.OrderRepository {
	return tracedOrders{OrderRepository: r.TxRepos.Orders(), l: r.l}
}

func (r tracedRepos) Carts() repo.CartRepository {
	return tracedCarts{CartRepository: r.TxRepos.Carts(), l: r.l}
}

type tracedProducts struct {
	repo.ProductRepository
	l *readTracer
}

func (p tracedProducts) FindForUpdate(ctx context.Context, id string) (model.Product, error) {
	p.l.record("lock product " + id)
	return p.ProductRepository.FindForUpdate(ctx, id)
}

type tracedOrders struct {
	repo.OrderRepository
	l *readTracer
}

func (o tracedOrders) FindByID(ctx context.Context, id string) (model.Order, error) {
	o.l.record("read order " + id)
	return o.OrderRepository.FindByID(ctx, id)
}

func (o tracedOrders) FindForUpdate(ctx context.Context, id string) (model.Order, error) {
	o.l.record("lock order " + id)
	return o.OrderRepository.FindForUpdate(ctx, id)
}

type tracedCarts struct {
	repo.CartRepository
	l *readTracer
}

func (c tracedCarts) FindByUserID(ctx context.Context, userID string) (model.Cart, error) {
	c.l.record("read cart " + userID)
	return c.CartRepository.FindByUserID(ctx, userID)
}

func (c tracedCarts) FindForCheckout(ctx context.Context, userID string) (model.Cart, error) {
	c.l.record("lock cart " + userID)
	return c.CartRepository.FindForCheckout(ctx, userID)
}
