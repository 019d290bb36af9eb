package mongorepo

import (
	"context"
	"fmt"

	repo "storefront/internal/repository"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Store はトランザクション外で使うrepositoryの束
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{client: client, db: db}
}

func (s *Store) Products() *ProductRepository     { return &ProductRepository{s: scope{db: s.db}} }
func (s *Store) Inventory() *InventoryRepository { return &InventoryRepository{s: scope{db: s.db}} }
func (s *Store) Carts() *CartRepository           { return &CartRepository{s: scope{db: s.db}} }
func (s *Store) Orders() *OrderRepository         { return &OrderRepository{s: scope{db: s.db}} }
func (s *Store) AuditLogs() *AuditLogRepository   { return &AuditLogRepository{s: scope{db: s.db}} }

type txRepos struct {
	s scope
}

func (r txRepos) Products() repo.ProductRepository    { return &ProductRepository{s: r.s} }
func (r txRepos) Inventory() repo.InventoryRepository { return &InventoryRepository{s: r.s} }
func (r txRepos) Carts() repo.CartRepository          { return &CartRepository{s: r.s} }
func (r txRepos) Orders() repo.OrderRepository        { return &OrderRepository{s: r.s} }
func (r txRepos) AuditLogs() repo.AuditLogRepository  { return &AuditLogRepository{s: r.s} }

// WithinTx はセッションでトランザクションを張る。
// 失敗しても自動リトライはしない（呼び出し側に返す）。
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(opts); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	if err := fn(txRepos{s: scope{db: s.db, sess: sess}}); err != nil {
		_ = sess.AbortTransaction(context.Background())
		return err
	}

	if err := sess.CommitTransaction(ctx); err != nil {
		_ = sess.AbortTransaction(context.Background())
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
