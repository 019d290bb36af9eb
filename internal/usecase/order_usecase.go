package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	maxIdempotencyKeyLen  = 255
	maxShippingAddressLen = 500
	maxOrderLines         = 100
)

// 同じ冪等キーの注文が同時にコミットされた
var errIdempotencyRace = errors.New("idempotency key race")

type OrderUsecase struct {
	tx      repo.TransactionManager
	orders  repo.OrderRepository
	ids     IDGenerator
	clock   Clock
	events  OrderEventPublisher
	metrics OrderMetrics
	log     *slog.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	ids IDGenerator,
	clock Clock,
	events OrderEventPublisher,
	metrics OrderMetrics,
	log *slog.Logger,
) *OrderUsecase {
	if events == nil {
		events = noopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &OrderUsecase{tx: tx, orders: orders, ids: ids, clock: clock, events: events, metrics: metrics, log: log}
}

// Items が空ならカートの中身で注文する
type PlaceOrderInput struct {
	Items           []model.CartLineItem
	ShippingAddress string
	IdempotencyKey  string
}

type OrderItemOutput struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderOutput struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Status          string            `json:"status"`
	Total           decimal.Decimal   `json:"total"`
	ShippingAddress string            `json:"shipping_address,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Items           []OrderItemOutput `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// Created=false は冪等キーによる再送（既存の注文をそのまま返した）
type PlaceOrderResult struct {
	Order   OrderOutput
	Created bool
}

// PlaceOrder は在庫確認・金額計算・在庫減算・注文保存を1トランザクションで行う。
// どこで失敗しても商品と注文は変わらない。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (PlaceOrderResult, error) {
	res, err := u.placeOrder(ctx, userID, in)
	if err != nil {
		reason := failureReason(err)
		u.metrics.OrderFailed(reason)
		u.log.WarnContext(ctx, "order rejected",
			slog.String("user_id", userID),
			slog.String("reason", reason),
			slog.Any("err", err),
		)
		return PlaceOrderResult{}, err
	}
	if !res.Created {
		u.log.InfoContext(ctx, "order replayed",
			slog.String("order_id", res.Order.ID),
			slog.String("user_id", userID),
		)
		return res, nil
	}

	u.metrics.OrderCreated()
	u.log.InfoContext(ctx, "order created",
		slog.String("order_id", res.Order.ID),
		slog.String("user_id", userID),
		slog.String("status", res.Order.Status),
		slog.String("total", res.Order.Total.StringFixed(2)),
	)
	u.publish(ctx, model.OrderEvent{
		Type:    model.OrderEventCreated,
		OrderID: res.Order.ID,
		UserID:  userID,
		Status:  model.OrderStatus(res.Order.Status),
		Total:   res.Order.Total,
		Items:   toOrderItems(res.Order.Items),
	})
	return res, nil
}

func (u *OrderUsecase) placeOrder(ctx context.Context, userID string, in PlaceOrderInput) (PlaceOrderResult, error) {
	if strings.TrimSpace(userID) == "" {
		return PlaceOrderResult{}, unauthorized()
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return PlaceOrderResult{}, badRequest("invalid idempotency_key")
	}
	address := strings.TrimSpace(in.ShippingAddress)
	if len(address) > maxShippingAddressLen {
		return PlaceOrderResult{}, badRequest("shipping_address too long")
	}
	if len(in.Items) > maxOrderLines {
		return PlaceOrderResult{}, badRequest("too many items")
	}
	// トランザクションの外で入力だけ先にチェック
	if err := validateLines(in.Items); err != nil {
		return PlaceOrderResult{}, err
	}

	var res PlaceOrderResult

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err != nil {
				return storageError(err)
			}
			if found {
				res = PlaceOrderResult{Order: toOrderOutput(existing)}
				return nil
			}
		}

		lines := in.Items
		fromCart := len(lines) == 0
		if fromCart {
			cart, err := r.Carts().FindForCheckout(ctx, userID)
			if err != nil {
				return storageError(err)
			}
			if len(cart.Items) == 0 {
				return model.ErrEmptyCart
			}
			lines = cart.LineItems()
		}
		lines = pricing.MergeLines(lines)

		// 確定直前の値で読み直す。行ロックは商品ID順に取る（デッドロック回避）
		fresh := make(map[string]model.Product, len(lines))
		for _, l := range lockOrder(lines) {
			p, err := r.Products().FindForUpdate(ctx, l.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("%w: %s", model.ErrProductNotFound, l.ProductID)
			}
			if err != nil {
				return storageError(err)
			}
			if !p.Available() {
				return fmt.Errorf("%w: %s", model.ErrProductNotFound, l.ProductID)
			}
			if l.Quantity > p.Stock {
				return fmt.Errorf("%w: product %s requested %d available %d",
					model.ErrInsufficientStock, l.ProductID, l.Quantity, p.Stock)
			}
			fresh[p.ID] = p
		}

		quote, err := pricing.Aggregate(ctx, lines, pricing.FromSnapshot(fresh))
		if err != nil {
			return err
		}

		//在庫減算（足りないなら false）
		for _, l := range lines {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return storageError(err)
			}
			if !ok {
				return fmt.Errorf("%w: product %s", model.ErrInsufficientStock, l.ProductID)
			}
		}

		now := u.clock.Now()
		order := model.Order{
			ID:              u.ids.NewID(),
			UserID:          userID,
			Items:           make([]model.OrderItem, 0, len(quote.Lines)),
			Total:           quote.Total,
			Status:          model.OrderStatusCreated,
			ShippingAddress: address,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}
		//スナップショット
		for i, pl := range quote.Lines {
			order.Items = append(order.Items, model.OrderItem{
				ID:          u.ids.NewID(),
				OrderID:     order.ID,
				Position:    i,
				ProductID:   pl.ProductID,
				ProductName: pl.Name,
				Quantity:    pl.Quantity,
				UnitPrice:   pl.UnitPrice,
				Subtotal:    pl.Subtotal,
			})
		}

		if err := r.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, repo.ErrConflict) && key != "" {
				return errIdempotencyRace
			}
			return storageError(err)
		}

		//カートから注文した場合は空にする（再注文防止）
		if fromCart {
			if err := r.Carts().Clear(ctx, userID, now); err != nil {
				return storageError(err)
			}
		}

		res = PlaceOrderResult{Order: toOrderOutput(order), Created: true}
		return nil
	})

	if errors.Is(err, errIdempotencyRace) {
		// ロールバック済み。先にコミットされた注文を返す
		existing, found, ferr := u.orders.FindByIdempotencyKey(ctx, userID, key)
		if ferr != nil {
			return PlaceOrderResult{}, storageError(ferr)
		}
		if !found {
			return PlaceOrderResult{}, NewHTTPError(http.StatusConflict, "idempotency conflict")
		}
		return PlaceOrderResult{Order: toOrderOutput(existing)}, nil
	}
	if err != nil {
		return PlaceOrderResult{}, classify(err)
	}
	return res, nil
}

// 明細を商品ID順に並べたコピー。quote の並びは入力順のまま
func lockOrder(lines []model.CartLineItem) []model.CartLineItem {
	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b model.CartLineItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return sorted
}

func validateLines(items []model.CartLineItem) error {
	for _, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: product %s quantity %d", model.ErrInvalidQuantity, it.ProductID, it.Quantity)
		}
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fmt.Errorf("%w: empty product id", model.ErrProductNotFound)
		}
	}
	return nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID string, page int, limit int) (OrderListOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderListOutput{}, unauthorized()
	}
	if page < 1 {
		return OrderListOutput{}, badRequest("invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, badRequest("invalid limit")
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return OrderListOutput{}, storageError(err)
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o))
	}
	return OrderListOutput{Items: outs, Total: total, Page: page, Limit: limit}, nil
}

// 管理者は他人の注文も読める
func (u *OrderUsecase) GetMyOrder(ctx context.Context, userID string, isAdmin bool, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, unauthorized()
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, badRequest("invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, model.ErrOrderNotFound
	}
	if err != nil {
		return OrderOutput{}, storageError(err)
	}
	if o.UserID != userID && !isAdmin {
		//他人の注文は「存在しない扱い」にする
		return OrderOutput{}, model.ErrOrderNotFound
	}
	return toOrderOutput(o), nil
}

// 出荷前（CREATED/PAID）だけキャンセルでき、在庫を戻す
func (u *OrderUsecase) CancelMyOrder(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, unauthorized()
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, badRequest("invalid id")
	}

	var out OrderOutput
	var prev model.OrderStatus
	var restored int64
	var changed bool

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.ErrOrderNotFound
		}
		if err != nil {
			return storageError(err)
		}
		if o.UserID != userID {
			return model.ErrOrderNotFound
		}

		// 既にキャンセル済みなら何もしない
		if o.Status == model.OrderStatusCancelled {
			out = toOrderOutput(o)
			return nil
		}
		if !o.Status.CanTransitionTo(model.OrderStatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, o.Status, model.OrderStatusCancelled)
		}

		restored, err = restoreStock(ctx, r, o)
		if err != nil {
			return err
		}

		prev = o.Status
		now := u.clock.Now()
		if err := r.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusCancelled, now); err != nil {
			return storageError(err)
		}
		o.Status = model.OrderStatusCancelled
		o.UpdatedAt = now
		out = toOrderOutput(o)
		changed = true
		return nil
	})
	if err != nil {
		return OrderOutput{}, classify(err)
	}

	if changed {
		u.metrics.Restored(restored)
		u.log.InfoContext(ctx, "order cancelled",
			slog.String("order_id", out.ID),
			slog.String("user_id", userID),
			slog.String("status", out.Status),
		)
		u.publish(ctx, model.OrderEvent{
			Type:       model.OrderEventCancelled,
			OrderID:    out.ID,
			UserID:     out.UserID,
			Status:     model.OrderStatusCancelled,
			PrevStatus: prev,
			Total:      out.Total,
		})
	}
	return out, nil
}

// 注文明細の数量を在庫に戻す。戻した合計数量を返す。
func restoreStock(ctx context.Context, r repo.TxRepos, o model.Order) (int64, error) {
	if !o.Status.HoldsStock() {
		return 0, nil
	}
	// 注文作成と同じく商品ID順
	items := slices.Clone(o.Items)
	slices.SortFunc(items, func(a, b model.OrderItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	var units int64
	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			// 商品が物理削除されていたら戻し先がない
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return 0, storageError(err)
		}
		units += it.Quantity
	}
	return units, nil
}

// 通知はベストエフォート（失敗しても注文は成功）
func (u *OrderUsecase) publish(ctx context.Context, ev model.OrderEvent) {
	publishEvent(ctx, u.events, u.ids, u.clock, u.log, ev)
}

func publishEvent(ctx context.Context, p OrderEventPublisher, ids IDGenerator, clock Clock, log *slog.Logger, ev model.OrderEvent) {
	ev.ID = ids.NewID()
	ev.OccurredAt = clock.Now()
	if err := p.Publish(ctx, ev); err != nil {
		log.WarnContext(ctx, "publish order event failed",
			slog.String("order_id", ev.OrderID),
			slog.String("type", string(ev.Type)),
			slog.Any("err", err),
		)
	}
}

func toOrderOutput(o model.Order) OrderOutput {
	items := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           items,
	}
}

func toOrderItems(items []OrderItemOutput) []model.OrderItem {
	out := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, model.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		})
	}
	return out
}
