package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AdminOrderUsecase struct {
	tx      repo.TransactionManager
	orders  repo.OrderRepository
	ids     IDGenerator
	clock   Clock
	events  OrderEventPublisher
	metrics OrderMetrics
	log     *slog.Logger
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	ids IDGenerator,
	clock Clock,
	events OrderEventPublisher,
	metrics OrderMetrics,
	log *slog.Logger,
) *AdminOrderUsecase {
	if events == nil {
		events = noopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &AdminOrderUsecase{tx: tx, orders: orders, ids: ids, clock: clock, events: events, metrics: metrics, log: log}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, badRequest("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, badRequest("invalid limit")
	}
	if f.Status != "" {
		if _, ok := model.ParseOrderStatus(f.Status); !ok {
			return OrderListOutput{}, badRequest("invalid status")
		}
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return OrderListOutput{}, badRequest("from must be <= to")
	}

	orders, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		return OrderListOutput{}, storageError(err)
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o))
	}
	return OrderListOutput{Items: outs, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// ステータス更新（CANCELLED なら在庫戻し）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID string, orderID string, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if strings.TrimSpace(actorAdminUserID) == "" {
		return OrderOutput{}, unauthorized()
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, badRequest("invalid id")
	}
	next, ok := model.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !ok {
		return OrderOutput{}, badRequest("invalid status")
	}

	var out OrderOutput
	var before model.OrderStatus
	var restored int64
	var changed bool

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.ErrOrderNotFound
		}
		if err != nil {
			return storageError(err)
		}

		// すでに同じなら何もしない（200）
		if o.Status == next {
			out = toOrderOutput(o)
			return nil
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, o.Status, next)
		}

		// CANCELLEDのときだけ在庫戻し
		if next == model.OrderStatusCancelled {
			restored, err = restoreStock(ctx, r, o)
			if err != nil {
				return err
			}
		}

		before = o.Status
		now := u.clock.Now()
		if err := r.Orders().UpdateStatus(ctx, orderID, next, now); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return model.ErrOrderNotFound
			}
			return storageError(err)
		}

		// 監査ログ（UPDATE_ORDER_STATUS）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ID:           u.ids.NewID(),
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(before),
			AfterJSON:    statusJSON(next),
			CreatedAt:    now,
		}); err != nil {
			return storageError(err)
		}

		o.Status = next
		o.UpdatedAt = now
		out = toOrderOutput(o)
		changed = true
		return nil
	})
	if err != nil {
		return OrderOutput{}, classify(err)
	}

	if changed {
		if next == model.OrderStatusCancelled {
			u.metrics.Restored(restored)
		}
		u.log.InfoContext(ctx, "order status changed",
			slog.String("order_id", out.ID),
			slog.String("actor_user_id", actorAdminUserID),
			slog.String("before", string(before)),
			slog.String("status", out.Status),
		)
		publishEvent(ctx, u.events, u.ids, u.clock, u.log, model.OrderEvent{
			Type:       model.OrderEventStatusChanged,
			OrderID:    out.ID,
			UserID:     out.UserID,
			Status:     next,
			PrevStatus: before,
			Total:      out.Total,
		})
	}
	return out, nil
}

func statusJSON(s model.OrderStatus) string {
	b, _ := json.Marshal(map[string]string{"status": string(s)})
	return string(b)
}

// 期間パラメータ（RFC3339）。空なら nil。
func ParseDateTimeRFC3339(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, badRequest("invalid datetime: " + s)
	}
	return &t, nil
}
