package usecase

import (
	"context"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AuditLogUsecase struct {
	auditRepo repo.AuditLogRepository
}

func NewAuditLogUsecase(auditRepo repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{auditRepo: auditRepo}
}

type ListAuditLogsInput struct {
	ActorUserID  string
	Action       string
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

func (u *AuditLogUsecase) List(ctx context.Context, in ListAuditLogsInput) ([]model.AuditLog, error) {
	if in.Limit < 1 || in.Limit > 200 {
		return []model.AuditLog{}, badRequest("invalid limit")
	}
	if in.Offset < 0 {
		return []model.AuditLog{}, badRequest("invalid offset")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return []model.AuditLog{}, badRequest("from must be <= to")
	}

	f := repo.AuditLogFilter{
		ActorUserID: strings.TrimSpace(in.ActorUserID),
		ResourceID:  strings.TrimSpace(in.ResourceID),
		CreatedFrom: in.From,
		CreatedTo:   in.To,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}

	if a := strings.TrimSpace(in.Action); a != "" {
		action := model.AuditAction(strings.ToUpper(a))
		switch action {
		case model.AuditActionUpdateStock, model.AuditActionUpdateOrderStatus, model.AuditActionDeleteProduct:
		default:
			return []model.AuditLog{}, badRequest("invalid action")
		}
		f.Action = &action
	}
	if rt := strings.TrimSpace(in.ResourceType); rt != "" {
		resource := model.AuditResourceType(strings.ToLower(rt))
		switch resource {
		case model.AuditResourceProduct, model.AuditResourceOrder:
		default:
			return []model.AuditLog{}, badRequest("invalid resource_type")
		}
		f.ResourceType = &resource
	}

	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return []model.AuditLog{}, storageError(err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}
