package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/dormitory/internal/audit/domain"
	"github.com/smallbiznis/dormitory/internal/auditcontext"
	"github.com/smallbiznis/dormitory/internal/clock"
	obscontext "github.com/smallbiznis/dormitory/internal/observability/context"
	"github.com/smallbiznis/dormitory/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, action, resourceType, resourceKey string, actorID, correlationID *string, detail map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	resourceType = strings.TrimSpace(resourceType)
	resourceKey = strings.TrimSpace(resourceKey)
	if resourceType == "" || resourceKey == "" {
		return auditdomain.ErrInvalidResource
	}

	actorType, ctxActorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = auditdomain.ActorTypeSystem
	}
	if normalizePointer(actorID) == nil && ctxActorID != "" {
		actorID = &ctxActorID
	}

	payload := datatypes.JSONMap{}
	for key, value := range detail {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	entry := auditdomain.AuditLog{
		ID:            s.genID.Generate(),
		ActorType:     actorType,
		ActorID:       normalizePointer(actorID),
		Action:        action,
		ResourceType:  resourceType,
		ResourceKey:   resourceKey,
		CorrelationID: normalizePointer(correlationID),
		RequestID:     optional(obscontext.RequestIDFromContext(ctx)),
		Detail:        payload,
		IPAddress:     optional(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:     optional(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:     s.clock.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	page := pagination.Pagination{
		PageToken: strings.TrimSpace(req.PageToken),
		PageSize:  req.PageSize,
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceKey:  req.ResourceKey,
	}, page)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Limit(), func(item *auditdomain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return auditdomain.ListAuditLogResponse{
		PageInfo:  *pageInfo,
		AuditLogs: logs,
	}, nil
}

func optional(value string) *string {
	return normalizePointer(&value)
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
