package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/dormitory/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action       string
	ResourceType string
	ResourceKey  string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Recorder is the narrow sink domain services write audit records through.
type Recorder interface {
	Record(ctx context.Context, action, resourceType, resourceKey string, actorID, correlationID *string, detail map[string]any) error
}

type Service interface {
	Recorder
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

type ListFilter struct {
	Action       string
	ResourceType string
	ResourceKey  string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*AuditLog, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidResource  = errors.New("invalid_resource")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
