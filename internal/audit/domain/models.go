package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ActorTypeSystem = "system"

// AuditLog is one recorded administrative action.
type AuditLog struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	ActorType     string            `json:"actor_type" gorm:"type:varchar(32);not null"`
	ActorID       *string           `json:"actor_id,omitempty" gorm:"type:varchar(128)"`
	Action        string            `json:"action" gorm:"type:varchar(64);not null;index:idx_audit_logs_action"`
	ResourceType  string            `json:"resource_type" gorm:"type:varchar(64);not null;index:idx_audit_logs_resource,priority:1"`
	ResourceKey   string            `json:"resource_key" gorm:"type:varchar(128);not null;index:idx_audit_logs_resource,priority:2"`
	CorrelationID *string           `json:"correlation_id,omitempty" gorm:"type:varchar(64)"`
	RequestID     *string           `json:"request_id,omitempty" gorm:"type:varchar(64)"`
	Detail        datatypes.JSONMap `json:"detail" gorm:"type:json"`
	IPAddress     *string           `json:"ip_address,omitempty" gorm:"type:varchar(64)"`
	UserAgent     *string           `json:"user_agent,omitempty" gorm:"type:text"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;index:idx_audit_logs_created"`
}

func (AuditLog) TableName() string { return "audit_logs" }
