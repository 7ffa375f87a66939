package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser    ActorType = "user"
	ActorTypeSystem  ActorType = "system"
	ActorTypeGateway ActorType = "gateway"
)

const (
	ActionUserRoleChanged     = "user.role_changed"
	ActionUserStatusChanged   = "user.status_changed"
	ActionUserDeleted         = "user.deleted"
	ActionOrderStatusUpdated  = "order.status_updated"
	ActionPaymentUnsignedConf = "payment.unsigned_confirm"
	ActionAuthLoginFailed     = "auth.login_failed"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"not null;size:32" json:"actorType"`
	ActorID    *string           `gorm:"size:64" json:"actorId,omitempty"`
	Action     string            `gorm:"not null;size:64;index" json:"action"`
	TargetType string            `gorm:"not null;size:64;index" json:"targetType"`
	TargetID   *string           `gorm:"size:64" json:"targetId,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"size:64" json:"ipAddress,omitempty"`
	UserAgent  *string           `json:"userAgent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"createdAt"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
