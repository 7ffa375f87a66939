package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertEvent reports false when the (provider, event_key) pair already exists.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, eventKey string) (*EventRecord, error)
	// UpdateEventOutcome overwrites the callback fields of an existing event.
	UpdateEventOutcome(ctx context.Context, db *gorm.DB, event *EventRecord) error
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}
