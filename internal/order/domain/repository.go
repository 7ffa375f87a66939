package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID        *snowflake.ID
	Status        string
	PaymentStatus string
	PaymentMethod string
	DateFrom      *time.Time
	DateTo        *time.Time
	Search        string
	SortBy        string
	Order         string
	Limit         int
	Offset        int
}

type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

type MethodSummary struct {
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Count         int64         `json:"count"`
	Revenue       int64         `json:"revenue"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	// FindByIDForUpdate locks the row where the dialect supports it.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, int64, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	ListDeliveredByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Order, error)

	InsertStatus(ctx context.Context, db *gorm.DB, entry *StatusEntry) error
	ListStatus(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]StatusEntry, error)

	CountByStatus(ctx context.Context, db *gorm.DB) ([]StatusCount, error)
	SummaryByPaymentMethod(ctx context.Context, db *gorm.DB) ([]MethodSummary, error)
	SumRevenue(ctx context.Context, db *gorm.DB, paymentStatus PaymentStatus) (int64, error)
}
