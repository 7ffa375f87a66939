package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Search   string
	Role     string
	IsActive *bool
	Limit    int
	Offset   int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]User, int64, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	CountOrders(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	CountReviews(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	DeleteReviews(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
