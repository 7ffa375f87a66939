package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type RatingCount struct {
	Rating int
	Count  int64
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, review *Review) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Review, error)
	FindByUserProduct(ctx context.Context, db *gorm.DB, userID, productID snowflake.ID) (*Review, error)
	// ListByProduct returns reviews newest first with reviewer and replier joined.
	ListByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID, limit, offset int) ([]Review, error)
	CountByRating(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]RatingCount, error)
	UpdateReply(ctx context.Context, db *gorm.DB, id snowflake.ID, reply string, repliedBy snowflake.ID, repliedAt time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
