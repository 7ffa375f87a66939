package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Category    string
	SubCategory string
	Brand       string
	Usage       string
	Search      string
	MinPrice    *int64
	MaxPrice    *int64
	Active      *bool
	SortBy      string
	Order       string
	Limit       int
	Offset      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Product, error)
	SlugExists(ctx context.Context, db *gorm.DB, slug string, excludeID snowflake.ID) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Product, int64, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	// DecrementStock moves qty from stock to sold only when enough stock
	// remains. It returns ErrInsufficientStock when no row matched.
	DecrementStock(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int) error
	RestoreStock(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int) error

	FindSpecification(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*Specification, error)
	UpsertSpecification(ctx context.Context, db *gorm.DB, spec *Specification) error
	DeleteSpecification(ctx context.Context, db *gorm.DB, productID snowflake.ID) error

	ListImages(ctx context.Context, db *gorm.DB, productIDs ...snowflake.ID) ([]Image, error)
	InsertImage(ctx context.Context, db *gorm.DB, image *Image) error
	DeleteImages(ctx context.Context, db *gorm.DB, productID snowflake.ID, ids []snowflake.ID) error
	DeleteAllImages(ctx context.Context, db *gorm.DB, productID snowflake.ID) error
	SetPrimaryImage(ctx context.Context, db *gorm.DB, productID, imageID snowflake.ID) error
}
