package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type ListRequest struct {
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
	Page        int
	Limit       int
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasMore     bool  `json:"hasMore"`
}

type ListResponse struct {
	Items      []Product  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type SpecificationInput struct {
	CPUType          *string
	RAMCapacity      *string
	RAMType          *string
	RAMSlots         *string
	Storage          *string
	Battery          *string
	GPUType          *string
	ScreenSize       *string
	ScreenTechnology *string
	ScreenResolution *string
	OS               *string
	Ports            *string
	OtherSpecs       *string
	Type             *string
	Specs            map[string]any
}

type CreateRequest struct {
	Name          string
	Description   string
	Price         int64
	OldPrice      *int64
	Category      string
	SubCategory   string
	Brand         string
	Usage         string
	Stock         int
	IsActive      *bool
	Specification *SpecificationInput
	// Images are stored file URLs in upload order.
	Images []string
}

type UpdateRequest struct {
	Name          *string
	Description   *string
	Price         *int64
	OldPrice      *int64
	Category      *string
	SubCategory   *string
	Brand         *string
	Usage         *string
	Stock         *int
	IsActive      *bool
	Specification *SpecificationInput
	// KeptImages nil keeps every current image.
	KeptImages *[]snowflake.ID
	NewImages  []string
	// PrimaryImage is an existing image id or "new:<index>" into NewImages.
	PrimaryImage string
}

// FileStore removes files that back product images.
type FileStore interface {
	Remove(ctx context.Context, url string) error
}

type Service interface {
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, idOrSlug string, includeInactive bool) (Product, error)
	Create(ctx context.Context, req CreateRequest) (Product, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (Product, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrInvalidStock      = errors.New("invalid_stock")
	ErrInvalidCategory   = errors.New("invalid_category")
	ErrInvalidImage      = errors.New("invalid_image")
	ErrInsufficientStock = errors.New("insufficient_stock")
)
