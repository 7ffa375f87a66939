package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// TTL bounds how long an idle cart survives.
const TTL = 24 * time.Hour

type Store interface {
	// Load returns an empty cart when the key is unknown or expired.
	Load(ctx context.Context, key string) (Cart, error)
	Save(ctx context.Context, cart Cart, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type AddItem struct {
	ProductID snowflake.ID `json:"productId"`
	Quantity  int          `json:"quantity"`
}

type ItemError struct {
	ProductID snowflake.ID `json:"productId"`
	Error     string       `json:"error"`
}

type Service interface {
	Get(ctx context.Context, key string) (View, error)
	Add(ctx context.Context, key string, productID snowflake.ID, qty int) (View, error)
	AddMultiple(ctx context.Context, key string, items []AddItem) (View, []ItemError, error)
	Update(ctx context.Context, key string, productID snowflake.ID, qty int) (View, error)
	Remove(ctx context.Context, key string, productID snowflake.ID) (View, error)
	Clear(ctx context.Context, key string) error
}

var (
	ErrInvalidSession    = errors.New("invalid_cart_session")
	ErrInvalidProduct    = errors.New("invalid_product_id")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrProductNotFound   = errors.New("product_not_found")
	ErrProductInactive   = errors.New("product_inactive")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrLineNotFound      = errors.New("cart_line_not_found")
)
