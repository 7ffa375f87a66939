package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
)

type CreateItem struct {
	ProductID snowflake.ID
	Quantity  int
	Price     int64
	Name      string
	Image     string
}

type CreateRequest struct {
	UserID          snowflake.ID
	Items           []CreateItem
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	Note            string
}

type ListForUserRequest struct {
	UserID snowflake.ID
	Status string
	Page   int
	Limit  int
}

type ListAllRequest struct {
	Status        string
	PaymentStatus string
	PaymentMethod string
	DateFrom      *time.Time
	DateTo        *time.Time
	Search        string
	SortBy        string
	Order         string
	Page          int
	Limit         int
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalOrders int64 `json:"totalOrders"`
	HasMore     bool  `json:"hasMore"`
}

type ListResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

type Summary struct {
	ByStatus     map[Status]int64 `json:"byStatus"`
	TotalOrders  int64            `json:"totalOrders"`
	TotalRevenue int64            `json:"totalRevenue"`
}

type ListAllResponse struct {
	ListResponse
	Summary Summary `json:"summary"`
}

type Statistics struct {
	TotalOrders       int64                           `json:"totalOrders"`
	TotalRevenue      int64                           `json:"totalRevenue"`
	AverageOrderValue int64                           `json:"averageOrderValue"`
	CompletionRate    float64                         `json:"completionRate"`
	ByStatus          map[Status]int64                `json:"byStatus"`
	ByPaymentMethod   map[PaymentMethod]MethodSummary `json:"byPaymentMethod"`
}

type UpdateStatusRequest struct {
	OrderID   snowflake.ID
	Status    Status
	UpdatedBy string
	Note      string
}

type CancelRequest struct {
	OrderID snowflake.ID
	UserID  snowflake.ID
	Reason  string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Order, error)
	ListForUser(ctx context.Context, req ListForUserRequest) (ListResponse, error)
	Get(ctx context.Context, orderID snowflake.ID, actor actorcontext.Actor) (Order, error)
	ListAll(ctx context.Context, req ListAllRequest) (ListAllResponse, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (Order, error)
	Cancel(ctx context.Context, req CancelRequest) (Order, error)
	Statistics(ctx context.Context) (Statistics, error)
	Invoice(ctx context.Context, orderID snowflake.ID, actor actorcontext.Actor) (io.Reader, Order, error)
}

// InvoiceRenderer renders an order as a printable document.
type InvoiceRenderer interface {
	RenderOrderInvoice(ctx context.Context, order Order) (io.Reader, error)
}

var (
	ErrNotFound            = errors.New("not_found")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidItems        = errors.New("invalid_items")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidShipping     = errors.New("invalid_shipping_address")
	ErrInvalidPayment      = errors.New("invalid_payment_method")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrProductNotFound     = errors.New("product_not_found")
	ErrInsufficientStock   = errors.New("insufficient_stock")
	ErrForbidden           = errors.New("forbidden")
	ErrOrderCancelled      = errors.New("order_cancelled")
	ErrStatusRegression    = errors.New("status_regression")
	ErrOrderNotCancellable = errors.New("order_not_cancellable")
	ErrInvoiceUnavailable  = errors.New("invoice_unavailable")
)
