package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipping   Status = "shipping"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusPaid,
	StatusProcessing,
	StatusShipping,
	StatusDelivered,
	StatusCancelled,
}

var statusRank = map[Status]int{
	StatusPending:    0,
	StatusPaid:       1,
	StatusProcessing: 2,
	StatusShipping:   3,
	StatusDelivered:  4,
}

// Rank returns the lifecycle position of a non-cancelled status.
func (s Status) Rank() (int, bool) {
	rank, ok := statusRank[s]
	return rank, ok
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "cod"
	PaymentMethodVNPay   PaymentMethod = "vnpay"
	PaymentMethodBanking PaymentMethod = "banking"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodVNPay, PaymentMethodBanking:
		return true
	}
	return false
}

// LineItem is a snapshot of a product at purchase time.
type LineItem struct {
	ProductID snowflake.ID `json:"productId"`
	Name      string       `json:"name"`
	Price     int64        `json:"price"`
	Quantity  int          `json:"quantity"`
	Image     string       `json:"image,omitempty"`
}

type ShippingAddress struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Ward     string `json:"ward,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city,omitempty"`
}

type Order struct {
	ID              snowflake.ID                        `gorm:"primaryKey" json:"id"`
	UserID          snowflake.ID                        `gorm:"not null;index" json:"userId"`
	OrderCode       string                              `gorm:"not null;size:32;uniqueIndex" json:"orderCode"`
	Items           datatypes.JSONSlice[LineItem]       `gorm:"not null" json:"items"`
	TotalAmount     int64                               `gorm:"not null" json:"totalAmount"`
	Status          Status                              `gorm:"not null;size:20;index" json:"status"`
	PaymentStatus   PaymentStatus                       `gorm:"not null;size:20;index" json:"paymentStatus"`
	PaymentMethod   PaymentMethod                       `gorm:"not null;size:20" json:"paymentMethod"`
	ShippingAddress datatypes.JSONType[ShippingAddress] `gorm:"not null" json:"shippingAddress"`
	Phone           string                              `gorm:"size:32;index" json:"phone"`
	Note            string                              `json:"note"`
	TransactionID   *string                             `gorm:"size:64" json:"transactionId,omitempty"`
	VnpTxnRef       *string                             `gorm:"size:64;index" json:"vnpTxnRef,omitempty"`
	PaidAt          *time.Time                          `json:"paidAt,omitempty"`
	CancelReason    *string                             `json:"cancelReason,omitempty"`
	CancelledAt     *time.Time                          `json:"cancelledAt,omitempty"`
	CancelledBy     *snowflake.ID                       `json:"cancelledBy,omitempty"`
	CreatedAt       time.Time                           `gorm:"not null;index" json:"createdAt"`
	UpdatedAt       time.Time                           `gorm:"not null" json:"updatedAt"`

	StatusHistory []StatusEntry `gorm:"-" json:"statusHistory,omitempty"`
}

func (Order) TableName() string { return "orders" }

// StatusEntry rows are insert-only.
type StatusEntry struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID   snowflake.ID `gorm:"not null;index" json:"orderId"`
	Status    Status       `gorm:"not null;size:20" json:"status"`
	UpdatedBy string       `gorm:"not null;size:64" json:"updatedBy"`
	Note      string       `json:"note"`
	CreatedAt time.Time    `gorm:"not null" json:"createdAt"`
}

func (StatusEntry) TableName() string { return "order_status_history" }
