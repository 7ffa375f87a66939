package domain

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
)

type CreatePaymentRequest struct {
	OrderID  snowflake.ID
	UserID   snowflake.ID
	BankCode string
	ClientIP string
}

type CreatePaymentResult struct {
	PaymentURL string       `json:"paymentUrl"`
	OrderID    snowflake.ID `json:"orderId"`
	OrderCode  string       `json:"orderCode"`
	TxnRef     string       `json:"vnpTxnRef"`
}

// IPNAck is the bare acknowledgement body the gateway expects.
type IPNAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

type ReturnResult struct {
	Success       bool         `json:"success"`
	OrderID       snowflake.ID `json:"orderId"`
	TransactionNo string       `json:"transactionNo,omitempty"`
	Amount        int64        `json:"amount,omitempty"`
	ErrorCode     string       `json:"errorCode,omitempty"`
	Message       string       `json:"message"`
}

type ConfirmRequest struct {
	OrderID       snowflake.ID
	TxnRef        string
	ResponseCode  string
	TransactionNo string
}

type ConfirmResult struct {
	Success       bool                      `json:"success"`
	OrderID       snowflake.ID              `json:"orderId"`
	Status        orderdomain.Status        `json:"status"`
	PaymentStatus orderdomain.PaymentStatus `json:"paymentStatus"`
	TransactionID *string                   `json:"transactionId,omitempty"`
	ErrorCode     string                    `json:"errorCode,omitempty"`
	Message       string                    `json:"message"`
}

type StatusView struct {
	OrderID       snowflake.ID              `json:"orderId"`
	OrderCode     string                    `json:"orderCode"`
	Status        orderdomain.Status        `json:"status"`
	PaymentStatus orderdomain.PaymentStatus `json:"paymentStatus"`
	PaymentMethod orderdomain.PaymentMethod `json:"paymentMethod"`
	TransactionID *string                   `json:"transactionId,omitempty"`
	PaidAt        *time.Time                `json:"paidAt,omitempty"`
	TotalAmount   int64                     `json:"totalAmount"`
}

type Service interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (CreatePaymentResult, error)
	// HandleIPN never returns an error; every failure is folded into the ack code.
	HandleIPN(ctx context.Context, params url.Values) IPNAck
	HandleReturn(ctx context.Context, params url.Values) (ReturnResult, error)
	ConfirmUnsigned(ctx context.Context, req ConfirmRequest) (ConfirmResult, error)
	Status(ctx context.Context, orderID, userID snowflake.ID) (StatusView, error)
}

// Locker serialises callbacks for one order across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

const (
	AckSuccess          = "00"
	AckOrderNotFound    = "01"
	AckAlreadyConfirmed = "02"
	AckInvalidAmount    = "04"
	AckInvalidSignature = "97"
	AckUnknownError     = "99"
)

var ackMessages = map[string]string{
	AckSuccess:          "Confirm Success",
	AckOrderNotFound:    "Order not found",
	AckAlreadyConfirmed: "Order already confirmed",
	AckInvalidAmount:    "Invalid amount",
	AckInvalidSignature: "Invalid signature",
	AckUnknownError:     "Unknown error",
}

func NewAck(code string) IPNAck {
	msg, ok := ackMessages[code]
	if !ok {
		code, msg = AckUnknownError, ackMessages[AckUnknownError]
	}
	return IPNAck{RspCode: code, Message: msg}
}

var (
	ErrInvalidSignature        = errors.New("invalid_signature")
	ErrInvalidOrderID          = errors.New("invalid_order_id")
	ErrOrderNotFound           = errors.New("order_not_found")
	ErrOrderNotPayable         = errors.New("order_not_payable")
	ErrInvalidAmount           = errors.New("invalid_amount")
	ErrAlreadyConfirmed        = errors.New("order_already_confirmed")
	ErrGatewayUnavailable      = errors.New("payment_gateway_unavailable")
	ErrUnsignedConfirmDisabled = errors.New("unsigned_confirm_disabled")
	ErrLockBusy                = errors.New("payment_lock_busy")
)
