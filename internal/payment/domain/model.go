package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ProviderVNPay = "vnpay"

const (
	SourceIPN      = "ipn"
	SourceReturn   = "return"
	SourceFrontend = "frontend"
)

// EventRecord is one processed gateway callback. (provider, event_key) is unique.
type EventRecord struct {
	ID            snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider      string         `json:"provider" gorm:"size:32;not null;uniqueIndex:ux_payment_events_provider_key"`
	EventKey      string         `json:"eventKey" gorm:"size:128;not null;uniqueIndex:ux_payment_events_provider_key"`
	OrderID       snowflake.ID   `json:"orderId" gorm:"not null;index"`
	Source        string         `json:"source" gorm:"size:16;not null"`
	ResponseCode  string         `json:"responseCode" gorm:"size:8"`
	TransactionNo string         `json:"transactionNo" gorm:"size:64"`
	Amount        int64          `json:"amount"`
	Succeeded     bool           `json:"succeeded" gorm:"not null"`
	Payload       datatypes.JSON `json:"payload"`
	ReceivedAt    time.Time      `json:"receivedAt" gorm:"not null"`
	ProcessedAt   *time.Time     `json:"processedAt"`
}

func (EventRecord) TableName() string { return "payment_events" }
