package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// RevenueChartDays includes today.
const RevenueChartDays = 7

type RevenuePoint struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
}

type TopProduct struct {
	ID    snowflake.ID `json:"id"`
	Name  string       `json:"name"`
	Slug  string       `json:"slug"`
	Price int64        `json:"price"`
	Sold  int64        `json:"sold"`
	Stock int64        `json:"stock"`
	Image string       `json:"image,omitempty"`
}

type RecentOrder struct {
	ID            snowflake.ID `json:"id"`
	OrderCode     string       `json:"orderCode"`
	CustomerName  string       `json:"customerName"`
	TotalAmount   int64        `json:"totalAmount"`
	Status        string       `json:"status"`
	PaymentStatus string       `json:"paymentStatus"`
	CreatedAt     time.Time    `json:"createdAt"`
}

type Stats struct {
	TotalRevenue          int64            `json:"totalRevenue"`
	TotalOrders           int64            `json:"totalOrders"`
	PendingOrders         int64            `json:"pendingOrders"`
	TotalProductsSold     int64            `json:"totalProductsSold"`
	TotalCustomers        int64            `json:"totalCustomers"`
	NewCustomersThisMonth int64            `json:"newCustomersThisMonth"`
	RevenueChart          []RevenuePoint   `json:"revenueChart"`
	TopProducts           []TopProduct     `json:"topProducts"`
	RecentOrders          []RecentOrder    `json:"recentOrders"`
	OrdersByStatus        map[string]int64 `json:"ordersByStatus"`
}

type Service interface {
	Stats(ctx context.Context) (Stats, error)
}
