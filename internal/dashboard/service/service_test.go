package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	"github.com/smallbiznis/qatech/internal/testutil"
	userdomain "github.com/smallbiznis/qatech/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func mustCreate(t *testing.T, db *gorm.DB, value any) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func TestStats(t *testing.T) {
	conn := testutil.NewDB(t)
	// 2024-05-20 10:00 in Ho Chi Minh
	now := time.Date(2024, 5, 20, 3, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)

	mustCreate(t, conn, &userdomain.User{ID: 1, Name: "Admin", Email: "a@x.vn", PasswordHash: "x", Role: actorcontext.RoleAdmin, IsActive: true, CreatedAt: now, UpdatedAt: now})
	mustCreate(t, conn, &userdomain.User{ID: 2, Name: "Old", Email: "o@x.vn", PasswordHash: "x", Role: actorcontext.RoleCustomer, IsActive: true, CreatedAt: now.AddDate(0, -2, 0), UpdatedAt: now})
	mustCreate(t, conn, &userdomain.User{ID: 3, Name: "New", Email: "n@x.vn", PasswordHash: "x", Role: actorcontext.RoleCustomer, IsActive: true, CreatedAt: now.AddDate(0, 0, -3), UpdatedAt: now})

	mustCreate(t, conn, &productdomain.Product{ID: 10, Name: "Laptop", Slug: "laptop", Price: 100, Category: "laptop", Stock: 5, Sold: 7, IsActive: true, CreatedAt: now, UpdatedAt: now})
	mustCreate(t, conn, &productdomain.Product{ID: 11, Name: "Mouse", Slug: "mouse", Price: 10, Category: "accessory", Stock: 50, Sold: 20, IsActive: true, CreatedAt: now, UpdatedAt: now})
	mustCreate(t, conn, &productdomain.Image{ID: 100, ProductID: 11, ImageURL: "/uploads/mouse-2.png", Order: 1, CreatedAt: now})
	mustCreate(t, conn, &productdomain.Image{ID: 101, ProductID: 11, ImageURL: "/uploads/mouse-1.png", IsPrimary: true, Order: 0, CreatedAt: now})

	order := func(id snowflake.ID, status orderdomain.Status, total int64, at time.Time) *orderdomain.Order {
		return &orderdomain.Order{
			ID:              id,
			UserID:          2,
			OrderCode:       "ORD" + id.String(),
			Items:           datatypes.NewJSONSlice([]orderdomain.LineItem{{ProductID: 10, Name: "Laptop", Price: total, Quantity: 1}}),
			TotalAmount:     total,
			Status:          status,
			PaymentStatus:   orderdomain.PaymentUnpaid,
			PaymentMethod:   orderdomain.PaymentMethodCOD,
			ShippingAddress: datatypes.NewJSONType(orderdomain.ShippingAddress{FullName: "Old", Phone: "090", Address: "HN"}),
			CreatedAt:       at,
			UpdatedAt:       at,
		}
	}
	mustCreate(t, conn, order(20, orderdomain.StatusDelivered, 300, now.Add(-time.Hour)))
	mustCreate(t, conn, order(21, orderdomain.StatusDelivered, 200, now.AddDate(0, 0, -2)))
	mustCreate(t, conn, order(22, orderdomain.StatusDelivered, 999, now.AddDate(0, 0, -10)))
	mustCreate(t, conn, order(23, orderdomain.StatusPending, 50, now.Add(-30*time.Minute)))
	mustCreate(t, conn, order(24, orderdomain.StatusPaid, 60, now.Add(-20*time.Minute)))
	mustCreate(t, conn, order(25, orderdomain.StatusCancelled, 70, now.Add(-10*time.Minute)))

	storefront := config.DefaultStorefrontConfig()
	storefront.TopProducts = 1
	storefront.RecentOrders = 2
	svc := NewService(Params{
		DB:         conn,
		Log:        zap.NewNop(),
		Clock:      clk,
		Storefront: config.NewStaticStorefrontHolder(storefront),
	})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1499), stats.TotalRevenue)
	assert.Equal(t, int64(6), stats.TotalOrders)
	assert.Equal(t, int64(2), stats.PendingOrders)
	assert.Equal(t, int64(27), stats.TotalProductsSold)
	assert.Equal(t, int64(2), stats.TotalCustomers)
	assert.Equal(t, int64(1), stats.NewCustomersThisMonth)
	assert.Equal(t, int64(3), stats.OrdersByStatus["delivered"])
	assert.Equal(t, int64(0), stats.OrdersByStatus["shipping"])

	require.Len(t, stats.RevenueChart, 7)
	assert.Equal(t, "2024-05-14", stats.RevenueChart[0].Date)
	assert.Equal(t, "2024-05-20", stats.RevenueChart[6].Date)
	assert.Equal(t, int64(300), stats.RevenueChart[6].Revenue)
	assert.Equal(t, int64(200), stats.RevenueChart[4].Revenue)
	var chartTotal int64
	for _, p := range stats.RevenueChart {
		chartTotal += p.Revenue
	}
	assert.Equal(t, int64(500), chartTotal)

	require.Len(t, stats.TopProducts, 1)
	assert.Equal(t, "mouse", stats.TopProducts[0].Slug)
	assert.Equal(t, "/uploads/mouse-1.png", stats.TopProducts[0].Image)

	require.Len(t, stats.RecentOrders, 2)
	assert.Equal(t, snowflake.ID(25), stats.RecentOrders[0].ID)
	assert.Equal(t, "Old", stats.RecentOrders[0].CustomerName)
}
