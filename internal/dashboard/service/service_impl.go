package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	dashboard "github.com/smallbiznis/qatech/internal/dashboard/domain"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Storefront *config.StorefrontHolder `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	storefront *config.StorefrontHolder
	loc        *time.Location
}

func NewService(p Params) dashboard.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("dashboard.service"),
		clock:      p.Clock,
		storefront: p.Storefront,
		loc:        storeLocation(),
	}
}

func (s *Service) Stats(ctx context.Context) (dashboard.Stats, error) {
	settings := s.storefront.Get()
	now := s.clock.Now().In(s.loc)
	db := s.db.WithContext(ctx)

	var stats dashboard.Stats
	var err error

	if err = db.Raw(
		`SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = ?`,
		orderdomain.StatusDelivered,
	).Scan(&stats.TotalRevenue).Error; err != nil {
		return dashboard.Stats{}, err
	}

	if stats.OrdersByStatus, err = s.ordersByStatus(ctx); err != nil {
		return dashboard.Stats{}, err
	}
	for _, count := range stats.OrdersByStatus {
		stats.TotalOrders += count
	}
	stats.PendingOrders = stats.OrdersByStatus[string(orderdomain.StatusPending)] +
		stats.OrdersByStatus[string(orderdomain.StatusPaid)]

	if err = db.Raw(`SELECT COALESCE(SUM(sold), 0) FROM products`).Scan(&stats.TotalProductsSold).Error; err != nil {
		return dashboard.Stats{}, err
	}

	if err = db.Raw(
		`SELECT COUNT(*) FROM users WHERE role = ?`,
		actorcontext.RoleCustomer,
	).Scan(&stats.TotalCustomers).Error; err != nil {
		return dashboard.Stats{}, err
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	if err = db.Raw(
		`SELECT COUNT(*) FROM users WHERE role = ? AND created_at >= ?`,
		actorcontext.RoleCustomer,
		monthStart.UTC(),
	).Scan(&stats.NewCustomersThisMonth).Error; err != nil {
		return dashboard.Stats{}, err
	}

	if stats.RevenueChart, err = s.revenueChart(ctx, now); err != nil {
		return dashboard.Stats{}, err
	}
	if stats.TopProducts, err = s.topProducts(ctx, settings.TopProducts); err != nil {
		return dashboard.Stats{}, err
	}
	if stats.RecentOrders, err = s.recentOrders(ctx, settings.RecentOrders); err != nil {
		return dashboard.Stats{}, err
	}
	return stats, nil
}

func (s *Service) ordersByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS count FROM orders GROUP BY status`,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	byStatus := make(map[string]int64, len(orderdomain.AllStatuses))
	for _, status := range orderdomain.AllStatuses {
		byStatus[string(status)] = 0
	}
	for _, row := range rows {
		byStatus[row.Status] = row.Count
	}
	return byStatus, nil
}

// revenueChart buckets delivered orders by store-local calendar day. Days
// without revenue are present with zero.
func (s *Service) revenueChart(ctx context.Context, now time.Time) ([]dashboard.RevenuePoint, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	start := today.AddDate(0, 0, -(dashboard.RevenueChartDays - 1))

	var rows []struct {
		CreatedAt   time.Time
		TotalAmount int64
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT created_at, total_amount FROM orders WHERE status = ? AND created_at >= ?`,
		orderdomain.StatusDelivered,
		start.UTC(),
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	byDay := make(map[string]int64, dashboard.RevenueChartDays)
	for _, row := range rows {
		byDay[row.CreatedAt.In(s.loc).Format(dateLayout)] += row.TotalAmount
	}

	points := make([]dashboard.RevenuePoint, 0, dashboard.RevenueChartDays)
	for i := 0; i < dashboard.RevenueChartDays; i++ {
		day := start.AddDate(0, 0, i).Format(dateLayout)
		points = append(points, dashboard.RevenuePoint{Date: day, Revenue: byDay[day]})
	}
	return points, nil
}

func (s *Service) topProducts(ctx context.Context, limit int) ([]dashboard.TopProduct, error) {
	if limit <= 0 {
		return []dashboard.TopProduct{}, nil
	}
	var products []dashboard.TopProduct
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, name, slug, price, sold, stock
		 FROM products
		 ORDER BY sold DESC, id ASC
		 LIMIT ?`,
		limit,
	).Scan(&products).Error; err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return []dashboard.TopProduct{}, nil
	}

	ids := make([]snowflake.ID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	var images []struct {
		ProductID snowflake.ID
		ImageURL  string
		IsPrimary bool
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT product_id, image_url, is_primary
		 FROM product_images
		 WHERE product_id IN ?
		 ORDER BY is_primary DESC, sort_order ASC, id ASC`,
		ids,
	).Scan(&images).Error; err != nil {
		return nil, err
	}

	first := make(map[snowflake.ID]string, len(images))
	for _, img := range images {
		if _, ok := first[img.ProductID]; !ok {
			first[img.ProductID] = img.ImageURL
		}
	}
	for i := range products {
		products[i].Image = first[products[i].ID]
	}
	return products, nil
}

func (s *Service) recentOrders(ctx context.Context, limit int) ([]dashboard.RecentOrder, error) {
	if limit <= 0 {
		return []dashboard.RecentOrder{}, nil
	}
	var orders []dashboard.RecentOrder
	if err := s.db.WithContext(ctx).Raw(
		`SELECT o.id, o.order_code, COALESCE(u.name, '') AS customer_name,
		        o.total_amount, o.status, o.payment_status, o.created_at
		 FROM orders o
		 LEFT JOIN users u ON u.id = o.user_id
		 ORDER BY o.created_at DESC, o.id DESC
		 LIMIT ?`,
		limit,
	).Scan(&orders).Error; err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []dashboard.RecentOrder{}
	}
	return orders, nil
}

func storeLocation() *time.Location {
	if loc, err := time.LoadLocation("Asia/Ho_Chi_Minh"); err == nil {
		return loc
	}
	return time.FixedZone("ICT", 7*60*60)
}
