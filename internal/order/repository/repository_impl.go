package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/order/domain"
	"github.com/smallbiznis/qatech/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var sortableColumns = map[string]bool{
	"created_at":   true,
	"total_amount": true,
	"status":       true,
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if order == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.find(ctx, db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	stmt := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(ctx, stmt, id)
}

func (r *repo) find(ctx context.Context, stmt *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var orders []domain.Order
	if err := stmt.Where("id = ?", id).Limit(1).Find(&orders).Error; err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Order, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Order{})
	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if v := strings.TrimSpace(filter.Status); v != "" {
		stmt = stmt.Where("status = ?", v)
	}
	if v := strings.TrimSpace(filter.PaymentStatus); v != "" {
		stmt = stmt.Where("payment_status = ?", v)
	}
	if v := strings.TrimSpace(filter.PaymentMethod); v != "" {
		stmt = stmt.Where("payment_method = ?", v)
	}
	if filter.DateFrom != nil {
		stmt = stmt.Where("created_at >= ?", filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		stmt = stmt.Where("created_at <= ?", filter.DateTo.UTC())
	}
	if v := strings.ToLower(strings.TrimSpace(filter.Search)); v != "" {
		like := "%" + v + "%"
		stmt = stmt.Where("LOWER(order_code) LIKE ? OR phone LIKE ?", like, like)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := option.ApplyAll(stmt,
		option.WithSortBy(option.QuerySortBy{
			SortBy:  filter.SortBy,
			OrderBy: filter.Order,
			Allow:   sortableColumns,
		}),
		option.ApplyOffset(filter.Limit, filter.Offset),
	)

	var orders []domain.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repo) ListDeliveredByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Order, error) {
	var orders []domain.Order
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.StatusDelivered).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) InsertStatus(ctx context.Context, db *gorm.DB, entry *domain.StatusEntry) error {
	if entry == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_status_history (id, order_id, status, updated_by, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrderID,
		entry.Status,
		entry.UpdatedBy,
		entry.Note,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListStatus(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.StatusEntry, error) {
	var entries []domain.StatusEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, status, updated_by, note, created_at
		 FROM order_status_history
		 WHERE order_id = ?
		 ORDER BY id ASC`,
		orderID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB) ([]domain.StatusCount, error) {
	var rows []domain.StatusCount
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(1) AS count FROM orders GROUP BY status`,
	).Scan(&rows).Error
	return rows, err
}

func (r *repo) SummaryByPaymentMethod(ctx context.Context, db *gorm.DB) ([]domain.MethodSummary, error) {
	var rows []domain.MethodSummary
	err := db.WithContext(ctx).Raw(
		`SELECT payment_method,
		        COUNT(1) AS count,
		        COALESCE(SUM(CASE WHEN payment_status = ? THEN total_amount ELSE 0 END), 0) AS revenue
		 FROM orders
		 GROUP BY payment_method`,
		domain.PaymentPaid,
	).Scan(&rows).Error
	return rows, err
}

func (r *repo) SumRevenue(ctx context.Context, db *gorm.DB, paymentStatus domain.PaymentStatus) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE payment_status = ?`,
		paymentStatus,
	).Scan(&total).Error
	return total, err
}
