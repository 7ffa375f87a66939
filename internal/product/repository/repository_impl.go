package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/product/domain"
	"github.com/smallbiznis/qatech/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var sortableColumns = map[string]bool{
	"price":      true,
	"created_at": true,
	"sold":       true,
	"name":       true,
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).Raw(`SELECT * FROM products WHERE id = ?`, id).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).Raw(`SELECT * FROM products WHERE slug = ?`, slug).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []domain.Product
	err := db.WithContext(ctx).Raw(`SELECT * FROM products WHERE id IN ?`, ids).Scan(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) SlugExists(ctx context.Context, db *gorm.DB, slug string, excludeID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM products WHERE slug = ? AND id <> ?`,
		slug,
		excludeID,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Product, int64, error) {
	opts := []option.QueryOption{}
	if v := strings.TrimSpace(filter.Category); v != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "category", Operator: option.EQ, Value: v}))
	}
	if v := strings.TrimSpace(filter.SubCategory); v != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "sub_category", Operator: option.EQ, Value: v}))
	}
	if v := strings.TrimSpace(filter.Brand); v != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "brand", Operator: option.EQ, Value: v}))
	}
	if v := strings.TrimSpace(filter.Usage); v != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "purpose", Operator: option.EQ, Value: v}))
	}
	if v := strings.TrimSpace(filter.Search); v != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "name", Operator: option.LIKE, Value: v}))
	}
	if filter.MinPrice != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "price", Operator: option.GTE, Value: *filter.MinPrice}))
	}
	if filter.MaxPrice != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "price", Operator: option.LTE, Value: *filter.MaxPrice}))
	}
	if filter.Active != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "is_active", Operator: option.EQ, Value: *filter.Active}))
	}

	stmt := option.ApplyAll(db.WithContext(ctx).Model(&domain.Product{}), opts...)

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

	var products []domain.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM products WHERE id = ?`, id).Error
}

func (r *repo) DecrementStock(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock = stock - ?, sold = sold + ?, updated_at = ?
		 WHERE id = ? AND stock >= ?`,
		qty,
		qty,
		time.Now().UTC(),
		id,
		qty,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *repo) RestoreStock(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock = stock + ?,
		     sold = CASE WHEN sold >= ? THEN sold - ? ELSE 0 END,
		     updated_at = ?
		 WHERE id = ?`,
		qty,
		qty,
		qty,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) FindSpecification(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*domain.Specification, error) {
	var spec domain.Specification
	err := db.WithContext(ctx).Raw(`SELECT * FROM specifications WHERE product_id = ?`, productID).Scan(&spec).Error
	if err != nil {
		return nil, err
	}
	if spec.ID == 0 {
		return nil, nil
	}
	return &spec, nil
}

func (r *repo) UpsertSpecification(ctx context.Context, db *gorm.DB, spec *domain.Specification) error {
	if spec == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cpu_type", "ram_capacity", "ram_type", "ram_slots", "storage", "battery", "gpu_type",
			"screen_size", "screen_technology", "screen_resolution", "os", "ports", "other_specs",
			"type", "specs", "updated_at",
		}),
	}).Create(spec).Error
}

func (r *repo) DeleteSpecification(ctx context.Context, db *gorm.DB, productID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM specifications WHERE product_id = ?`, productID).Error
}

func (r *repo) ListImages(ctx context.Context, db *gorm.DB, productIDs ...snowflake.ID) ([]domain.Image, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var images []domain.Image
	err := db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("product_id asc, sort_order asc, id asc").
		Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}

func (r *repo) InsertImage(ctx context.Context, db *gorm.DB, image *domain.Image) error {
	if image == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(image).Error
}

func (r *repo) DeleteImages(ctx context.Context, db *gorm.DB, productID snowflake.ID, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM product_images WHERE product_id = ? AND id IN ?`,
		productID,
		ids,
	).Error
}

func (r *repo) DeleteAllImages(ctx context.Context, db *gorm.DB, productID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM product_images WHERE product_id = ?`, productID).Error
}

func (r *repo) SetPrimaryImage(ctx context.Context, db *gorm.DB, productID, imageID snowflake.ID) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE product_images SET is_primary = (id = ?) WHERE product_id = ?`,
		imageID,
		productID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set primary image: %w", domain.ErrInvalidImage)
	}
	return nil
}
