package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/review/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const reviewColumns = `r.id, r.product_id, r.user_id, r.rating, r.comment, r.reply,
	r.replied_by, r.replied_at, r.created_at, r.updated_at`

type reviewRow struct {
	domain.Review
	UserName    *string
	UserAvatar  *string
	ReplierName *string
	ReplierRole *string
}

func (row reviewRow) toReview() domain.Review {
	review := row.Review
	if row.UserName != nil {
		person := domain.Person{ID: review.UserID, Name: *row.UserName}
		if row.UserAvatar != nil {
			person.Avatar = *row.UserAvatar
		}
		review.User = &person
	}
	if review.RepliedBy != nil && row.ReplierName != nil {
		person := domain.Person{ID: *review.RepliedBy, Name: *row.ReplierName}
		if row.ReplierRole != nil {
			person.Role = *row.ReplierRole
		}
		review.Replier = &person
	}
	return review
}

const joinedSelect = `SELECT ` + reviewColumns + `,
		u.name AS user_name, u.avatar AS user_avatar,
		rp.name AS replier_name, rp.role AS replier_role
	 FROM reviews r
	 LEFT JOIN users u ON u.id = r.user_id
	 LEFT JOIN users rp ON rp.id = r.replied_by`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, review *domain.Review) error {
	if review == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(review).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Review, error) {
	var row reviewRow
	err := db.WithContext(ctx).Raw(joinedSelect+` WHERE r.id = ?`, id).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	review := row.toReview()
	return &review, nil
}

func (r *repo) FindByUserProduct(ctx context.Context, db *gorm.DB, userID, productID snowflake.ID) (*domain.Review, error) {
	var review domain.Review
	err := db.WithContext(ctx).Raw(
		`SELECT `+reviewColumns+` FROM reviews r WHERE r.user_id = ? AND r.product_id = ? LIMIT 1`,
		userID,
		productID,
	).Scan(&review).Error
	if err != nil {
		return nil, err
	}
	if review.ID == 0 {
		return nil, nil
	}
	return &review, nil
}

func (r *repo) ListByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID, limit, offset int) ([]domain.Review, error) {
	var rows []reviewRow
	err := db.WithContext(ctx).Raw(
		joinedSelect+` WHERE r.product_id = ? ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`,
		productID,
		limit,
		offset,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	reviews := make([]domain.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, row.toReview())
	}
	return reviews, nil
}

func (r *repo) CountByRating(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]domain.RatingCount, error) {
	var counts []domain.RatingCount
	err := db.WithContext(ctx).Raw(
		`SELECT rating, COUNT(*) AS count FROM reviews WHERE product_id = ? GROUP BY rating`,
		productID,
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *repo) UpdateReply(ctx context.Context, db *gorm.DB, id snowflake.ID, reply string, repliedBy snowflake.ID, repliedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE reviews SET reply = ?, replied_by = ?, replied_at = ?, updated_at = ? WHERE id = ?`,
		reply,
		repliedBy,
		repliedAt,
		repliedAt,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM reviews WHERE id = ?`, id).Error
}
