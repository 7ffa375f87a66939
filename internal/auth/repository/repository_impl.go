package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/qatech/internal/auth/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) CreateReset(ctx context.Context, reset *domain.PasswordReset) error {
	return r.db.WithContext(ctx).Create(reset).Error
}

func (r *repo) LatestReset(ctx context.Context, email, otp string) (*domain.PasswordReset, error) {
	var resets []domain.PasswordReset
	err := r.db.WithContext(ctx).
		Where("email = ? AND otp = ?", strings.ToLower(email), otp).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&resets).Error
	if err != nil {
		return nil, err
	}
	if len(resets) == 0 {
		return nil, domain.ErrInvalidOTP
	}
	return &resets[0], nil
}

func (r *repo) DeleteResets(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		Delete(&domain.PasswordReset{}).Error
}
