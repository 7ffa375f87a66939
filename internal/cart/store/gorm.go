package store

import (
	"context"
	"time"

	"github.com/smallbiznis/qatech/internal/cart/domain"
	"github.com/smallbiznis/qatech/internal/clock"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewGormStore(db *gorm.DB, clk clock.Clock) *GormStore {
	return &GormStore{db: db, clock: clk}
}

func (s *GormStore) Load(ctx context.Context, key string) (domain.Cart, error) {
	cart := domain.Cart{SessionKey: key}
	var sessions []domain.Session
	err := s.db.WithContext(ctx).
		Where("session_key = ? AND expires_at > ?", key, s.clock.Now()).
		Limit(1).
		Find(&sessions).Error
	if err != nil {
		return cart, err
	}
	if len(sessions) == 0 {
		return cart, nil
	}
	cart.Items = []domain.Line(sessions[0].Items)
	return cart, nil
}

func (s *GormStore) Save(ctx context.Context, cart domain.Cart, ttl time.Duration) error {
	now := s.clock.Now()
	items := cart.Items
	if items == nil {
		items = []domain.Line{}
	}
	session := domain.Session{
		Key:       cart.SessionKey,
		Items:     datatypes.JSONSlice[domain.Line](items),
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "expires_at", "updated_at"}),
		}).
		Create(&session).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("session_key = ?", key).Delete(&domain.Session{}).Error
}

// PurgeExpired drops sessions whose TTL has elapsed.
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.clock.Now()).Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}
