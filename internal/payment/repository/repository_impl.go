package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_key"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider, eventKey string) (*domain.EventRecord, error) {
	var item domain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, event_key, order_id, source, response_code,
			transaction_no, amount, succeeded, payload, received_at, processed_at
		 FROM payment_events
		 WHERE provider = ? AND event_key = ?
		 LIMIT 1`,
		provider,
		eventKey,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}

func (r *repo) UpdateEventOutcome(ctx context.Context, db *gorm.DB, event *domain.EventRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET source = ?, response_code = ?, transaction_no = ?, amount = ?, succeeded = ?, payload = ?
		 WHERE id = ?`,
		event.Source,
		event.ResponseCode,
		event.TransactionNo,
		event.Amount,
		event.Succeeded,
		event.Payload,
		event.ID,
	).Error
}
