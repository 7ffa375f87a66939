// Package seed bootstraps the first admin account.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	"github.com/smallbiznis/qatech/internal/auth/password"
	"github.com/smallbiznis/qatech/internal/config"
	userdomain "github.com/smallbiznis/qatech/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultAdminName = "Administrator"

// EnsureAdmin creates or promotes the bootstrap admin. Nothing happens when
// the email or password is unset.
func EnsureAdmin(ctx context.Context, db *gorm.DB, cfg config.BootstrapConfig, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || cfg.AdminPassword == "" {
		return nil
	}
	if len(cfg.AdminPassword) < userdomain.MinPasswordLength {
		return userdomain.ErrInvalidPassword
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []userdomain.User
		if err := tx.Where("email = ?", email).Limit(1).Find(&existing).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		if len(existing) > 0 {
			user := existing[0]
			if user.Role == actorcontext.RoleAdmin && user.IsActive {
				return nil
			}
			if log != nil {
				log.Info("promoting bootstrap admin", zap.String("user_id", user.ID.String()))
			}
			return tx.Model(&userdomain.User{}).
				Where("id = ?", user.ID).
				Updates(map[string]any{
					"role":       actorcontext.RoleAdmin,
					"is_active":  true,
					"updated_at": now,
				}).Error
		}

		hash, err := password.Hash(cfg.AdminPassword)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(cfg.AdminName)
		if name == "" {
			name = defaultAdminName
		}
		admin := userdomain.User{
			ID:           node.Generate(),
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			Role:         actorcontext.RoleAdmin,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		if log != nil {
			log.Info("bootstrap admin created", zap.String("user_id", admin.ID.String()))
		}
		return nil
	})
}
