// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PasswordReset is a one-time code issued for password recovery.
type PasswordReset struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Email     string       `gorm:"column:email;size:255;not null;index"`
	OTP       string       `gorm:"column:otp;size:12;not null"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null"`
	CreatedAt time.Time    `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (PasswordReset) TableName() string { return "password_resets" }
