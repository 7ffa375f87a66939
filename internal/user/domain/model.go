package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a storefront account. Email is stored lower-cased.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"not null;size:255" json:"name"`
	Email        string       `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PasswordHash string       `gorm:"column:password_hash;not null" json:"-"`
	Role         string       `gorm:"not null;size:32;index" json:"role"`
	Phone        string       `gorm:"size:32" json:"phone"`
	Address      string       `json:"address"`
	Avatar       string       `json:"avatar"`
	IsActive     bool         `gorm:"not null" json:"isActive"`
	CreatedAt    time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Detail is a user with activity counters.
type Detail struct {
	User
	OrderCount  int64 `json:"orderCount"`
	ReviewCount int64 `json:"reviewCount"`
}
