package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Review struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	ProductID snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_reviews_user_product,priority:2" json:"productId"`
	UserID    snowflake.ID  `gorm:"not null;uniqueIndex:ux_reviews_user_product,priority:1" json:"userId"`
	Rating    int           `gorm:"not null" json:"rating"`
	Comment   string        `gorm:"not null" json:"comment"`
	Reply     *string       `json:"reply,omitempty"`
	RepliedBy *snowflake.ID `json:"repliedBy,omitempty"`
	RepliedAt *time.Time    `json:"repliedAt,omitempty"`
	CreatedAt time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time     `gorm:"not null" json:"updatedAt"`

	User    *Person `gorm:"-" json:"user,omitempty"`
	Replier *Person `gorm:"-" json:"replier,omitempty"`
}

func (Review) TableName() string { return "reviews" }

// Person is the public projection of a reviewer or replier.
type Person struct {
	ID     snowflake.ID `json:"id"`
	Name   string       `json:"name"`
	Avatar string       `json:"avatar,omitempty"`
	Role   string       `json:"role,omitempty"`
}
