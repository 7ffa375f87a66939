package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Line struct {
	ProductID snowflake.ID `json:"productId"`
	Quantity  int          `json:"quantity"`
}

// Cart holds product references only; prices are always read from the catalog.
type Cart struct {
	SessionKey string `json:"-"`
	Items      []Line `json:"items"`
}

func (c *Cart) find(productID snowflake.ID) int {
	for i, line := range c.Items {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// Quantity returns the quantity held for productID, or zero.
func (c *Cart) Quantity(productID snowflake.ID) int {
	if i := c.find(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// Set replaces or appends the line for productID.
func (c *Cart) Set(productID snowflake.ID, qty int) {
	if i := c.find(productID); i >= 0 {
		c.Items[i].Quantity = qty
		return
	}
	c.Items = append(c.Items, Line{ProductID: productID, Quantity: qty})
}

// Remove reports whether a line was dropped.
func (c *Cart) Remove(productID snowflake.ID) bool {
	i := c.find(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

type ViewItem struct {
	ProductID snowflake.ID `json:"productId"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Price     int64        `json:"price"`
	OldPrice  *int64       `json:"oldPrice,omitempty"`
	Image     string       `json:"image,omitempty"`
	Stock     int          `json:"stock"`
	Quantity  int          `json:"quantity"`
	Subtotal  int64        `json:"subtotal"`
}

type View struct {
	Items     []ViewItem `json:"items"`
	Total     int64      `json:"total"`
	ItemCount int        `json:"itemCount"`
}

// Session is the relational fallback row for carts when Redis is absent.
type Session struct {
	Key       string                    `gorm:"column:session_key;primaryKey;size:64"`
	Items     datatypes.JSONSlice[Line] `gorm:"not null"`
	ExpiresAt time.Time                 `gorm:"not null;index"`
	UpdatedAt time.Time                 `gorm:"not null"`
}

func (Session) TableName() string { return "cart_sessions" }
