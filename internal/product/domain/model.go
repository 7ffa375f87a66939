package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Product prices are whole VND.
type Product struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"not null;size:255" json:"name"`
	Slug        string       `gorm:"not null;size:255;uniqueIndex" json:"slug"`
	Description string       `json:"description"`
	Price       int64        `gorm:"not null" json:"price"`
	OldPrice    *int64       `json:"oldPrice,omitempty"`
	Category    string       `gorm:"not null;size:100;index" json:"category"`
	SubCategory string       `gorm:"size:100" json:"subCategory"`
	Brand       string       `gorm:"size:100;index" json:"brand"`
	Usage       string       `gorm:"column:purpose;size:100" json:"usage"`
	Stock       int          `gorm:"not null" json:"stock"`
	Sold        int          `gorm:"not null" json:"sold"`
	IsActive    bool         `gorm:"not null;index" json:"isActive"`
	CreatedAt   time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updatedAt"`

	Specification *Specification `gorm:"-" json:"specification,omitempty"`
	Images        []Image        `gorm:"-" json:"images"`
}

func (Product) TableName() string { return "products" }

// PrimaryImageURL returns the primary image, or the first one.
func (p Product) PrimaryImageURL() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.ImageURL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].ImageURL
	}
	return ""
}

type Specification struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	ProductID        snowflake.ID      `gorm:"not null;uniqueIndex" json:"productId"`
	CPUType          string            `gorm:"column:cpu_type" json:"cpuType"`
	RAMCapacity      string            `gorm:"column:ram_capacity" json:"ramCapacity"`
	RAMType          string            `gorm:"column:ram_type" json:"ramType"`
	RAMSlots         string            `gorm:"column:ram_slots" json:"ramSlots"`
	Storage          string            `json:"storage"`
	Battery          string            `json:"battery"`
	GPUType          string            `gorm:"column:gpu_type" json:"gpuType"`
	ScreenSize       string            `json:"screenSize"`
	ScreenTechnology string            `json:"screenTechnology"`
	ScreenResolution string            `json:"screenResolution"`
	OS               string            `gorm:"column:os" json:"os"`
	Ports            string            `json:"ports"`
	OtherSpecs       string            `json:"otherSpecs"`
	Type             string            `json:"type"`
	Specs            datatypes.JSONMap `json:"specs"`
	CreatedAt        time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time         `gorm:"not null" json:"updatedAt"`
}

func (Specification) TableName() string { return "specifications" }

type Image struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ProductID snowflake.ID `gorm:"not null;index" json:"productId"`
	ImageURL  string       `gorm:"not null" json:"imageUrl"`
	IsPrimary bool         `gorm:"not null" json:"isPrimary"`
	Order     int          `gorm:"column:sort_order;not null" json:"order"`
	Alt       string       `json:"alt"`
	CreatedAt time.Time    `gorm:"not null" json:"createdAt"`
}

func (Image) TableName() string { return "product_images" }
