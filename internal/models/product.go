package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AyishaBeevi/lyvore-backend/internal/pricing"
)

type Product struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Slug            string             `bson:"slug" json:"slug"`
	Price           float64            `bson:"price" json:"price"`
	Discount        float64            `bson:"discount" json:"discount"`
	DiscountedPrice float64            `bson:"-" json:"discountedPrice"`
	Stock           int                `bson:"stock" json:"stock"`
	InStock         bool               `bson:"-" json:"inStock"`
	Sales           int                `bson:"sales" json:"sales"`
	Views           int                `bson:"views" json:"views"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	Category        string             `bson:"category,omitempty" json:"category,omitempty"`
	Tags            StringList         `bson:"tags" json:"tags"`
	Images          StringList         `bson:"images" json:"images"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UnitPrice is the price a buyer pays for one unit right now.
func (p *Product) UnitPrice() float64 {
	return pricing.DiscountedPrice(p.Price, p.Discount)
}

// Derive fills the response-only fields that are never stored.
func (p *Product) Derive() {
	p.DiscountedPrice = p.UnitPrice()
	p.InStock = p.Stock > 0
	if p.Tags == nil {
		p.Tags = StringList{}
	}
	if p.Images == nil {
		p.Images = StringList{}
	}
}
