package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem is one merged line of a cart.
type CartItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Cart belongs to exactly one user; there is at most one line per product.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Items     []CartItem         `bson:"items" json:"items"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Quantity returns the quantity currently held for productID.
func (c *Cart) Quantity(productID primitive.ObjectID) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

// Add merges quantity into the line for productID and returns the new total.
func (c *Cart) Add(productID primitive.ObjectID, quantity int) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			return c.Items[i].Quantity
		}
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity})
	return quantity
}

// Remove drops the line for productID and reports whether one existed.
func (c *Cart) Remove(productID primitive.ObjectID) bool {
	kept := make([]CartItem, 0, len(c.Items))
	removed := false
	for _, item := range c.Items {
		if item.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	return removed
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
