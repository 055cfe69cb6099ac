package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderProgression is the forward path; cancelled sits outside it.
var orderProgression = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusPaid:      1,
	OrderStatusShipped:   2,
	OrderStatusDelivered: 3,
}

// ParseOrderStatus accepts any casing of the five known statuses.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := orderProgression[status]; ok || status == OrderStatusCancelled {
		return status, true
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo allows forward moves along pending → paid → shipped →
// delivered and cancellation while an order is still pending or paid.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return s == OrderStatusPending || s == OrderStatusPaid
	}
	from, okFrom := orderProgression[s]
	to, okTo := orderProgression[next]
	return okFrom && okTo && to > from
}

// OrderItem is a price snapshot taken at checkout time.
type OrderItem struct {
	ProductID       primitive.ObjectID `bson:"productId" json:"productId"`
	Name            string             `bson:"name" json:"name"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	Price           float64            `bson:"price" json:"price"`
	DiscountedPrice float64            `bson:"discountedPrice" json:"discountedPrice"`
}

// Address is a postal address snapshot.
type Address struct {
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	Zip     string `bson:"zip" json:"zip"`
	Country string `bson:"country" json:"country"`
}

// BillingDetails captures who is paying for an order.
type BillingDetails struct {
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email" json:"email"`
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	Pincode string `bson:"pincode" json:"pincode"`
	Country string `bson:"country" json:"country"`
}

// Order is written once by checkout; afterwards only Status changes.
type Order struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID `bson:"userId" json:"userId"`
	Items            []OrderItem        `bson:"items" json:"items"`
	TotalAmount      float64            `bson:"totalAmount" json:"totalAmount"`
	Status           OrderStatus        `bson:"status" json:"status"`
	BillingDetails   *BillingDetails    `bson:"billingDetails,omitempty" json:"billingDetails,omitempty"`
	ShippingAddress  *Address           `bson:"shippingAddress,omitempty" json:"shippingAddress,omitempty"`
	Phone            string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PaymentMethod    string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentID        string             `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	GatewayOrderID   string             `bson:"gatewayOrderId,omitempty" json:"gatewayOrderId,omitempty"`
	GatewaySignature string             `bson:"gatewaySignature,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}
