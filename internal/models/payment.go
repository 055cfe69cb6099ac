package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

const (
	PaymentMethodCOD     = "cod"
	PaymentMethodGateway = "razorpay"
)

// Payment correlates a gateway transaction with the order it paid for. A
// gateway payment starts as a pending record holding the quoted items and
// amount; OrderID is set once a confirmation settles it.
type Payment struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID          primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	UserID           primitive.ObjectID `bson:"userId" json:"userId"`
	Amount           float64            `bson:"amount" json:"amount"`
	PaymentMethod    string             `bson:"paymentMethod" json:"paymentMethod"`
	GatewayOrderID   string             `bson:"gatewayOrderId,omitempty" json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string             `bson:"gatewayPaymentId,omitempty" json:"gatewayPaymentId,omitempty"`
	Status           PaymentStatus      `bson:"status" json:"status"`
	PaymentDate      time.Time          `bson:"paymentDate" json:"paymentDate"`
	Items            []OrderItem        `bson:"items,omitempty" json:"items,omitempty"`
}
