package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrNoItems               = errors.New("at least one item is required")
	ErrMissingPaymentDetails = errors.New("missing payment details")
	ErrSignatureMismatch     = errors.New("payment signature mismatch")
	// ErrPaymentClaimed means the gateway payment id is already attached to
	// another user's order.
	ErrPaymentClaimed = errors.New("payment already applied to another order")
	// ErrUnknownGatewayOrder means no quote was registered for the gateway
	// order being confirmed.
	ErrUnknownGatewayOrder = errors.New("gateway order not found")
	// ErrGatewayOrderSettled means the gateway order was already paid by a
	// different payment.
	ErrGatewayOrderSettled = errors.New("gateway order already settled")
	// ErrPaymentMismatch means the confirmation does not describe what the
	// gateway was asked to charge for.
	ErrPaymentMismatch = errors.New("payment does not match the quoted order")
	// ErrDuplicatePaymentID is the store's signal that a concurrent request
	// committed an order with the same payment id first.
	ErrDuplicatePaymentID = errors.New("duplicate payment id")
)

type InvalidQuantityError struct {
	ProductID primitive.ObjectID
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID.Hex())
}

type ProductNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID.Hex())
}

type InsufficientStockError struct {
	ProductID primitive.ObjectID
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d units of %s available", e.Available, e.Name)
}
