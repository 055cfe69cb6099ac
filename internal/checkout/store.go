package checkout

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

// Store opens a transactional scope. fn may be invoked more than once when the
// backing database retries a transient conflict, so it must not leak state
// between attempts. A non-nil error from fn rolls back every write made
// through tx.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of reads and writes checkout performs inside one transaction.
// Lookups return (nil, nil) when the document does not exist.
type Tx interface {
	FindProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	// DecrementStock removes quantity from stock and adds it to sales only if
	// at least quantity units remain. It reports whether the update applied.
	DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (bool, error)
	FindCart(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	ClearCart(ctx context.Context, userID primitive.ObjectID) error
	FindOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	// InsertOrder sets order.ID. It returns ErrDuplicatePaymentID when another
	// order already carries order.PaymentID.
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertPayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	// SettlePayment marks a pending payment successful and links it to the
	// order. It reports false when the payment is no longer pending.
	SettlePayment(ctx context.Context, id, orderID primitive.ObjectID, gatewayPaymentID string, at time.Time) (bool, error)
}

// Notifier receives the ids of products whose stock changed, after commit.
type Notifier interface {
	PublishStockUpdated(productIDs []string)
}

// SignatureVerifier authenticates a gateway confirmation.
type SignatureVerifier interface {
	Verify(gatewayOrderID, gatewayPaymentID, signature string) error
}
