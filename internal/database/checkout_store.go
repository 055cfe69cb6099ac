package database

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/AyishaBeevi/lyvore-backend/internal/checkout"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

// CheckoutStore runs checkout transactions on a replica set.
type CheckoutStore struct {
	db *mongo.Database
}

var _ checkout.Store = (*CheckoutStore)(nil)

func NewCheckoutStore(db *mongo.Database) *CheckoutStore {
	return &CheckoutStore{db: db}
}

func (s *CheckoutStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return errors.Wrap(err, "start session")
	}
	defer session.EndSession(context.Background())

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx, mongoTx{db: s.db})
	}, opts)
	return err
}

type mongoTx struct {
	db *mongo.Database
}

func (tx mongoTx) FindProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := tx.db.Collection(Products).FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// stockDecrement matches the product only while quantity units remain, so
// two transactions cannot both take the last unit.
func stockDecrement(id primitive.ObjectID, quantity int) (filter, update bson.M) {
	filter = bson.M{
		"_id":   id,
		"stock": bson.M{"$gte": quantity},
	}
	update = bson.M{
		"$inc":         bson.M{"stock": -quantity, "sales": quantity},
		"$currentDate": bson.M{"updatedAt": true},
	}
	return filter, update
}

// paymentSettlement matches the payment only while it is still pending.
func paymentSettlement(id, orderID primitive.ObjectID, gatewayPaymentID string, at time.Time) (filter, update bson.M) {
	filter = bson.M{
		"_id":    id,
		"status": models.PaymentStatusPending,
	}
	update = bson.M{"$set": bson.M{
		"status":           models.PaymentStatusSuccess,
		"orderId":          orderID,
		"gatewayPaymentId": gatewayPaymentID,
		"paymentDate":      at,
	}}
	return filter, update
}

func (tx mongoTx) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (bool, error) {
	filter, update := stockDecrement(id, quantity)

	res, err := tx.db.Collection(Products).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (tx mongoTx) FindCart(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	err := tx.db.Collection(Carts).FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (tx mongoTx) ClearCart(ctx context.Context, userID primitive.ObjectID) error {
	_, err := tx.db.Collection(Carts).UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$set":         bson.M{"items": bson.A{}},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	return err
}

func (tx mongoTx) FindOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	err := tx.db.Collection(Orders).FindOne(ctx, bson.M{"paymentId": paymentID}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (tx mongoTx) InsertOrder(ctx context.Context, order *models.Order) error {
	res, err := tx.db.Collection(Orders).InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return checkout.ErrDuplicatePaymentID
	}
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (tx mongoTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	res, err := tx.db.Collection(Payments).InsertOne(ctx, payment)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		payment.ID = id
	}
	return nil
}

func (tx mongoTx) FindPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	var payment models.Payment
	err := tx.db.Collection(Payments).FindOne(ctx, bson.M{"gatewayOrderId": gatewayOrderID}).Decode(&payment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (tx mongoTx) SettlePayment(ctx context.Context, id, orderID primitive.ObjectID, gatewayPaymentID string, at time.Time) (bool, error) {
	filter, update := paymentSettlement(id, orderID, gatewayPaymentID, at)

	res, err := tx.db.Collection(Payments).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}
