package database

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func indexPlan() []collectionIndexes {
	return []collectionIndexes{
		{
			collection: Products,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "slug", Value: 1}},
					Options: options.Index().SetName("slug_unique").SetUnique(true),
				},
				{
					Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
					Options: options.Index().SetName("category_createdAt"),
				},
			},
		},
		{
			collection: Users,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "email", Value: 1}},
					Options: options.Index().SetName("email_unique").SetUnique(true),
				},
			},
		},
		{
			collection: Carts,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "userId", Value: 1}},
					Options: options.Index().SetName("userId_unique").SetUnique(true),
				},
			},
		},
		{
			collection: Orders,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
					Options: options.Index().SetName("userId_index"),
				},
				{
					// Only gateway orders carry a payment id; cash orders must
					// not collide on a missing value.
					Keys: bson.D{{Key: "paymentId", Value: 1}},
					Options: options.Index().
						SetName("paymentId_unique").
						SetUnique(true).
						SetPartialFilterExpression(bson.M{
							"paymentId": bson.M{"$type": "string"},
						}),
				},
			},
		},
		{
			collection: Payments,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "orderId", Value: 1}},
					Options: options.Index().SetName("orderId_index"),
				},
				{
					Keys:    bson.D{{Key: "gatewayPaymentId", Value: 1}},
					Options: options.Index().SetName("gatewayPaymentId_index").SetSparse(true),
				},
				{
					// One pending record per gateway order; cash payments have none.
					Keys: bson.D{{Key: "gatewayOrderId", Value: 1}},
					Options: options.Index().
						SetName("gatewayOrderId_unique").
						SetUnique(true).
						SetPartialFilterExpression(bson.M{
							"gatewayOrderId": bson.M{"$type": "string"},
						}),
				},
			},
		},
		{
			collection: RefreshTokens,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "tokenHash", Value: 1}},
					Options: options.Index().SetName("tokenHash_unique").SetUnique(true),
				},
				{
					Keys:    bson.D{{Key: "expiresAt", Value: 1}},
					Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
				},
			},
		},
	}
}

// EnsureIndexes creates every index the application relies on. The payment id
// index is what makes concurrent confirmations of one payment safe, so any
// failure is returned.
func EnsureIndexes(ctx context.Context, db *mongo.Database, lg *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	for _, plan := range indexPlan() {
		names, err := db.Collection(plan.collection).Indexes().CreateMany(ctx, plan.models)
		if err != nil {
			return errors.Wrapf(err, "create %s indexes", plan.collection)
		}
		lg.Info("Indexes ensured",
			zap.String("collection", plan.collection),
			zap.Strings("indexes", names),
		)
	}
	return nil
}
