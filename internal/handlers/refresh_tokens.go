package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

type refreshTokenStore interface {
	// Insert sets token.ID.
	Insert(ctx context.Context, token *models.RefreshToken) error
	// Rotate revokes oldID and points it at newID. It reports false when
	// oldID was already revoked.
	Rotate(ctx context.Context, oldID, newID primitive.ObjectID) (bool, error)
	Revoke(ctx context.Context, id primitive.ObjectID) error
}

type mongoRefreshTokens struct {
	coll *mongo.Collection
}

func newRefreshTokens(db *mongo.Database) mongoRefreshTokens {
	return mongoRefreshTokens{coll: db.Collection(database.RefreshTokens)}
}

func (s mongoRefreshTokens) Insert(ctx context.Context, token *models.RefreshToken) error {
	res, err := s.coll.InsertOne(ctx, token)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		token.ID = id
	}
	return nil
}

func (s mongoRefreshTokens) Rotate(ctx context.Context, oldID, newID primitive.ObjectID) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oldID, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true, "replacedByToken": newID}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s mongoRefreshTokens) Revoke(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"revoked": true}})
	return err
}
