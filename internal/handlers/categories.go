package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AyishaBeevi/lyvore-backend/internal/database"
)

type categorySummary struct {
	Name     string `bson:"_id" json:"name"`
	Products int64  `bson:"products" json:"products"`
	InStock  int64  `bson:"inStock" json:"inStock"`
}

// GetCategories lists the categories products are filed under, with counts.
func GetCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/categories"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.Products).Aggregate(ctx, mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"category": bson.M{"$nin": bson.A{nil, ""}}}}},
			{{Key: "$group", Value: bson.M{
				"_id":      "$category",
				"products": bson.M{"$sum": 1},
				"inStock": bson.M{"$sum": bson.M{
					"$cond": bson.A{bson.M{"$gt": bson.A{"$stock", 0}}, 1, 0},
				}},
			}}},
			{{Key: "$sort", Value: bson.M{"_id": 1}}},
		})
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "aggregate categories"))
			return
		}
		defer cursor.Close(ctx)

		categories := make([]categorySummary, 0)
		if err := cursor.All(ctx, &categories); err != nil {
			respondInternal(c, route, errors.Wrap(err, "decode categories"))
			return
		}

		c.JSON(http.StatusOK, categories)
	}
}
