package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/middleware"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

type updateMeRequest struct {
	Name            *string          `json:"name" binding:"omitempty,min=1"`
	Phone           *string          `json:"phone"`
	ShippingAddress *shippingRequest `json:"shippingAddress"`
	BillingAddress  *shippingRequest `json:"billingAddress"`
}

func (r updateMeRequest) set() bson.M {
	set := bson.M{}
	if r.Name != nil {
		set["name"] = strings.TrimSpace(*r.Name)
	}
	if r.Phone != nil {
		set["phone"] = strings.TrimSpace(*r.Phone)
	}
	if r.ShippingAddress != nil {
		set["shippingAddress"] = r.ShippingAddress.address()
	}
	if r.BillingAddress != nil {
		set["billingAddress"] = r.BillingAddress.address()
	}
	return set
}

func GetUsers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/users"
		defer handlePanic(c, route)

		page, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if role := strings.TrimSpace(c.Query("role")); role != "" {
			filter["role"] = role
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		users := db.Collection(database.Users)
		page.Total, err = users.CountDocuments(ctx, filter)
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "count users"))
			return
		}

		cursor, err := users.Find(ctx, filter, options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip(page.skip()).
			SetLimit(page.Limit))
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find users"))
			return
		}
		defer cursor.Close(ctx)

		list := make([]models.User, 0)
		if err := cursor.All(ctx, &list); err != nil {
			respondInternal(c, route, errors.Wrap(err, "decode users"))
			return
		}

		c.JSON(http.StatusOK, gin.H{"users": list, "pagination": page})
	}
}

func GetUser(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/users/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		err := db.Collection(database.Users).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find user"))
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// DeleteUser removes the account with its cart and refresh tokens. Orders are
// kept for bookkeeping.
func DeleteUser(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/users/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.Users).DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "delete user"))
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}

		if _, err := db.Collection(database.Carts).DeleteOne(ctx, bson.M{"userId": id}); err != nil {
			middleware.Logger(c).Warn("Cart cleanup failed", zap.String("user_id", id.Hex()), zap.Error(err))
		}
		if _, err := db.Collection(database.RefreshTokens).UpdateMany(ctx,
			bson.M{"userId": id, "revoked": false},
			bson.M{"$set": bson.M{"revoked": true}},
		); err != nil {
			middleware.Logger(c).Warn("Token revocation failed", zap.String("user_id", id.Hex()), zap.Error(err))
		}

		middleware.Logger(c).Info("User deleted", zap.String("user_id", id.Hex()))
		c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
	}
}

// UpdateMe changes the caller's name, phone and saved addresses.
func UpdateMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/users/me"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req updateMeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := req.set()
		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		set["updatedAt"] = time.Now()

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		err := db.Collection(database.Users).FindOneAndUpdate(ctx,
			bson.M{"_id": userID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "update user"))
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
