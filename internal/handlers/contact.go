package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

type contactRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required,max=5000"`
}

func CreateContact(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/contact"
		defer handlePanic(c, route)

		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		msg := models.ContactMessage{
			Name:      strings.TrimSpace(req.Name),
			Email:     strings.ToLower(strings.TrimSpace(req.Email)),
			Message:   strings.TrimSpace(req.Message),
			CreatedAt: time.Now(),
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.Contacts).InsertOne(ctx, msg)
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "insert contact"))
			return
		}
		msg.ID, _ = res.InsertedID.(primitive.ObjectID)

		c.JSON(http.StatusCreated, gin.H{"contact": msg})
	}
}

func GetContacts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/contact"
		defer handlePanic(c, route)

		page, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		contacts := db.Collection(database.Contacts)
		page.Total, err = contacts.CountDocuments(ctx, bson.M{})
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "count contacts"))
			return
		}

		cursor, err := contacts.Find(ctx, bson.M{}, options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip(page.skip()).
			SetLimit(page.Limit))
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find contacts"))
			return
		}
		defer cursor.Close(ctx)

		list := make([]models.ContactMessage, 0)
		if err := cursor.All(ctx, &list); err != nil {
			respondInternal(c, route, errors.Wrap(err, "decode contacts"))
			return
		}

		c.JSON(http.StatusOK, gin.H{"contacts": list, "pagination": page})
	}
}
