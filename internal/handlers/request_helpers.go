package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/middleware"
)

const requestTimeout = 5 * time.Second

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		middleware.Logger(c).Error("Panic recovered",
			zap.String("route", route),
			zap.Any("panic", r),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	return database.Ping(ctx, db)
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	middleware.Logger(c).Debug("Returning error",
		zap.String("route", route),
		zap.Int("status", status),
		zap.String("message", message),
	)
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// respondInternal logs err and answers 500 without exposing it.
func respondInternal(c *gin.Context, route string, err error) {
	middleware.Logger(c).Error("Request failed",
		zap.String("route", route),
		zap.Error(err),
	)
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "email":
				details = append(details, fmt.Sprintf("%s must be a valid email", field))
			case "min", "gt", "gte":
				details = append(details, fmt.Sprintf("%s must be at least %s", field, fieldError.Param()))
			case "max", "lte":
				details = append(details, fmt.Sprintf("%s must be at most %s", field, fieldError.Param()))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message": "validation failed",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid body"})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// objectIDParam parses a path parameter, answering 400 when it is malformed.
func objectIDParam(c *gin.Context, route, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param(name)))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentUserID reads the caller set by the auth middleware.
func currentUserID(c *gin.Context, route string) (primitive.ObjectID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
		return primitive.NilObjectID, false
	}
	return id, true
}
