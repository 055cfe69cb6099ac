package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/AyishaBeevi/lyvore-backend/internal/checkout"
)

// writeCheckoutError maps checkout failures onto HTTP answers.
func writeCheckoutError(c *gin.Context, route string, err error) {
	var (
		stockErr    *checkout.InsufficientStockError
		notFoundErr *checkout.ProductNotFoundError
		qtyErr      *checkout.InvalidQuantityError
	)

	switch {
	case errors.As(err, &stockErr):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"message":   stockErr.Error(),
			"productId": stockErr.ProductID.Hex(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.As(err, &notFoundErr):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"message":   "product not found",
			"productId": notFoundErr.ProductID.Hex(),
		})
	case errors.As(err, &qtyErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message":   qtyErr.Error(),
			"productId": qtyErr.ProductID.Hex(),
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		respondWithError(c, http.StatusBadRequest, route, "cart is empty")
	case errors.Is(err, checkout.ErrNoItems):
		respondWithError(c, http.StatusBadRequest, route, "at least one item is required")
	case errors.Is(err, checkout.ErrMissingPaymentDetails):
		respondWithError(c, http.StatusBadRequest, route, "missing payment details")
	case errors.Is(err, checkout.ErrSignatureMismatch):
		respondWithError(c, http.StatusBadRequest, route, "invalid payment signature")
	case errors.Is(err, checkout.ErrPaymentClaimed):
		respondWithError(c, http.StatusConflict, route, "payment already applied to another order")
	case errors.Is(err, checkout.ErrUnknownGatewayOrder):
		respondWithError(c, http.StatusNotFound, route, "payment order not found")
	case errors.Is(err, checkout.ErrGatewayOrderSettled):
		respondWithError(c, http.StatusConflict, route, "payment order already settled")
	case errors.Is(err, checkout.ErrPaymentMismatch):
		respondWithError(c, http.StatusConflict, route, "payment does not match the quoted order")
	default:
		respondInternal(c, route, err)
	}
}
