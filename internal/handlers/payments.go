package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/AyishaBeevi/lyvore-backend/internal/checkout"
	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/middleware"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
	"github.com/AyishaBeevi/lyvore-backend/internal/payment"
	"github.com/AyishaBeevi/lyvore-backend/internal/pricing"
)

// GatewayOrders creates orders on the payment gateway.
type GatewayOrders interface {
	KeyID() string
	CreateOrder(ctx context.Context, amount int64, currency string) (*payment.GatewayOrder, error)
}

// lineItemRequest may carry client-side price fields; they are ignored.
type lineItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type createPaymentOrderRequest struct {
	Items []lineItemRequest `json:"items" binding:"omitempty,dive"`
}

type verifyPaymentRequest struct {
	GatewayOrderID   string                 `json:"razorpay_order_id" binding:"required"`
	GatewayPaymentID string                 `json:"razorpay_payment_id" binding:"required"`
	Signature        string                 `json:"razorpay_signature" binding:"required"`
	Items            []lineItemRequest      `json:"items" binding:"omitempty,dive"`
	ShippingAddress  *shippingRequest       `json:"shippingAddress"`
	BillingDetails   *models.BillingDetails `json:"billingDetails"`
	Phone            string                 `json:"phone"`
}

func parseLineItems(items []lineItemRequest) ([]checkout.LineItem, error) {
	out := make([]checkout.LineItem, len(items))
	for i, item := range items {
		id, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return nil, errors.Errorf("invalid productId %q", item.ProductID)
		}
		out[i] = checkout.LineItem{ProductID: id, Quantity: item.Quantity}
	}
	return out, nil
}

// CreatePaymentOrder prices the cart, or the listed items, registers that
// amount with the gateway and records the quote against the gateway order.
// Any amount sent by the client is ignored.
func CreatePaymentOrder(svc *checkout.Service, gateway GatewayOrders, currency string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payments/create-order"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req createPaymentOrderRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}
		items, err := parseLineItems(req.Items)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		quote, err := svc.Quote(c.Request.Context(), userID, items)
		if err != nil {
			writeCheckoutError(c, route, err)
			return
		}

		order, err := gateway.CreateOrder(c.Request.Context(), pricing.MinorUnits(quote.TotalAmount), currency)
		var gatewayErr *payment.GatewayError
		switch {
		case errors.Is(err, payment.ErrGatewayNotConfigured):
			respondWithError(c, http.StatusServiceUnavailable, route, "payments are not available")
			return
		case errors.As(err, &gatewayErr):
			middleware.Logger(c).Warn("Gateway order failed", zap.Error(err))
			respondWithError(c, http.StatusBadGateway, route, "payment gateway error")
			return
		case err != nil:
			respondInternal(c, route, err)
			return
		}

		if _, err := svc.RegisterGatewayOrder(c.Request.Context(), userID, order.ID, quote); err != nil {
			respondInternal(c, route, errors.Wrap(err, "register gateway order"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"key":         gateway.KeyID(),
			"order":       order,
			"totalAmount": quote.TotalAmount,
			"items":       quote.Items,
		})
	}
}

// VerifyPayment places a paid order from a signed gateway confirmation for the
// items quoted at create-order. Items in the body are optional and must match
// that quote. A repeated confirmation returns the order it already produced.
func VerifyPayment(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payments/verify"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req verifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		items, err := parseLineItems(req.Items)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		delivery := checkoutRequest{
			ShippingAddress: req.ShippingAddress,
			BillingDetails:  req.BillingDetails,
			Phone:           req.Phone,
		}.delivery()

		res, err := svc.ConfirmPayment(c.Request.Context(), checkout.PaymentConfirmation{
			UserID:           userID,
			GatewayOrderID:   req.GatewayOrderID,
			GatewayPaymentID: req.GatewayPaymentID,
			Signature:        req.Signature,
			Items:            items,
			Delivery:         delivery,
		})
		if err != nil {
			writeCheckoutError(c, route, err)
			return
		}

		status := http.StatusCreated
		message := "payment verified, order placed"
		if res.Replayed {
			status = http.StatusOK
			message = "payment already processed"
		}
		c.JSON(status, gin.H{
			"message":  message,
			"order":    res.Order,
			"replayed": res.Replayed,
		})
	}
}

func GetPayments(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/payments"
		defer handlePanic(c, route)

		page, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if status := c.Query("status"); status != "" {
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		payments := db.Collection(database.Payments)
		page.Total, err = payments.CountDocuments(ctx, filter)
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "count payments"))
			return
		}

		cursor, err := payments.Find(ctx, filter, options.Find().
			SetSort(bson.D{{Key: "paymentDate", Value: -1}}).
			SetSkip(page.skip()).
			SetLimit(page.Limit))
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find payments"))
			return
		}
		defer cursor.Close(ctx)

		list := make([]models.Payment, 0)
		if err := cursor.All(ctx, &list); err != nil {
			respondInternal(c, route, errors.Wrap(err, "decode payments"))
			return
		}

		c.JSON(http.StatusOK, gin.H{"payments": list, "pagination": page})
	}
}
