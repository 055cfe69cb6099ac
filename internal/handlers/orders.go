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

	"github.com/AyishaBeevi/lyvore-backend/internal/checkout"
	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/middleware"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

var (
	errIllegalTransition = errors.New("illegal status transition")
	errStatusChanged     = errors.New("order status changed concurrently")
)

// shippingRequest accepts both zip and pincode spellings.
type shippingRequest struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

func (r *shippingRequest) address() *models.Address {
	if r == nil {
		return nil
	}
	zip := strings.TrimSpace(r.Zip)
	if zip == "" {
		zip = strings.TrimSpace(r.Pincode)
	}
	return &models.Address{
		Address: strings.TrimSpace(r.Address),
		City:    strings.TrimSpace(r.City),
		State:   strings.TrimSpace(r.State),
		Zip:     zip,
		Country: strings.TrimSpace(r.Country),
	}
}

type checkoutRequest struct {
	ShippingAddress *shippingRequest       `json:"shippingAddress"`
	BillingDetails  *models.BillingDetails `json:"billingDetails"`
	Phone           string                 `json:"phone"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"omitempty,oneof=cod"`
}

func (r checkoutRequest) delivery() checkout.Delivery {
	phone := strings.TrimSpace(r.Phone)
	if phone == "" && r.ShippingAddress != nil {
		phone = strings.TrimSpace(r.ShippingAddress.Phone)
	}
	return checkout.Delivery{
		ShippingAddress: r.ShippingAddress.address(),
		BillingDetails:  r.BillingDetails,
		Phone:           phone,
	}
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Checkout turns the caller's cart into a pending order.
func Checkout(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders/checkout"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req checkoutRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}

		order, err := svc.CheckoutCart(c.Request.Context(), checkout.CartCheckout{
			UserID:        userID,
			PaymentMethod: req.PaymentMethod,
			Delivery:      req.delivery(),
		})
		if err != nil {
			writeCheckoutError(c, route, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "order placed",
			"order":   order,
		})
	}
}

func GetOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders"
		defer handlePanic(c, route)

		page, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if raw := c.Query("status"); raw != "" {
			status, ok := models.ParseOrderStatus(raw)
			if !ok {
				respondWithError(c, http.StatusBadRequest, route, "invalid status")
				return
			}
			filter["status"] = status
		}

		orders, total, err := listOrders(c.Request.Context(), db, filter, page)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		page.Total = total

		c.JSON(http.StatusOK, gin.H{"orders": orders, "pagination": page})
	}
}

// GetUserOrders lists one user's orders; only that user or an admin may ask.
func GetUserOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/user/:userId"
		defer handlePanic(c, route)

		callerID, ok := currentUserID(c, route)
		if !ok {
			return
		}
		userID, ok := objectIDParam(c, route, "userId")
		if !ok {
			return
		}
		if userID != callerID && !middleware.IsAdmin(c) {
			respondWithError(c, http.StatusForbidden, route, "forbidden")
			return
		}

		page, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		orders, total, err := listOrders(c.Request.Context(), db, bson.M{"userId": userID}, page)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		page.Total = total

		c.JSON(http.StatusOK, gin.H{"orders": orders, "pagination": page})
	}
}

func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/:id"
		defer handlePanic(c, route)

		callerID, ok := currentUserID(c, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var order models.Order
		err := db.Collection(database.Orders).FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find order"))
			return
		}

		// Other users' orders are reported as missing.
		if order.UserID != callerID && !middleware.IsAdmin(c) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// UpdateOrderStatus applies one state machine step. The write is conditional
// on the status that was read, so concurrent updates cannot both land.
func UpdateOrderStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/orders/:id/status"
		defer handlePanic(c, route)

		orderID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		next, ok := models.ParseOrderStatus(req.Status)
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid status")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		orders := db.Collection(database.Orders)

		var order models.Order
		err := orders.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find order"))
			return
		}

		changed, err := planStatusChange(order.Status, next)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"message": "cannot change status from " + string(order.Status) + " to " + string(next),
				"status":  order.Status,
			})
			return
		}
		if !changed {
			c.JSON(http.StatusOK, gin.H{"order": order})
			return
		}

		now := time.Now()
		var updated models.Order
		err = orders.FindOneAndUpdate(ctx,
			bson.M{"_id": orderID, "status": order.Status},
			bson.M{"$set": bson.M{"status": next, "updatedAt": now}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusConflict, route, errStatusChanged.Error())
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "update order status"))
			return
		}

		middleware.Logger(c).Info("Order status changed",
			zap.String("order_id", orderID.Hex()),
			zap.String("from", string(order.Status)),
			zap.String("to", string(next)),
		)
		c.JSON(http.StatusOK, gin.H{"order": updated})
	}
}

func DeleteOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/orders/:id"
		defer handlePanic(c, route)

		orderID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection(database.Orders).DeleteOne(ctx, bson.M{"_id": orderID})
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "delete order"))
			return
		}
		if result.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		middleware.Logger(c).Info("Order deleted", zap.String("order_id", orderID.Hex()))
		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}

// planStatusChange reports whether moving from current to next needs a write.
func planStatusChange(current, next models.OrderStatus) (bool, error) {
	if !current.CanTransitionTo(next) {
		return false, errIllegalTransition
	}
	return current != next, nil
}

func listOrders(ctx context.Context, db *mongo.Database, filter bson.M, page pagination) ([]models.Order, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	orders := db.Collection(database.Orders)
	total, err := orders.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	cursor, err := orders.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.skip()).
		SetLimit(page.Limit))
	if err != nil {
		return nil, 0, errors.Wrap(err, "find orders")
	}
	defer cursor.Close(ctx)

	list := make([]models.Order, 0)
	if err := cursor.All(ctx, &list); err != nil {
		return nil, 0, errors.Wrap(err, "decode orders")
	}
	return list, total, nil
}
