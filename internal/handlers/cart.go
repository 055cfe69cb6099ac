package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
	"github.com/AyishaBeevi/lyvore-backend/internal/pricing"
)

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  *int   `json:"quantity" binding:"omitempty,gt=0"`
}

type removeFromCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

// cartLine is a cart item joined with its current product. Product is nil
// when the product has since been deleted.
type cartLine struct {
	ProductID primitive.ObjectID `json:"productId"`
	Quantity  int                `json:"quantity"`
	Product   *models.Product    `json:"product"`
}

type cartView struct {
	Items       []cartLine `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
}

func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/cart"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var cart models.Cart
		err := db.Collection(database.Carts).FindOneAndUpdate(ctx,
			bson.M{"userId": userID},
			bson.M{"$setOnInsert": bson.M{"items": bson.A{}, "updatedAt": time.Now()}},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&cart)
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "load cart"))
			return
		}

		view, err := buildCartView(ctx, db, &cart)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// AddToCart merges the quantity into the cart. The stock check is advisory;
// nothing is held until checkout.
func AddToCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/cart/add"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req addToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}
		quantity := 1
		if req.Quantity != nil {
			quantity = *req.Quantity
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var product models.Product
		err = db.Collection(database.Products).FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find product"))
			return
		}

		cart, err := findCart(ctx, db, userID)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		existing := cart.Quantity(productID)
		if existing+quantity > product.Stock {
			available := product.Stock - existing
			if available < 0 {
				available = 0
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"message":   fmt.Sprintf("cannot add %d units, only %d more available", quantity, available),
				"productId": productID.Hex(),
				"available": available,
				"requested": quantity,
			})
			return
		}

		cart.Add(productID, quantity)
		if err := saveCart(ctx, db, cart); err != nil {
			respondInternal(c, route, err)
			return
		}

		view, err := buildCartView(ctx, db, cart)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func RemoveFromCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/cart/remove"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req removeFromCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cart, err := findCart(ctx, db, userID)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if cart.Remove(productID) {
			if err := saveCart(ctx, db, cart); err != nil {
				respondInternal(c, route, err)
				return
			}
		}

		view, err := buildCartView(ctx, db, cart)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart/clear"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.Carts).UpdateOne(ctx,
			bson.M{"userId": userID},
			bson.M{"$set": bson.M{"items": bson.A{}, "updatedAt": time.Now()}},
		)
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "clear cart"))
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "cart not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
	}
}

// findCart returns the user's cart, or a new unsaved one.
func findCart(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	err := db.Collection(database.Carts).FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find cart")
	}
	return &cart, nil
}

func saveCart(ctx context.Context, db *mongo.Database, cart *models.Cart) error {
	cart.UpdatedAt = time.Now()
	_, err := db.Collection(database.Carts).UpdateOne(ctx,
		bson.M{"userId": cart.UserID},
		bson.M{"$set": bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt}},
		options.Update().SetUpsert(true),
	)
	return errors.Wrap(err, "save cart")
}

func buildCartView(ctx context.Context, db *mongo.Database, cart *models.Cart) (*cartView, error) {
	view := &cartView{Items: make([]cartLine, 0, len(cart.Items))}
	if len(cart.Items) == 0 {
		return view, nil
	}

	ids := make([]primitive.ObjectID, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}

	cursor, err := db.Collection(database.Products).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "find cart products")
	}
	defer cursor.Close(ctx)

	products, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, err
	}
	return joinCart(cart, products), nil
}

func joinCart(cart *models.Cart, products []models.Product) *cartView {
	byID := make(map[primitive.ObjectID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	view := &cartView{Items: make([]cartLine, 0, len(cart.Items))}
	lines := make([]pricing.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		product := byID[item.ProductID]
		view.Items = append(view.Items, cartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product:   product,
		})
		if product != nil {
			lines = append(lines, pricing.Line{UnitPrice: product.UnitPrice(), Quantity: item.Quantity})
		}
	}
	view.TotalAmount = pricing.Total(lines)
	return view
}
