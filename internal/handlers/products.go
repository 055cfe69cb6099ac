package handlers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/middleware"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

const maxSlugAttempts = 20

type createProductRequest struct {
	Name        string            `json:"name" binding:"required"`
	Price       *float64          `json:"price" binding:"required,gte=0"`
	Discount    float64           `json:"discount" binding:"gte=0,lte=100"`
	Stock       int               `json:"stock" binding:"gte=0"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Tags        models.StringList `json:"tags"`
	Images      models.StringList `json:"images"`
}

type updateProductRequest struct {
	Name        *string            `json:"name" binding:"omitempty,min=1"`
	Price       *float64           `json:"price" binding:"omitempty,gte=0"`
	Discount    *float64           `json:"discount" binding:"omitempty,gte=0,lte=100"`
	Stock       *int               `json:"stock" binding:"omitempty,gte=0"`
	Description *string            `json:"description"`
	Category    *string            `json:"category"`
	Tags        *models.StringList `json:"tags"`
	Images      *models.StringList `json:"images"`
}

// set returns the $set document for the supplied fields only.
func (r updateProductRequest) set() bson.M {
	set := bson.M{}
	if r.Name != nil {
		set["name"] = strings.TrimSpace(*r.Name)
	}
	if r.Price != nil {
		set["price"] = *r.Price
	}
	if r.Discount != nil {
		set["discount"] = *r.Discount
	}
	if r.Stock != nil {
		set["stock"] = *r.Stock
	}
	if r.Description != nil {
		set["description"] = strings.TrimSpace(*r.Description)
	}
	if r.Category != nil {
		set["category"] = strings.TrimSpace(*r.Category)
	}
	if r.Tags != nil {
		set["tags"] = *r.Tags
	}
	if r.Images != nil {
		set["images"] = *r.Images
	}
	return set
}

func productListFilter(category, search string) bson.M {
	filter := bson.M{}
	if category = strings.TrimSpace(category); category != "" {
		filter["category"] = category
	}
	if search = strings.TrimSpace(search); search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
	}
	return filter
}

func GetProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products"
		defer handlePanic(c, route)

		page, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := productListFilter(c.Query("category"), c.Query("search"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		products := db.Collection(database.Products)
		page.Total, err = products.CountDocuments(ctx, filter)
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "count products"))
			return
		}

		cursor, err := products.Find(ctx, filter, options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip(page.skip()).
			SetLimit(page.Limit))
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find products"))
			return
		}
		defer cursor.Close(ctx)

		list, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"products":   list,
			"pagination": page,
		})
	}
}

// GetProductBySlug counts a view on every successful read.
func GetProductBySlug(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/:slug"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var product models.Product
		err := db.Collection(database.Products).FindOneAndUpdate(ctx,
			bson.M{"slug": strings.ToLower(strings.TrimSpace(c.Param("slug")))},
			bson.M{"$inc": bson.M{"views": 1}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&product)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find product"))
			return
		}

		product.Derive()
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

func GetProductByID(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/id/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		product, err := findProduct(c.Request.Context(), db, id)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

func GetProductStats(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/stats/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		product, err := findProduct(c.Request.Context(), db, id)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"productId": product.ID.Hex(),
			"views":     product.Views,
			"sales":     product.Sales,
			"stock":     product.Stock,
		})
	}
}

// GetCatalogStats sums views and sales across the catalog.
func GetCatalogStats(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/stats"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.Products).Aggregate(ctx, mongo.Pipeline{
			{{Key: "$group", Value: bson.M{
				"_id":        nil,
				"totalSales": bson.M{"$sum": "$sales"},
				"totalViews": bson.M{"$sum": "$views"},
				"products":   bson.M{"$sum": 1},
			}}},
		})
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "aggregate stats"))
			return
		}
		defer cursor.Close(ctx)

		var rows []struct {
			TotalSales int64 `bson:"totalSales"`
			TotalViews int64 `bson:"totalViews"`
			Products   int64 `bson:"products"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			respondInternal(c, route, errors.Wrap(err, "decode stats"))
			return
		}

		stats := gin.H{"totalSales": int64(0), "totalViews": int64(0), "products": int64(0)}
		if len(rows) > 0 {
			stats["totalSales"] = rows[0].TotalSales
			stats["totalViews"] = rows[0].TotalViews
			stats["products"] = rows[0].Products
		}
		c.JSON(http.StatusOK, stats)
	}
}

func CreateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/products"
		defer handlePanic(c, route)

		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		products := db.Collection(database.Products)
		productSlug, err := uniqueSlug(ctx, products, name, primitive.NilObjectID)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		now := time.Now()
		product := models.Product{
			Name:        name,
			Slug:        productSlug,
			Price:       *req.Price,
			Discount:    req.Discount,
			Stock:       req.Stock,
			Description: strings.TrimSpace(req.Description),
			Category:    strings.TrimSpace(req.Category),
			Tags:        req.Tags,
			Images:      req.Images,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if product.Category == "" {
			product.Category = "General"
		}

		res, err := products.InsertOne(ctx, product)
		if mongo.IsDuplicateKeyError(err) {
			respondWithError(c, http.StatusConflict, route, "product slug already exists")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "insert product"))
			return
		}
		product.ID, _ = res.InsertedID.(primitive.ObjectID)
		product.Derive()

		middleware.Logger(c).Info("Product created",
			zap.String("product_id", product.ID.Hex()),
			zap.String("slug", product.Slug),
		)
		c.JSON(http.StatusCreated, gin.H{"product": product})
	}
}

func UpdateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req updateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := req.set()
		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		products := db.Collection(database.Products)
		if name, ok := set["name"].(string); ok {
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name is required")
				return
			}
			productSlug, err := uniqueSlug(ctx, products, name, id)
			if err != nil {
				respondInternal(c, route, err)
				return
			}
			set["slug"] = productSlug
		}
		set["updatedAt"] = time.Now()

		var product models.Product
		err := products.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&product)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if mongo.IsDuplicateKeyError(err) {
			respondWithError(c, http.StatusConflict, route, "product slug already exists")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "update product"))
			return
		}

		product.Derive()
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

// DeleteProduct also pulls the product out of every cart.
func DeleteProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.Products).DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "delete product"))
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		pulled, err := db.Collection(database.Carts).UpdateMany(ctx,
			bson.M{"items.productId": id},
			bson.M{"$pull": bson.M{"items": bson.M{"productId": id}}},
		)
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "pull product from carts"))
			return
		}

		middleware.Logger(c).Info("Product deleted",
			zap.String("product_id", id.Hex()),
			zap.Int64("carts_updated", pulled.ModifiedCount),
		)
		c.JSON(http.StatusOK, gin.H{"message": "product deleted and removed from carts"})
	}
}

func findProduct(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var product models.Product
	if err := db.Collection(database.Products).FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, err
	}
	product.Derive()
	return &product, nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)
	for cursor.Next(ctx) {
		var p models.Product
		if err := cursor.Decode(&p); err != nil {
			return nil, errors.Wrap(err, "decode product")
		}
		p.Derive()
		products = append(products, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate products")
	}
	return products, nil
}

func baseSlug(name string) string {
	s := slug.Make(name)
	if s == "" {
		return "product"
	}
	return s
}

// uniqueSlug derives a slug from name, numbering it when another product
// already owns it.
func uniqueSlug(ctx context.Context, products *mongo.Collection, name string, self primitive.ObjectID) (string, error) {
	base := baseSlug(name)
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		filter := bson.M{"slug": candidate}
		if !self.IsZero() {
			filter["_id"] = bson.M{"$ne": self}
		}
		n, err := products.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return "", errors.Wrap(err, "check slug")
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%s", base, primitive.NewObjectID().Hex()[18:]), nil
}
