package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AyishaBeevi/lyvore-backend/internal/checkout"
	"github.com/AyishaBeevi/lyvore-backend/internal/middleware"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

func TestParsePaginationParams(t *testing.T) {
	for _, tt := range []struct {
		name        string
		page, limit string
		want        pagination
		wantErr     bool
	}{
		{name: "Defaults", want: pagination{Page: 1, Limit: defaultPageLimit}},
		{name: "Explicit", page: "3", limit: "10", want: pagination{Page: 3, Limit: 10}},
		{name: "Capped", limit: "1000", want: pagination{Page: 1, Limit: maxPageLimit}},
		{name: "ZeroPage", page: "0", wantErr: true},
		{name: "NotANumber", limit: "ten", wantErr: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePaginationParams(tt.page, tt.limit)
			if tt.wantErr {
				require.ErrorIs(t, err, errInvalidPagination)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, int64(20), pagination{Page: 3, Limit: 10}.skip())
}

func TestPlanStatusChange(t *testing.T) {
	for _, tt := range []struct {
		from, to models.OrderStatus
		changed  bool
		wantErr  bool
	}{
		{from: models.OrderStatusPending, to: models.OrderStatusPaid, changed: true},
		{from: models.OrderStatusPending, to: models.OrderStatusShipped, changed: true},
		{from: models.OrderStatusPaid, to: models.OrderStatusCancelled, changed: true},
		{from: models.OrderStatusShipped, to: models.OrderStatusShipped, changed: false},
		{from: models.OrderStatusShipped, to: models.OrderStatusPending, wantErr: true},
		{from: models.OrderStatusShipped, to: models.OrderStatusCancelled, wantErr: true},
		{from: models.OrderStatusDelivered, to: models.OrderStatusCancelled, wantErr: true},
		{from: models.OrderStatusCancelled, to: models.OrderStatusPaid, wantErr: true},
	} {
		t.Run(string(tt.from)+"_"+string(tt.to), func(t *testing.T) {
			changed, err := planStatusChange(tt.from, tt.to)
			if tt.wantErr {
				require.ErrorIs(t, err, errIllegalTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestWriteCheckoutError(t *testing.T) {
	productID := primitive.NewObjectID()

	for _, tt := range []struct {
		name   string
		err    error
		status int
	}{
		{name: "Stock", err: &checkout.InsufficientStockError{ProductID: productID, Name: "Mug", Available: 1, Requested: 2}, status: http.StatusConflict},
		{name: "WrappedStock", err: errors.Wrap(&checkout.InsufficientStockError{ProductID: productID}, "place"), status: http.StatusConflict},
		{name: "NotFound", err: &checkout.ProductNotFoundError{ProductID: productID}, status: http.StatusNotFound},
		{name: "Quantity", err: &checkout.InvalidQuantityError{ProductID: productID}, status: http.StatusBadRequest},
		{name: "EmptyCart", err: checkout.ErrEmptyCart, status: http.StatusBadRequest},
		{name: "NoItems", err: checkout.ErrNoItems, status: http.StatusBadRequest},
		{name: "MissingDetails", err: checkout.ErrMissingPaymentDetails, status: http.StatusBadRequest},
		{name: "Signature", err: errors.Wrap(checkout.ErrSignatureMismatch, "verify"), status: http.StatusBadRequest},
		{name: "Claimed", err: checkout.ErrPaymentClaimed, status: http.StatusConflict},
		{name: "UnknownGatewayOrder", err: checkout.ErrUnknownGatewayOrder, status: http.StatusNotFound},
		{name: "Settled", err: checkout.ErrGatewayOrderSettled, status: http.StatusConflict},
		{name: "Mismatch", err: errors.Wrap(checkout.ErrPaymentMismatch, "items differ"), status: http.StatusConflict},
		{name: "Infrastructure", err: errors.New("connection reset"), status: http.StatusInternalServerError},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

			writeCheckoutError(c, "test", tt.err)
			assert.Equal(t, tt.status, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["message"])
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body["message"])
			}
		})
	}
}

func TestRespondValidationError(t *testing.T) {
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", jsonBody(t, gin.H{"email": "not-an-email", "password": "123"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Message string   `json:"message"`
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Message)
	assert.ElementsMatch(t, []string{
		"name is required",
		"email must be a valid email",
		"password must be at least 6",
	}, body.Details)
}

func TestShippingRequestAddress(t *testing.T) {
	var nilReq *shippingRequest
	assert.Nil(t, nilReq.address())

	got := (&shippingRequest{Address: " 1 Main ", City: "Kochi", Pincode: "682001"}).address()
	assert.Equal(t, &models.Address{Address: "1 Main", City: "Kochi", Zip: "682001"}, got)

	got = (&shippingRequest{Zip: "1", Pincode: "2"}).address()
	assert.Equal(t, "1", got.Zip)
}

func TestCheckoutRequestDeliveryPhoneFallback(t *testing.T) {
	d := checkoutRequest{ShippingAddress: &shippingRequest{Phone: "123"}}.delivery()
	assert.Equal(t, "123", d.Phone)

	d = checkoutRequest{Phone: "999", ShippingAddress: &shippingRequest{Phone: "123"}}.delivery()
	assert.Equal(t, "999", d.Phone)
}

func TestProductListFilter(t *testing.T) {
	assert.Empty(t, productListFilter("", "  "))

	f := productListFilter("Bags", "a+b")
	assert.Equal(t, "Bags", f["category"])
	assert.Equal(t, bson.M{"$regex": `a\+b`, "$options": "i"}, f["name"])
}

func TestUpdateProductRequestSet(t *testing.T) {
	price := 120.0
	stock := 0
	name := "  Clay Pot "
	set := updateProductRequest{Name: &name, Price: &price, Stock: &stock}.set()

	assert.Equal(t, bson.M{"name": "Clay Pot", "price": 120.0, "stock": 0}, set)
	assert.Empty(t, updateProductRequest{}.set())
}

func TestBaseSlug(t *testing.T) {
	assert.Equal(t, "handwoven-jute-bag", baseSlug("Handwoven Jute Bag!"))
	assert.Equal(t, "product", baseSlug("!!!"))
}

func TestJoinCart(t *testing.T) {
	kept := models.Product{ID: primitive.NewObjectID(), Name: "Mug", Price: 500, Discount: 10, Stock: 3}
	gone := primitive.NewObjectID()
	cart := &models.Cart{Items: []models.CartItem{
		{ProductID: kept.ID, Quantity: 2},
		{ProductID: gone, Quantity: 1},
	}}

	view := joinCart(cart, []models.Product{kept})
	require.Len(t, view.Items, 2)
	require.NotNil(t, view.Items[0].Product)
	assert.Nil(t, view.Items[1].Product)
	assert.Equal(t, 900.0, view.TotalAmount)
}

func TestParseLineItems(t *testing.T) {
	id := primitive.NewObjectID()
	items, err := parseLineItems([]lineItemRequest{{ProductID: id.Hex(), Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, []checkout.LineItem{{ProductID: id, Quantity: 2}}, items)

	_, err = parseLineItems([]lineItemRequest{{ProductID: "nope", Quantity: 1}})
	require.Error(t, err)
}

func TestHashToken(t *testing.T) {
	plain, err := generateRefreshString()
	require.NoError(t, err)
	assert.Len(t, plain, 64)
	assert.Equal(t, hashToken(plain), hashToken(plain))
	assert.NotEqual(t, plain, hashToken(plain))
}

func TestIssueAccessTokenPassesGuards(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "test-secret"

	user := &models.User{ID: primitive.NewObjectID(), Email: "a@b.c", Role: models.RoleUser}
	token, err := issueAccessToken(user, secret, time.Minute, time.Now())
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", middleware.UserAuth(secret), func(c *gin.Context) {
		id, _ := middleware.UserID(c)
		c.String(http.StatusOK, id.Hex())
	})
	r.GET("/admin", middleware.AdminAuth(secret), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	call := func(path, token string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w
	}

	w := call("/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID.Hex(), w.Body.String())
	assert.Equal(t, http.StatusForbidden, call("/admin", token).Code)

	expired, err := issueAccessToken(user, secret, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call("/me", expired).Code)
}
