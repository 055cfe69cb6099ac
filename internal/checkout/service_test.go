package checkout_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"github.com/AyishaBeevi/lyvore-backend/internal/checkout"
	"github.com/AyishaBeevi/lyvore-backend/internal/checkout/checkouttest"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
	"github.com/AyishaBeevi/lyvore-backend/internal/payment"
)

const testSecret = "gateway-secret"

type recordingNotifier struct {
	mu     sync.Mutex
	events [][]string
}

func (n *recordingNotifier) PublishStockUpdated(productIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, productIDs)
}

func (n *recordingNotifier) Events() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]string(nil), n.events...)
}

type fixture struct {
	store    *checkouttest.Store
	notifier *recordingNotifier
	verifier *payment.Verifier
	svc      *checkout.Service

	shirt models.Product
	mug   models.Product
	user  primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := checkouttest.New()
	notifier := &recordingNotifier{}
	verifier := payment.NewVerifier(testSecret)

	return &fixture{
		store:    store,
		notifier: notifier,
		verifier: verifier,
		svc:      checkout.NewService(store, verifier, notifier, zaptest.NewLogger(t)),
		shirt:    store.AddProduct(models.Product{Name: "Linen Shirt", Price: 1000, Discount: 20, Stock: 5}),
		mug:      store.AddProduct(models.Product{Name: "Clay Mug", Price: 500, Stock: 3}),
		user:     primitive.NewObjectID(),
	}
}

func (f *fixture) stock(t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	p, ok := f.store.Product(id)
	require.True(t, ok)
	return p.Stock
}

// register quotes items for the fixture user and records the quote against
// the gateway order.
func (f *fixture) register(t *testing.T, gatewayOrderID string, items ...checkout.LineItem) *models.Payment {
	t.Helper()
	quote, err := f.svc.Quote(context.Background(), f.user, items)
	require.NoError(t, err)
	intent, err := f.svc.RegisterGatewayOrder(context.Background(), f.user, gatewayOrderID, quote)
	require.NoError(t, err)
	return intent
}

func (f *fixture) confirmation(paymentID string, items ...checkout.LineItem) checkout.PaymentConfirmation {
	return checkout.PaymentConfirmation{
		UserID:           f.user,
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: paymentID,
		Signature:        f.verifier.Sign("order_abc", paymentID),
		Items:            items,
	}
}

func TestCheckoutCartPlacesPendingOrder(t *testing.T) {
	f := newFixture(t)
	f.store.SetCart(f.user,
		models.CartItem{ProductID: f.shirt.ID, Quantity: 2},
		models.CartItem{ProductID: f.mug.ID, Quantity: 1},
	)

	order, err := f.svc.CheckoutCart(context.Background(), checkout.CartCheckout{
		UserID: f.user,
		Delivery: checkout.Delivery{
			ShippingAddress: &models.Address{Address: "12 Beach Rd", City: "Kochi"},
			Phone:           "9999999999",
		},
	})
	require.NoError(t, err)

	assert.False(t, order.ID.IsZero())
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, 2100.0, order.TotalAmount)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 800.0, order.Items[0].DiscountedPrice)
	assert.Equal(t, 1000.0, order.Items[0].Price)
	assert.Equal(t, "Linen Shirt", order.Items[0].Name)

	assert.Equal(t, 3, f.stock(t, f.shirt.ID))
	assert.Equal(t, 2, f.stock(t, f.mug.ID))
	shirt, _ := f.store.Product(f.shirt.ID)
	assert.Equal(t, 2, shirt.Sales)

	cart, ok := f.store.Cart(f.user)
	require.True(t, ok)
	assert.True(t, cart.IsEmpty())

	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, order.ID, payments[0].OrderID)
	assert.Equal(t, models.PaymentStatusPending, payments[0].Status)
	assert.Equal(t, 2100.0, payments[0].Amount)

	assert.Equal(t, [][]string{{f.shirt.ID.Hex(), f.mug.ID.Hex()}}, f.notifier.Events())
}

func TestCheckoutCartEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckoutCart(context.Background(), checkout.CartCheckout{UserID: f.user})
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	f.store.SetCart(f.user)
	_, err = f.svc.CheckoutCart(context.Background(), checkout.CartCheckout{UserID: f.user})
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	assert.Empty(t, f.store.Orders())
	assert.Empty(t, f.notifier.Events())
}

func TestCheckoutCartInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.store.SetCart(f.user,
		models.CartItem{ProductID: f.shirt.ID, Quantity: 1},
		models.CartItem{ProductID: f.mug.ID, Quantity: 4},
	)

	_, err := f.svc.CheckoutCart(context.Background(), checkout.CartCheckout{UserID: f.user})

	var stockErr *checkout.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, f.mug.ID, stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 4, stockErr.Requested)

	assert.Equal(t, 5, f.stock(t, f.shirt.ID))
	assert.Equal(t, 3, f.stock(t, f.mug.ID))
	cart, _ := f.store.Cart(f.user)
	assert.Len(t, cart.Items, 2)
	assert.Empty(t, f.store.Orders())
	assert.Empty(t, f.store.Payments())
	assert.Empty(t, f.notifier.Events())
}

func TestCheckoutCartMissingProduct(t *testing.T) {
	f := newFixture(t)
	missing := primitive.NewObjectID()
	f.store.SetCart(f.user, models.CartItem{ProductID: missing, Quantity: 1})

	_, err := f.svc.CheckoutCart(context.Background(), checkout.CartCheckout{UserID: f.user})

	var notFound *checkout.ProductNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, missing, notFound.ProductID)
}

func TestCheckoutCartRollsBackOnLateFailure(t *testing.T) {
	f := newFixture(t)
	f.store.SetCart(f.user, models.CartItem{ProductID: f.shirt.ID, Quantity: 2})
	f.store.InsertPaymentErr = errors.New("write conflict")

	_, err := f.svc.CheckoutCart(context.Background(), checkout.CartCheckout{UserID: f.user})
	require.Error(t, err)

	assert.Equal(t, 5, f.stock(t, f.shirt.ID))
	assert.Empty(t, f.store.Orders())
	cart, _ := f.store.Cart(f.user)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 1, f.store.Rollbacks())
	assert.Empty(t, f.notifier.Events())
}

func TestCheckoutCartLastUnitRace(t *testing.T) {
	f := newFixture(t)
	last := f.store.AddProduct(models.Product{Name: "Last One", Price: 100, Stock: 1})

	const buyers = 8
	users := make([]primitive.ObjectID, buyers)
	for i := range users {
		users[i] = primitive.NewObjectID()
		f.store.SetCart(users[i], models.CartItem{ProductID: last.ID, Quantity: 1})
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		shortage  int
	)
	for _, u := range users {
		wg.Add(1)
		go func(u primitive.ObjectID) {
			defer wg.Done()
			_, err := f.svc.CheckoutCart(context.Background(), checkout.CartCheckout{UserID: u})

			mu.Lock()
			defer mu.Unlock()
			var stockErr *checkout.InsufficientStockError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &stockErr):
				shortage++
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, buyers-1, shortage)
	assert.Equal(t, 0, f.stock(t, last.ID))
	assert.Len(t, f.store.Orders(), 1)
}

func TestCheckoutCartLosesConditionalDecrement(t *testing.T) {
	f := newFixture(t)
	f.store.SetCart(f.user,
		models.CartItem{ProductID: f.shirt.ID, Quantity: 2},
		models.CartItem{ProductID: f.mug.ID, Quantity: 1},
	)
	// The mug passes the read check, then sells out before its decrement.
	f.store.ConcurrentSales = map[primitive.ObjectID]int{f.mug.ID: 3}

	_, err := f.svc.CheckoutCart(context.Background(), checkout.CartCheckout{UserID: f.user})

	var stockErr *checkout.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, f.mug.ID, stockErr.ProductID)
	assert.Equal(t, 1, stockErr.Requested)

	assert.Equal(t, 5, f.stock(t, f.shirt.ID))
	assert.Equal(t, 3, f.stock(t, f.mug.ID))
	shirt, _ := f.store.Product(f.shirt.ID)
	assert.Zero(t, shirt.Sales)
	assert.Empty(t, f.store.Orders())
	assert.Empty(t, f.store.Payments())
	cart, _ := f.store.Cart(f.user)
	assert.Len(t, cart.Items, 2)
	assert.Equal(t, 1, f.store.Rollbacks())
	assert.Empty(t, f.notifier.Events())
}

func TestRegisterGatewayOrderStoresQuote(t *testing.T) {
	f := newFixture(t)

	intent := f.register(t, "order_abc",
		checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1},
		checkout.LineItem{ProductID: f.mug.ID, Quantity: 2},
	)

	assert.Equal(t, models.PaymentStatusPending, intent.Status)
	assert.Equal(t, 1800.0, intent.Amount)
	assert.True(t, intent.OrderID.IsZero())

	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, "order_abc", payments[0].GatewayOrderID)
	assert.Equal(t, f.user, payments[0].UserID)
	require.Len(t, payments[0].Items, 2)
	assert.Equal(t, 2, payments[0].Items[1].Quantity)

	assert.Equal(t, 5, f.stock(t, f.shirt.ID))
	assert.Empty(t, f.store.Orders())

	quote, err := f.svc.Quote(context.Background(), f.user, []checkout.LineItem{{ProductID: f.mug.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.svc.RegisterGatewayOrder(context.Background(), f.user, "order_abc", quote)
	require.Error(t, err)
	assert.Len(t, f.store.Payments(), 1)
}

func TestConfirmPaymentPlacesPaidOrder(t *testing.T) {
	f := newFixture(t)
	f.store.SetCart(f.user, models.CartItem{ProductID: f.mug.ID, Quantity: 1})
	items := []checkout.LineItem{
		{ProductID: f.shirt.ID, Quantity: 1},
		{ProductID: f.mug.ID, Quantity: 2},
	}
	intent := f.register(t, "order_abc", items...)

	res, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1", items...))
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	order := res.Order
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "pay_1", order.PaymentID)
	assert.Equal(t, "order_abc", order.GatewayOrderID)
	assert.Equal(t, models.PaymentMethodGateway, order.PaymentMethod)
	assert.Equal(t, 1800.0, order.TotalAmount)

	assert.Equal(t, 4, f.stock(t, f.shirt.ID))
	assert.Equal(t, 1, f.stock(t, f.mug.ID))

	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, intent.ID, payments[0].ID)
	assert.Equal(t, models.PaymentStatusSuccess, payments[0].Status)
	assert.Equal(t, "pay_1", payments[0].GatewayPaymentID)
	assert.Equal(t, order.ID, payments[0].OrderID)
	assert.Equal(t, 1800.0, payments[0].Amount)

	cart, _ := f.store.Cart(f.user)
	assert.True(t, cart.IsEmpty())
	assert.Len(t, f.notifier.Events(), 1)
}

func TestConfirmPaymentUsesQuotedItemsWhenOmitted(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.mug.ID, Quantity: 2})

	res, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1"))
	require.NoError(t, err)

	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, f.mug.ID, res.Order.Items[0].ProductID)
	assert.Equal(t, 2, res.Order.Items[0].Quantity)
	assert.Equal(t, 1000.0, res.Order.TotalAmount)
	assert.Equal(t, 1, f.stock(t, f.mug.ID))
}

func TestConfirmPaymentRejectsItemsOutsideQuote(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.mug.ID, Quantity: 1})

	_, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1",
		checkout.LineItem{ProductID: f.shirt.ID, Quantity: 5},
	))
	require.ErrorIs(t, err, checkout.ErrPaymentMismatch)

	_, err = f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1",
		checkout.LineItem{ProductID: f.mug.ID, Quantity: 2},
	))
	require.ErrorIs(t, err, checkout.ErrPaymentMismatch)

	assert.Equal(t, 5, f.stock(t, f.shirt.ID))
	assert.Equal(t, 3, f.stock(t, f.mug.ID))
	assert.Empty(t, f.store.Orders())
	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusPending, payments[0].Status)
	assert.Empty(t, f.notifier.Events())
}

func TestConfirmPaymentRejectsPriceChangeSinceQuote(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.mug.ID, Quantity: 1})

	repriced := f.mug
	repriced.Price = 700
	f.store.AddProduct(repriced)

	_, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1"))
	require.ErrorIs(t, err, checkout.ErrPaymentMismatch)

	assert.Equal(t, 3, f.stock(t, f.mug.ID))
	assert.Empty(t, f.store.Orders())
}

func TestConfirmPaymentUnknownGatewayOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1",
		checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1},
	))
	require.ErrorIs(t, err, checkout.ErrUnknownGatewayOrder)
	assert.Equal(t, 5, f.stock(t, f.shirt.ID))
	assert.Empty(t, f.store.Orders())
}

func TestConfirmPaymentGatewayOrderSettledByOtherPayment(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1})

	_, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1"))
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_2"))
	require.ErrorIs(t, err, checkout.ErrGatewayOrderSettled)
	assert.Equal(t, 4, f.stock(t, f.shirt.ID))
	assert.Len(t, f.store.Orders(), 1)
}

func TestConfirmPaymentLosesConditionalDecrement(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.mug.ID, Quantity: 2})
	f.store.ConcurrentSales = map[primitive.ObjectID]int{f.mug.ID: 2}

	_, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1"))

	var stockErr *checkout.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3, f.stock(t, f.mug.ID))
	assert.Empty(t, f.store.Orders())
	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusPending, payments[0].Status)
}

func TestConfirmPaymentRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	req := f.confirmation("pay_1", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1})
	req.Signature = payment.NewVerifier("other-secret").Sign("order_abc", "pay_1")

	_, err := f.svc.ConfirmPayment(context.Background(), req)
	require.ErrorIs(t, err, checkout.ErrSignatureMismatch)

	assert.Equal(t, 5, f.stock(t, f.shirt.ID))
	assert.Empty(t, f.store.Orders())
	assert.Zero(t, f.store.Commits())
}

func TestConfirmPaymentRequiresDetails(t *testing.T) {
	f := newFixture(t)
	req := f.confirmation("pay_1", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1})
	req.Signature = ""

	_, err := f.svc.ConfirmPayment(context.Background(), req)
	require.ErrorIs(t, err, checkout.ErrMissingPaymentDetails)
}

func TestConfirmPaymentValidatesItems(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1})

	_, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1",
		checkout.LineItem{ProductID: f.shirt.ID, Quantity: 0},
	))
	var qtyErr *checkout.InvalidQuantityError
	require.True(t, errors.As(err, &qtyErr))
	assert.Equal(t, f.shirt.ID, qtyErr.ProductID)
	assert.Empty(t, f.store.Orders())
}

func TestConfirmPaymentMergesRepeatedItems(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.mug.ID, Quantity: 3})

	res, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1",
		checkout.LineItem{ProductID: f.mug.ID, Quantity: 1},
		checkout.LineItem{ProductID: f.mug.ID, Quantity: 2},
	))
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, 3, res.Order.Items[0].Quantity)
	assert.Equal(t, 0, f.stock(t, f.mug.ID))
}

func TestConfirmPaymentReplayReturnsExistingOrder(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 2})
	req := f.confirmation("pay_1", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 2})

	first, err := f.svc.ConfirmPayment(context.Background(), req)
	require.NoError(t, err)

	second, err := f.svc.ConfirmPayment(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 3, f.stock(t, f.shirt.ID))
	assert.Len(t, f.store.Orders(), 1)
	assert.Len(t, f.store.Payments(), 1)
	assert.Len(t, f.notifier.Events(), 1)
}

func TestConfirmPaymentReplayIgnoresResubmittedItems(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 2})

	first, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1"))
	require.NoError(t, err)

	for _, items := range [][]checkout.LineItem{
		nil,
		{{ProductID: f.shirt.ID, Quantity: 0}},
		{{ProductID: f.mug.ID, Quantity: 9}},
	} {
		res, err := f.svc.ConfirmPayment(context.Background(), f.confirmation("pay_1", items...))
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.Equal(t, first.Order.ID, res.Order.ID)
	}
	assert.Equal(t, 3, f.stock(t, f.shirt.ID))
	assert.Len(t, f.store.Orders(), 1)
}

func TestConfirmPaymentReplayAfterConcurrentInsert(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1})
	req := f.confirmation("pay_1", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1})

	first, err := f.svc.ConfirmPayment(context.Background(), req)
	require.NoError(t, err)

	// The order lookup misses, so the settled payment record is what reveals
	// the earlier commit.
	f.store.MissPaymentLookups = 1
	second, err := f.svc.ConfirmPayment(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 4, f.stock(t, f.shirt.ID))
	assert.Len(t, f.store.Orders(), 1)
}

func TestConfirmPaymentClaimedByOtherUser(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1})
	req := f.confirmation("pay_1", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1})

	_, err := f.svc.ConfirmPayment(context.Background(), req)
	require.NoError(t, err)

	req.UserID = primitive.NewObjectID()
	_, err = f.svc.ConfirmPayment(context.Background(), req)
	require.ErrorIs(t, err, checkout.ErrPaymentClaimed)
	assert.Len(t, f.store.Orders(), 1)
}

func TestConfirmPaymentRejectsOtherUsersGatewayOrder(t *testing.T) {
	f := newFixture(t)
	f.register(t, "order_abc", checkout.LineItem{ProductID: f.shirt.ID, Quantity: 1})

	req := f.confirmation("pay_1")
	req.UserID = primitive.NewObjectID()
	_, err := f.svc.ConfirmPayment(context.Background(), req)
	require.ErrorIs(t, err, checkout.ErrPaymentClaimed)
	assert.Equal(t, 5, f.stock(t, f.shirt.ID))
	assert.Empty(t, f.store.Orders())
}

func TestQuoteUsesServerPrices(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.Quote(context.Background(), f.user, []checkout.LineItem{
		{ProductID: f.shirt.ID, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 2400.0, quote.TotalAmount)
	require.Len(t, quote.Items, 1)
	assert.Equal(t, 800.0, quote.Items[0].DiscountedPrice)

	assert.Equal(t, 5, f.stock(t, f.shirt.ID))
}

func TestQuoteFallsBackToCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Quote(context.Background(), f.user, nil)
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	f.store.SetCart(f.user, models.CartItem{ProductID: f.mug.ID, Quantity: 2})
	quote, err := f.svc.Quote(context.Background(), f.user, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, quote.TotalAmount)

	cart, _ := f.store.Cart(f.user)
	assert.Len(t, cart.Items, 1)
}

func TestQuoteReportsShortage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Quote(context.Background(), f.user, []checkout.LineItem{
		{ProductID: f.mug.ID, Quantity: 10},
	})
	var stockErr *checkout.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
}
