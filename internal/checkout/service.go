// Package checkout turns a cart, or a gateway-confirmed item list, into a
// committed order. Stock checks, stock decrements, the order insert, the
// payment record and clearing the cart all happen in one transaction.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AyishaBeevi/lyvore-backend/internal/models"
	"github.com/AyishaBeevi/lyvore-backend/internal/pricing"
)

// LineItem is a requested quantity of one product. Prices are never taken
// from the caller.
type LineItem struct {
	ProductID primitive.ObjectID
	Quantity  int
}

// Delivery is the shipping/billing snapshot stored on the order.
type Delivery struct {
	ShippingAddress *models.Address
	BillingDetails  *models.BillingDetails
	Phone           string
}

type CartCheckout struct {
	UserID        primitive.ObjectID
	PaymentMethod string
	Delivery
}

type PaymentConfirmation struct {
	UserID           primitive.ObjectID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Items            []LineItem
	Delivery
}

type Result struct {
	Order *models.Order
	// Replayed is set when the payment had already been applied and the
	// existing order is returned unchanged.
	Replayed bool
}

type Quote struct {
	Items       []models.OrderItem
	TotalAmount float64
}

type Service struct {
	store    Store
	verifier SignatureVerifier
	notifier Notifier
	lg       *zap.Logger
	now      func() time.Time
}

func NewService(store Store, verifier SignatureVerifier, notifier Notifier, lg *zap.Logger) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		notifier: notifier,
		lg:       lg.Named("checkout"),
		now:      time.Now,
	}
}

type placement struct {
	userID  primitive.ObjectID
	items   []LineItem
	status  models.OrderStatus
	payment models.Payment
	order   models.Order
	// intent is a registered gateway payment to settle instead of inserting
	// payment. The order must cost exactly the registered amount.
	intent *models.Payment
}

// CheckoutCart places a pending order for everything in the user's cart.
func (s *Service) CheckoutCart(ctx context.Context, req CartCheckout) (*models.Order, error) {
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = models.PaymentMethodCOD
	}

	var order *models.Order
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		order = nil

		cart, err := tx.FindCart(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if cart == nil || cart.IsEmpty() {
			return ErrEmptyCart
		}

		items, err := normalizeItems(cartLines(cart))
		if err != nil {
			return err
		}

		order, err = s.place(ctx, tx, placement{
			userID: req.UserID,
			items:  items,
			status: models.OrderStatusPending,
			order: models.Order{
				PaymentMethod:   method,
				ShippingAddress: req.ShippingAddress,
				BillingDetails:  req.BillingDetails,
				Phone:           req.Phone,
			},
			payment: models.Payment{
				PaymentMethod: method,
				Status:        models.PaymentStatusPending,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announce(order)
	return order, nil
}

// RegisterGatewayOrder records the quote a gateway order was created for.
// ConfirmPayment only settles gateway orders registered here, and only for
// the quoted items and amount.
func (s *Service) RegisterGatewayOrder(ctx context.Context, userID primitive.ObjectID, gatewayOrderID string, quote *Quote) (*models.Payment, error) {
	if gatewayOrderID == "" {
		return nil, ErrMissingPaymentDetails
	}
	if quote == nil || len(quote.Items) == 0 {
		return nil, ErrNoItems
	}

	var registered *models.Payment
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		registered = nil

		intent := models.Payment{
			UserID:         userID,
			Amount:         quote.TotalAmount,
			PaymentMethod:  models.PaymentMethodGateway,
			GatewayOrderID: gatewayOrderID,
			Status:         models.PaymentStatusPending,
			PaymentDate:    s.now(),
			Items:          append([]models.OrderItem(nil), quote.Items...),
		}
		if err := tx.InsertPayment(ctx, &intent); err != nil {
			return errors.Wrap(err, "insert payment")
		}
		registered = &intent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return registered, nil
}

// ConfirmPayment verifies a gateway confirmation and places a paid order for
// the items quoted when the gateway order was registered. Replaying a payment
// id returns the order it produced.
func (s *Service) ConfirmPayment(ctx context.Context, req PaymentConfirmation) (*Result, error) {
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		return nil, ErrMissingPaymentDetails
	}
	if err := s.verifier.Verify(req.GatewayOrderID, req.GatewayPaymentID, req.Signature); err != nil {
		s.lg.Warn("Rejected payment confirmation",
			zap.String("user_id", req.UserID.Hex()),
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.Error(err),
		)
		return nil, errors.Wrap(ErrSignatureMismatch, err.Error())
	}

	var result *Result
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		result = nil

		existing, err := s.existingPayment(ctx, tx, req.UserID, req.GatewayPaymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &Result{Order: existing, Replayed: true}
			return nil
		}

		intent, err := s.pendingIntent(ctx, tx, req)
		if err != nil {
			return err
		}
		items, err := confirmedItems(intent, req.Items)
		if err != nil {
			return err
		}

		order, err := s.place(ctx, tx, placement{
			userID: req.UserID,
			items:  items,
			status: models.OrderStatusPaid,
			intent: intent,
			order: models.Order{
				PaymentMethod:    models.PaymentMethodGateway,
				PaymentID:        req.GatewayPaymentID,
				GatewayOrderID:   req.GatewayOrderID,
				GatewaySignature: req.Signature,
				ShippingAddress:  req.ShippingAddress,
				BillingDetails:   req.BillingDetails,
				Phone:            req.Phone,
			},
		})
		if err != nil {
			return err
		}
		result = &Result{Order: order}
		return nil
	})

	if errors.Is(err, ErrDuplicatePaymentID) {
		// A concurrent confirmation of the same payment won the insert.
		return s.replay(ctx, req.UserID, req.GatewayPaymentID)
	}
	if errors.Is(err, ErrPaymentMismatch) {
		s.lg.Warn("Payment does not match quote",
			zap.String("user_id", req.UserID.Hex()),
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.String("payment_id", req.GatewayPaymentID),
			zap.Error(err),
		)
	}
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		s.lg.Info("Payment already applied",
			zap.String("order_id", result.Order.ID.Hex()),
			zap.String("payment_id", req.GatewayPaymentID),
		)
		return result, nil
	}

	s.announce(result.Order)
	return result, nil
}

// pendingIntent loads the registered gateway order and checks that it can
// still be settled by this user and payment.
func (s *Service) pendingIntent(ctx context.Context, tx Tx, req PaymentConfirmation) (*models.Payment, error) {
	intent, err := tx.FindPaymentByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, errors.Wrap(err, "find gateway payment")
	}
	if intent == nil {
		return nil, ErrUnknownGatewayOrder
	}
	if intent.UserID != req.UserID {
		return nil, ErrPaymentClaimed
	}
	if intent.Status == models.PaymentStatusPending {
		return intent, nil
	}
	if intent.GatewayPaymentID == req.GatewayPaymentID {
		// Settled by this payment in a transaction the lookup above missed.
		return nil, ErrDuplicatePaymentID
	}
	return nil, ErrGatewayOrderSettled
}

// confirmedItems returns the quoted items. A client-supplied list must
// describe the same products and quantities.
func confirmedItems(intent *models.Payment, requested []LineItem) ([]LineItem, error) {
	quoted := make([]LineItem, len(intent.Items))
	for i, item := range intent.Items {
		quoted[i] = LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	quoted, err := normalizeItems(quoted)
	if err != nil {
		return nil, errors.Wrap(err, "quoted items")
	}
	if len(requested) == 0 {
		return quoted, nil
	}

	requested, err = normalizeItems(requested)
	if err != nil {
		return nil, err
	}
	if !sameLines(quoted, requested) {
		return nil, errors.Wrap(ErrPaymentMismatch, "items differ from quote")
	}
	return quoted, nil
}

func sameLines(a, b []LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	want := make(map[primitive.ObjectID]int, len(a))
	for _, item := range a {
		want[item.ProductID] = item.Quantity
	}
	for _, item := range b {
		if qty, ok := want[item.ProductID]; !ok || qty != item.Quantity {
			return false
		}
	}
	return true
}

// Quote prices items, or the user's cart when items is empty, without
// changing anything.
func (s *Service) Quote(ctx context.Context, userID primitive.ObjectID, items []LineItem) (*Quote, error) {
	var quote *Quote
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		quote = nil

		lines := items
		if len(lines) == 0 {
			cart, err := tx.FindCart(ctx, userID)
			if err != nil {
				return errors.Wrap(err, "load cart")
			}
			if cart == nil || cart.IsEmpty() {
				return ErrEmptyCart
			}
			lines = cartLines(cart)
		}

		normalized, err := normalizeItems(lines)
		if err != nil {
			return err
		}
		products, err := loadProducts(ctx, tx, normalized)
		if err != nil {
			return err
		}

		orderItems, total := priceItems(normalized, products)
		quote = &Quote{Items: orderItems, TotalAmount: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *Service) place(ctx context.Context, tx Tx, p placement) (*models.Order, error) {
	products, err := loadProducts(ctx, tx, p.items)
	if err != nil {
		return nil, err
	}

	orderItems, total := priceItems(p.items, products)
	if p.intent != nil && pricing.MinorUnits(total) != pricing.MinorUnits(p.intent.Amount) {
		return nil, errors.Wrapf(ErrPaymentMismatch, "charged %.2f, order costs %.2f", p.intent.Amount, total)
	}

	for i, item := range p.items {
		ok, err := tx.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, errors.Wrap(err, "decrement stock")
		}
		if !ok {
			return nil, &InsufficientStockError{
				ProductID: item.ProductID,
				Name:      products[i].Name,
				Available: products[i].Stock,
				Requested: item.Quantity,
			}
		}
	}

	now := s.now()

	order := p.order
	order.UserID = p.userID
	order.Items = orderItems
	order.TotalAmount = total
	order.Status = p.status
	order.CreatedAt = now
	order.UpdatedAt = now
	if err := tx.InsertOrder(ctx, &order); err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	if p.intent != nil {
		settled, err := tx.SettlePayment(ctx, p.intent.ID, order.ID, order.PaymentID, now)
		if err != nil {
			return nil, errors.Wrap(err, "settle payment")
		}
		if !settled {
			return nil, ErrGatewayOrderSettled
		}
	} else {
		payment := p.payment
		payment.OrderID = order.ID
		payment.UserID = p.userID
		payment.Amount = total
		payment.PaymentDate = now
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return nil, errors.Wrap(err, "insert payment")
		}
	}

	if err := tx.ClearCart(ctx, p.userID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return &order, nil
}

func (s *Service) existingPayment(ctx context.Context, tx Tx, userID primitive.ObjectID, paymentID string) (*models.Order, error) {
	existing, err := tx.FindOrderByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, errors.Wrap(err, "find order by payment")
	}
	if existing == nil {
		return nil, nil
	}
	if existing.UserID != userID {
		return nil, ErrPaymentClaimed
	}
	return existing, nil
}

func (s *Service) replay(ctx context.Context, userID primitive.ObjectID, paymentID string) (*Result, error) {
	var existing *models.Order
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		existing, err = s.existingPayment(ctx, tx, userID, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.Wrap(ErrDuplicatePaymentID, "order for payment vanished")
	}
	return &Result{Order: existing, Replayed: true}, nil
}

func (s *Service) announce(order *models.Order) {
	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID.Hex())
	}

	s.lg.Info("Order placed",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", order.UserID.Hex()),
		zap.String("status", string(order.Status)),
		zap.Float64("total", order.TotalAmount),
		zap.Int("items", len(order.Items)),
	)

	if s.notifier != nil {
		s.notifier.PublishStockUpdated(ids)
	}
}

// loadProducts re-reads every product inside the transaction and fails before
// any write if one is missing or short.
func loadProducts(ctx context.Context, tx Tx, items []LineItem) ([]*models.Product, error) {
	products := make([]*models.Product, len(items))
	for i, item := range items {
		product, err := tx.FindProduct(ctx, item.ProductID)
		if err != nil {
			return nil, errors.Wrap(err, "load product")
		}
		if product == nil {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if product.Stock < item.Quantity {
			return nil, &InsufficientStockError{
				ProductID: item.ProductID,
				Name:      product.Name,
				Available: product.Stock,
				Requested: item.Quantity,
			}
		}
		products[i] = product
	}
	return products, nil
}

func priceItems(items []LineItem, products []*models.Product) ([]models.OrderItem, float64) {
	orderItems := make([]models.OrderItem, len(items))
	lines := make([]pricing.Line, len(items))
	for i, item := range items {
		unit := products[i].UnitPrice()
		orderItems[i] = models.OrderItem{
			ProductID:       item.ProductID,
			Name:            products[i].Name,
			Quantity:        item.Quantity,
			Price:           products[i].Price,
			DiscountedPrice: unit,
		}
		lines[i] = pricing.Line{UnitPrice: unit, Quantity: item.Quantity}
	}
	return orderItems, pricing.Total(lines)
}

// normalizeItems rejects empty lists and non-positive quantities and merges
// repeated products, keeping first-seen order.
func normalizeItems(items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	merged := make([]LineItem, 0, len(items))
	index := make(map[primitive.ObjectID]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

func cartLines(cart *models.Cart) []LineItem {
	lines := make([]LineItem, len(cart.Items))
	for i, item := range cart.Items {
		lines[i] = LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}
