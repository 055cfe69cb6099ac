// Package checkouttest provides an in-memory checkout.Store for tests.
package checkouttest

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AyishaBeevi/lyvore-backend/internal/checkout"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

// Store serializes transactions behind one mutex. Every transaction works on
// a private copy of the data that replaces the committed state only when the
// callback returns nil.
type Store struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
	carts    map[primitive.ObjectID]models.Cart
	orders   []models.Order
	payments []models.Payment

	// InsertPaymentErr, when set, fails every payment insert.
	InsertPaymentErr error
	// MissPaymentLookups makes the next n order-by-payment lookups report no
	// match, imitating a concurrent commit that the snapshot could not see.
	MissPaymentLookups int
	// ConcurrentSales holds units another buyer takes from a product between
	// the stock read and the decrement, inside the same transaction view.
	// The pre-check passes and only the conditional decrement sees the
	// shortage.
	ConcurrentSales map[primitive.ObjectID]int

	commits   int
	rollbacks int
}

var _ checkout.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products: make(map[primitive.ObjectID]models.Product),
		carts:    make(map[primitive.ObjectID]models.Cart),
	}
}

// AddProduct stores p, assigning an id when it has none.
func (s *Store) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products[p.ID] = p
	return p
}

func (s *Store) SetCart(userID primitive.ObjectID, items ...models.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[userID] = models.Cart{
		ID:     primitive.NewObjectID(),
		UserID: userID,
		Items:  append([]models.CartItem(nil), items...),
	}
}

// AddOrder stores an already committed order.
func (s *Store) AddOrder(o models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	s.orders = append(s.orders, o)
	return o
}

func (s *Store) Product(id primitive.ObjectID) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	return p, ok
}

func (s *Store) Cart(userID primitive.ObjectID) (models.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[userID]
	return cloneCart(c), ok
}

func (s *Store) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.Order(nil), s.orders...)
}

func (s *Store) Payments() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.Payment(nil), s.payments...)
}

// Commits returns how many transactions committed.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:    s,
		products: make(map[primitive.ObjectID]models.Product, len(s.products)),
		carts:    make(map[primitive.ObjectID]models.Cart, len(s.carts)),
		orders:   append([]models.Order(nil), s.orders...),
		payments: append([]models.Payment(nil), s.payments...),
	}
	for id, p := range s.products {
		tx.products[id] = p
	}
	for id, c := range s.carts {
		tx.carts[id] = cloneCart(c)
	}

	if err := fn(ctx, tx); err != nil {
		s.rollbacks++
		return err
	}

	s.products = tx.products
	s.carts = tx.carts
	s.orders = tx.orders
	s.payments = tx.payments
	s.commits++
	return nil
}

type memTx struct {
	store    *Store
	products map[primitive.ObjectID]models.Product
	carts    map[primitive.ObjectID]models.Cart
	orders   []models.Order
	payments []models.Payment
}

func (tx *memTx) FindProduct(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, ok := tx.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (tx *memTx) DecrementStock(_ context.Context, id primitive.ObjectID, quantity int) (bool, error) {
	p, ok := tx.products[id]
	if !ok {
		return false, nil
	}
	if sold := tx.store.ConcurrentSales[id]; sold > 0 {
		p.Stock -= sold
		tx.products[id] = p
	}
	if p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	p.Sales += quantity
	tx.products[id] = p
	return true, nil
}

func (tx *memTx) FindCart(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	c, ok := tx.carts[userID]
	if !ok {
		return nil, nil
	}
	c = cloneCart(c)
	return &c, nil
}

func (tx *memTx) ClearCart(_ context.Context, userID primitive.ObjectID) error {
	c, ok := tx.carts[userID]
	if !ok {
		return nil
	}
	c.Items = []models.CartItem{}
	tx.carts[userID] = c
	return nil
}

func (tx *memTx) FindOrderByPaymentID(_ context.Context, paymentID string) (*models.Order, error) {
	if tx.store.MissPaymentLookups > 0 {
		tx.store.MissPaymentLookups--
		return nil, nil
	}
	for _, o := range tx.orders {
		if o.PaymentID != "" && o.PaymentID == paymentID {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (tx *memTx) InsertOrder(_ context.Context, order *models.Order) error {
	if order.PaymentID != "" {
		for _, o := range tx.orders {
			if o.PaymentID == order.PaymentID {
				return checkout.ErrDuplicatePaymentID
			}
		}
	}
	order.ID = primitive.NewObjectID()
	tx.orders = append(tx.orders, *order)
	return nil
}

func (tx *memTx) InsertPayment(_ context.Context, payment *models.Payment) error {
	if tx.store.InsertPaymentErr != nil {
		return tx.store.InsertPaymentErr
	}
	if payment.GatewayOrderID != "" {
		for _, p := range tx.payments {
			if p.GatewayOrderID == payment.GatewayOrderID {
				return errors.Errorf("duplicate gateway order %q", payment.GatewayOrderID)
			}
		}
	}
	payment.ID = primitive.NewObjectID()
	tx.payments = append(tx.payments, *payment)
	return nil
}

func (tx *memTx) FindPaymentByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.Payment, error) {
	for _, p := range tx.payments {
		if p.GatewayOrderID != "" && p.GatewayOrderID == gatewayOrderID {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (tx *memTx) SettlePayment(_ context.Context, id, orderID primitive.ObjectID, gatewayPaymentID string, at time.Time) (bool, error) {
	for i, p := range tx.payments {
		if p.ID != id {
			continue
		}
		if p.Status != models.PaymentStatusPending {
			return false, nil
		}
		p.Status = models.PaymentStatusSuccess
		p.OrderID = orderID
		p.GatewayPaymentID = gatewayPaymentID
		p.PaymentDate = at
		tx.payments[i] = p
		return true, nil
	}
	return false, nil
}

func cloneCart(c models.Cart) models.Cart {
	c.Items = append([]models.CartItem(nil), c.Items...)
	return c
}
