package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/AyishaBeevi/lyvore-backend/internal/checkout"
	"github.com/AyishaBeevi/lyvore-backend/internal/config"
	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/handlers"
	"github.com/AyishaBeevi/lyvore-backend/internal/middleware"
	"github.com/AyishaBeevi/lyvore-backend/internal/notify"
	"github.com/AyishaBeevi/lyvore-backend/internal/payment"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lyvore: %+v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse LOG_LEVEL %q", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lg, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return errors.Wrap(err, "mongo")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			lg.Warn("Mongo disconnect failed", zap.Error(err))
		}
	}()

	db := client.Database(cfg.DBName)
	lg.Info("MongoDB connected", zap.String("db", db.Name()))

	if err := database.EnsureIndexes(ctx, db, lg.Named("indexes")); err != nil {
		return errors.Wrap(err, "indexes")
	}

	hub := notify.NewHub(16, lg)
	defer hub.Close()

	if !cfg.PaymentsEnabled() {
		lg.Warn("Payment gateway credentials missing, gateway checkout disabled")
	}
	verifier := payment.NewVerifier(cfg.RazorpayKeySecret)
	gateway := payment.NewClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, lg)
	svc := checkout.NewService(database.NewCheckoutStore(db), verifier, hub, lg)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		middleware.RequestLogger(lg.Named("http")),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSOrigins),
	)
	registerRoutes(r, cfg, db, svc, gateway, hub)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		lg.Info("Shutting down")

		// Ends WebSocket streams so Shutdown does not wait on them.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	db *mongo.Database,
	svc *checkout.Service,
	gateway handlers.GatewayOrders,
	hub *notify.Hub,
) {
	userAuth := middleware.UserAuth(cfg.JWTSecret)
	adminAuth := middleware.AdminAuth(cfg.JWTSecret)

	r.GET("/healthz", handlers.Health(db))
	r.GET("/ws", notify.WebSocketHandler(hub, cfg.CORSOrigins))

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", handlers.Register(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL))
		auth.POST("/login", handlers.Login(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL))
		auth.GET("/me", userAuth, handlers.GetMe(db))
		auth.POST("/refresh", handlers.Refresh(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL))
		auth.POST("/logout", handlers.Logout(db))
	}

	api.GET("/categories", handlers.GetCategories(db))

	products := api.Group("/products")
	{
		products.GET("", handlers.GetProducts(db))
		products.GET("/stats", adminAuth, handlers.GetCatalogStats(db))
		products.GET("/stats/:id", adminAuth, handlers.GetProductStats(db))
		products.GET("/id/:id", handlers.GetProductByID(db))
		products.GET("/:slug", handlers.GetProductBySlug(db))
		products.POST("", adminAuth, handlers.CreateProduct(db))
		products.PUT("/:id", adminAuth, handlers.UpdateProduct(db))
		products.DELETE("/:id", adminAuth, handlers.DeleteProduct(db))
	}

	cart := api.Group("/cart", userAuth)
	{
		cart.GET("", handlers.GetCart(db))
		cart.POST("/add", handlers.AddToCart(db))
		cart.POST("/remove", handlers.RemoveFromCart(db))
		cart.DELETE("/clear", handlers.ClearCart(db))
	}

	orders := api.Group("/orders", userAuth)
	{
		orders.POST("/checkout", handlers.Checkout(svc))
		orders.GET("", adminAuth, handlers.GetOrders(db))
		orders.GET("/user/:userId", handlers.GetUserOrders(db))
		orders.GET("/:id", handlers.GetOrder(db))
		orders.PUT("/:id/status", adminAuth, handlers.UpdateOrderStatus(db))
		orders.DELETE("/:id", adminAuth, handlers.DeleteOrder(db))
	}

	payments := api.Group("/payments", userAuth)
	{
		payments.POST("/create-order", handlers.CreatePaymentOrder(svc, gateway, cfg.PaymentCurrency))
		payments.POST("/verify", handlers.VerifyPayment(svc))
	}

	api.GET("/admin/payments", adminAuth, handlers.GetPayments(db))

	users := api.Group("/users")
	{
		users.PUT("/me", userAuth, handlers.UpdateMe(db))
		users.GET("", adminAuth, handlers.GetUsers(db))
		users.GET("/:id", adminAuth, handlers.GetUser(db))
		users.DELETE("/:id", adminAuth, handlers.DeleteUser(db))
	}

	contact := api.Group("/contact")
	{
		contact.POST("", handlers.CreateContact(db))
		contact.GET("", adminAuth, handlers.GetContacts(db))
	}
}
