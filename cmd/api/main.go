package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/api"
	"github.com/example/digital-storefront/internal/auth"
	"github.com/example/digital-storefront/internal/command"
	"github.com/example/digital-storefront/internal/config"
	"github.com/example/digital-storefront/internal/domain/catalog"
	"github.com/example/digital-storefront/internal/domain/order"
	"github.com/example/digital-storefront/internal/domain/payment"
	"github.com/example/digital-storefront/internal/domain/pricing"
	"github.com/example/digital-storefront/internal/gateway"
	"github.com/example/digital-storefront/internal/infrastructure/cache"
	"github.com/example/digital-storefront/internal/infrastructure/kafka"
	"github.com/example/digital-storefront/internal/infrastructure/store"
	"github.com/example/digital-storefront/internal/logging"
	"github.com/example/digital-storefront/internal/query"
	"github.com/example/digital-storefront/internal/support"
	"github.com/example/digital-storefront/internal/workspace"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if len(os.Args) > 2 && os.Args[1] == "hash-password" {
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	products, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}
	methods := pricing.DefaultMethods()
	if cfg.PaymentMethodsFile != "" {
		if methods, err = pricing.LoadMethodsFile(cfg.PaymentMethodsFile); err != nil {
			return err
		}
	}

	orders, closeOrders, err := openOrderStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeOrders()

	var publisher order.Publisher
	var tickets support.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher, tickets = producer, producer
		logger.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	} else {
		logger.Warn("KAFKA_BROKERS not set, notifications disabled")
	}

	var carts cache.CartCache = cache.NewMemoryCache()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		carts = cache.NewRedisCache(client)
		logger.Info("carts cached in redis", zap.String("addr", cfg.RedisAddr))
	}

	paymentGateway, callbacks, err := openGateway(cfg)
	if err != nil {
		return err
	}

	var verifier auth.IDTokenVerifier
	if cfg.FirebaseProjectID != "" {
		fb, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return err
		}
		verifier = fb
	}

	registry := workspace.NewRegistry(workspace.Deps{
		Catalog:      products,
		Methods:      methods,
		Gateway:      paymentGateway,
		Orders:       orders,
		Publisher:    publisher,
		Cache:        carts,
		Logger:       logger,
		PaymentTTL:   cfg.PaymentTTL,
		PollInterval: cfg.PaymentPollInterval,
	})
	defer registry.Shutdown()

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	cmdHandler := command.NewHandler(registry, products, support.NewService(tickets, logger))
	queryHandler := query.NewHandler(registry, products, methods, orders)

	var paymentHandlers *api.PaymentHandlers
	if callbacks != nil {
		paymentHandlers = api.NewPaymentHandlers(cmdHandler, callbacks, logger)
	}
	router := api.NewRouter(api.RouterConfig{
		Handlers:      api.NewHandlers(cmdHandler, queryHandler, logger),
		Auth:          api.NewAuthHandlers(jwtService, cfg.AdminEmail, cfg.AdminPasswordHash, logger),
		Payments:      paymentHandlers,
		Authenticator: auth.NewAuthenticator(jwtService, verifier),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("gateway", cfg.Gateway.Kind),
			zap.String("order_store", cfg.OrderStore),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadCatalog(path string) (*catalog.Service, error) {
	if path == "" {
		return catalog.NewDefaultService()
	}
	products := catalog.NewService()
	if err := products.LoadFile(path); err != nil {
		return nil, err
	}
	return products, nil
}

func openOrderStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (order.Repository, func(), error) {
	switch cfg.OrderStore {
	case "postgres":
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("orders stored in postgres")
		return store.NewPostgresOrderRepository(db), func() { db.Close() }, nil
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		logger.Info("orders stored in dynamodb", zap.String("table", cfg.DynamoOrdersTable))
		return store.NewDynamoOrderRepository(dynamodb.NewFromConfig(awsCfg), cfg.DynamoOrdersTable), func() {}, nil
	default:
		logger.Warn("orders kept in memory only")
		return store.NewMemoryOrderRepository(), func() {}, nil
	}
}

// openGateway returns the payment gateway and, for gateways that push status
// callbacks, the parser that verifies them.
func openGateway(cfg *config.Config) (payment.Gateway, api.CallbackParser, error) {
	if cfg.Gateway.Kind == "stripe" {
		g, err := gateway.NewStripeGateway(gateway.StripeConfig{
			APIKey:     cfg.Stripe.APIKey,
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return g, nil, nil
	}

	client, err := gateway.NewClient(gateway.ClientConfig{
		BaseURL:      cfg.Gateway.BaseURL,
		APIKey:       cfg.Gateway.APIKey,
		PrivateKey:   cfg.Gateway.PrivateKey,
		MerchantCode: cfg.Gateway.MerchantCode,
		CallbackURL:  cfg.Gateway.CallbackURL,
		ReturnURL:    cfg.Gateway.ReturnURL,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}
