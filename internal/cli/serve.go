package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/database"
	"github.com/flicky/storefront-api/internal/handler"
	"github.com/flicky/storefront-api/internal/repository"
	"github.com/flicky/storefront-api/internal/service"
	"github.com/flicky/storefront-api/internal/worker"
)

const idempotencyTTL = 24 * time.Hour

var runMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the order-event worker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&runMigrations, "migrate", false, "Apply the database schema before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// PostgreSQL
	dbPool, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	log.Info("connected to PostgreSQL")

	if runMigrations {
		if err := database.Migrate(ctx, dbPool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema up to date")
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	log.Info("connected to Redis")

	// RabbitMQ: one channel for consuming, one for publishing
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	defer amqpConn.Close()

	consumeCh, err := amqpConn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	defer consumeCh.Close()

	if err := worker.SetupRabbitMQ(consumeCh); err != nil {
		return fmt.Errorf("setup RabbitMQ: %w", err)
	}

	publishCh, err := amqpConn.Channel()
	if err != nil {
		return fmt.Errorf("open publish channel: %w", err)
	}
	defer publishCh.Close()
	log.Info("connected to RabbitMQ")

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	roleRepo := repository.NewRoleRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	transactor := repository.NewTransactor(dbPool)

	productCache := cache.NewProductCache(redisClient, cfg.Cache.ProductTTL)

	// Services
	access := service.NewAccessControl(roleRepo, userRepo)
	ledger := service.NewInventoryLedger(productRepo)
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, access, productCache)
	orderSvc := service.NewOrderService(
		orderRepo, userRepo, transactor, ledger, access,
		worker.NewPublisher(publishCh), productCache, cfg.Orders.MaxItems, log,
	)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.Handlers{
		Health: handler.NewHealthHandler(
			handler.PostgresCheck(dbPool),
			handler.RedisCheck(redisClient),
			handler.RabbitMQCheck(amqpConn),
		),
		Auth:    handler.NewAuthHandler(authSvc),
		Product: handler.NewProductHandler(productSvc),
		Order:   handler.NewOrderHandler(orderSvc),
		Role:    handler.NewRoleHandler(access),
	}, cfg.JWT.Secret)

	// Worker
	orderWorker := worker.NewOrderWorker(
		consumeCh,
		cache.NewIdempotency(redisClient, idempotencyTTL),
		productCache,
		log,
	)
	if err := orderWorker.Start(ctx); err != nil {
		return fmt.Errorf("start order worker: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serverErr:
		orderWorker.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	orderWorker.Stop()
	log.Info("server stopped")
	return nil
}
