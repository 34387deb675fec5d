package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-order-lifecycle/internal/address"
	"github.com/example/ec-order-lifecycle/internal/api"
	"github.com/example/ec-order-lifecycle/internal/auth"
	"github.com/example/ec-order-lifecycle/internal/catalog"
	"github.com/example/ec-order-lifecycle/internal/checkout"
	"github.com/example/ec-order-lifecycle/internal/config"
	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/kafka"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/metrics"
	"github.com/example/ec-order-lifecycle/internal/notification"
	"github.com/example/ec-order-lifecycle/internal/payment"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] EC Shop - Order Lifecycle API")
	log.Println("[API] ========================================")
	log.Printf("[API] Event store: %s", cfg.EventStore)
	log.Printf("[API] Kafka: %v (topic %s)", cfg.KafkaBrokers, cfg.KafkaTopic)
	log.Printf("[API] Staff notified: %d", len(cfg.StaffUserIDs))

	// Stored events go to Kafka for the email notifier when brokers are set
	var publisher store.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	}

	stores, err := openStores(ctx, cfg, publisher)
	if err != nil {
		log.Fatalf("[API] Failed to open stores: %v", err)
	}
	defer stores.close()
	eventStore := stores.events

	notificationStore, closeNotifications, err := openNotificationStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[API] Failed to open notification store: %v", err)
	}
	defer closeNotifications()

	m := metrics.New("ec-order-api")

	// Initialize domain services
	notificationSvc := notification.NewService(notificationStore)
	dispatcher := notification.NewDispatcher(notificationSvc, cfg.StaffUserIDs, m)
	cartSvc := cart.NewService(eventStore)
	orderSvc := order.NewService(eventStore, dispatcher)
	converter := checkout.NewConverter(eventStore, cartSvc, orderSvc, stores.products, stores.addresses, stores.proofs, dispatcher, m, checkout.Config{
		ShippingFee:        cfg.ShippingFee,
		LowStockThreshold:  cfg.LowStockThreshold,
		MaxScreenshotBytes: cfg.MaxScreenshotBytes,
	})

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, 15*time.Minute)

	handlers := api.NewHandlers(cartSvc, orderSvc, converter, notificationSvc, stores.products, stores.proofs, cfg.MaxScreenshotBytes)
	router := api.NewRouter(api.RouterConfig{
		Handlers:       handlers,
		JWTService:     jwtService,
		Metrics:        m,
		RequestTimeout: cfg.RequestTimeout,
		TracingService: "ec-order-api",
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout + 5*time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[API] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Graceful shutdown failed: %v", err)
	}
}

// storeSet groups the persistence the API runs on
type storeSet struct {
	events    store.EventStoreInterface
	products  catalog.Catalog
	addresses address.Book
	proofs    payment.ProofStore
	close     func()
}

// openStores picks the event store backend. Outside memory mode the catalog,
// addresses and payment screenshots live in PostgreSQL.
func openStores(ctx context.Context, cfg *config.Config, publisher store.Publisher) (*storeSet, error) {
	if cfg.EventStore == config.StoreMemory {
		log.Println("[API] Using in-memory event store")
		return &storeSet{
			events:    store.NewMemoryEventStore(publisher),
			products:  catalog.NewMemoryCatalog(),
			addresses: address.NewMemoryBook(),
			proofs:    payment.NewMemoryProofStore(),
			close:     func() {},
		}, nil
	}

	db, err := connectPostgres(cfg)
	if err != nil {
		return nil, err
	}
	closeDB := func() { db.Close() }

	var eventStore store.EventStoreInterface
	switch cfg.EventStore {
	case config.StoreDynamoDB:
		client, err := store.ConnectDynamoDB(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			closeDB()
			return nil, err
		}
		eventStore = store.NewDynamoEventStore(client, cfg.DynamoTable, cfg.DynamoSnapshot, publisher)
		log.Printf("[API] Using DynamoDB event store (tables %s, %s)", cfg.DynamoTable, cfg.DynamoSnapshot)
	default:
		eventStore = store.NewPostgresEventStore(db, publisher)
		log.Println("[API] Using PostgreSQL event store")
	}

	return &storeSet{
		events:    eventStore,
		products:  catalog.NewPostgresCatalog(db),
		addresses: address.NewPostgresBook(db),
		proofs:    payment.NewPostgresProofStore(db),
		close:     closeDB,
	}, nil
}

func connectPostgres(cfg *config.Config) (*sql.DB, error) {
	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Println("[API] Connected to PostgreSQL")

	if cfg.RunMigrations {
		if err := store.RunMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
		log.Println("[API] Migrations applied")
	}
	return db, nil
}

// openNotificationStore uses MongoDB when configured and puts a Redis cache
// for unread counts in front of it when REDIS_ADDR is set
func openNotificationStore(ctx context.Context, cfg *config.Config) (notification.Store, func(), error) {
	var (
		s       notification.Store = notification.NewMemoryStore()
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.MongoURI != "" {
		db, err := notification.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.Printf("[API] Failed to disconnect MongoDB: %v", err)
			}
		})

		mongoStore := notification.NewMongoStore(db)
		if err := mongoStore.CreateIndexes(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		s = mongoStore
		log.Printf("[API] Notifications stored in MongoDB (%s)", cfg.MongoDatabase)
	} else {
		log.Println("[API] Notifications stored in memory")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Close() })
		s = notification.NewCachedStore(s, client, cfg.UnreadTTL)
		log.Printf("[API] Unread counts cached in Redis (%s, ttl %s)", cfg.RedisAddr, cfg.UnreadTTL)
	}

	return s, closeAll, nil
}
