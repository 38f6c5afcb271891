package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/voucher-flash-sale/internal/admission"
	"github.com/iliyamo/voucher-flash-sale/internal/config"
	"github.com/iliyamo/voucher-flash-sale/internal/database"
	"github.com/iliyamo/voucher-flash-sale/internal/handler"
	"github.com/iliyamo/voucher-flash-sale/internal/idgen"
	"github.com/iliyamo/voucher-flash-sale/internal/lock"
	"github.com/iliyamo/voucher-flash-sale/internal/middleware"
	"github.com/iliyamo/voucher-flash-sale/internal/queue"
	"github.com/iliyamo/voucher-flash-sale/internal/repository"
	"github.com/iliyamo/voucher-flash-sale/internal/router"
	"github.com/iliyamo/voucher-flash-sale/internal/service"
	queue_publisher "github.com/iliyamo/voucher-flash-sale/internal/service/queue_publisher"
	"github.com/iliyamo/voucher-flash-sale/internal/stream"
	"github.com/iliyamo/voucher-flash-sale/internal/worker"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	// Repositories over the system of record.
	users := repository.NewUserRepo(db)
	vouchers := repository.NewVoucherRepo(db)
	orders := repository.NewOrderRepo(db)
	store := repository.NewFulfillmentStore(db, vouchers, orders)

	// The admission pipeline: id generator, atomic gate, hand-off log,
	// per-user lock.
	gate := admission.NewGate(rdb, cfg.StreamKey)
	ids := idgen.New(rdb)
	olog := stream.NewRedisLog(rdb, cfg.StreamKey, cfg.StreamGroup, cfg.StreamConsumer)
	locks := lock.New(rdb)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := olog.EnsureGroup(ctx); err != nil {
		log.Fatalf("stream: %v", err)
	}

	// Fulfillment worker: consumes accepted entries and materializes
	// them in MySQL.  Committed orders are announced on RabbitMQ.
	w := &worker.Worker{
		Log:     olog,
		Store:   store,
		Locks:   locks,
		LockTTL: cfg.LockTTL,
		Block:   cfg.WorkerBlock,
		Notify: func(nctx context.Context, e stream.Entry) {
			_ = queue_publisher.PublishOrderFulfilled(nctx, queue.OrderFulfilledEvent{
				OrderID:     e.OrderID,
				VoucherID:   e.VoucherID,
				UserID:      e.UserID,
				EntryID:     e.ID,
				FulfilledAt: time.Now().UTC().Format(time.RFC3339),
			})
		},
	}
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		w.Run(ctx)
	}()

	// Audit consumer: tails order.fulfilled and appends to logs/orders.log.
	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("order-consumer: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users), cfg.JWTSecret)
	router.RegisterSale(e,
		handler.NewVoucherHandler(vouchers, gate),
		handler.NewOrderHandler(service.NewOrderService(vouchers, ids, gate), orders),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)

	go func() {
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shctx)
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	// Let the worker finish its in-flight attempt before exiting so no
	// entry is left locked but unacknowledged.
	<-workerDone
}
