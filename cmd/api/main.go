package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/finpro/toko-orders/internal/cart"
	"github.com/finpro/toko-orders/internal/checkout"
	"github.com/finpro/toko-orders/internal/config"
	"github.com/finpro/toko-orders/internal/httpx"
	kafkax "github.com/finpro/toko-orders/internal/kafka"
	"github.com/finpro/toko-orders/internal/lifecycle"
	"github.com/finpro/toko-orders/internal/postgres"
	"github.com/finpro/toko-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (satu writer untuk semua topic lifecycle)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	// Repos
	cartRepo := &postgres.CartRepo{DB: db}
	productRepo := &postgres.ProductRepo{DB: db}
	shopRepo := &postgres.ShopRepo{DB: db}
	orderRepo := &postgres.OrderRepo{DB: db}

	// Services
	cartSvc := &cart.Service{Carts: cartRepo, Products: productRepo, Shops: shopRepo}
	checkoutSvc := &checkout.Service{
		Orders:        orderRepo,
		Proofs:        &checkout.DiskStore{Dir: cfg.ProofDir, BaseURL: cfg.ProofBaseURL},
		Redis:         rdb,
		Producer:      prod,
		DeliveryFee:   cfg.DeliveryFee,
		ProofMaxBytes: cfg.ProofMaxBytes,
		ServiceName:   cfg.ServiceName,
	}
	lifecycleSvc := &lifecycle.Service{
		Orders:      orderRepo,
		Shops:       shopRepo,
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName,
	}

	// Router & handlers
	router := httpx.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(httpx.Identity)
		(&httpx.CartHandler{Svc: cartSvc}).Register(r)
		(&httpx.OrdersHandler{
			Checkout:  checkoutSvc,
			Lifecycle: lifecycleSvc,
			Orders:    orderRepo,
			Shops:     shopRepo,
			Redis:     rdb,
		}).Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // tutup inbox -> flush & close writer
	prod.WaitClosed()
}
