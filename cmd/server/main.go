package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"simtrader-backend/internal/config"
	httpdelivery "simtrader-backend/internal/delivery/http"
	"simtrader-backend/internal/delivery/websocket"
	"simtrader-backend/internal/domain"
	"simtrader-backend/internal/infrastructure/binance"
	"simtrader-backend/internal/infrastructure/db"
	"simtrader-backend/internal/infrastructure/fcm"
	"simtrader-backend/internal/infrastructure/telegram"
	"simtrader-backend/internal/repository"
	"simtrader-backend/internal/usecase"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Persistence: Postgres when configured, in-memory otherwise.
	var store domain.Store
	var screenerRepo domain.ScreenerRepository
	if cfg.Database.URL != "" {
		pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolConfigFromEnv())
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
		store = repository.NewPostgresStore(pool)
		screenerRepo = repository.NewPostgresScreenerRepository(pool)
		log.Println("Using Postgres persistence")
	} else {
		store = repository.NewMemoryStore()
		screenerRepo = repository.NewInMemoryScreenerRepository()
		log.Println("DATABASE_URL not set, using in-memory persistence")
	}

	// 2. Market data and notification channels.
	client := binance.NewClient(cfg.Binance.BaseURL)
	market := binance.NewMarketData(client)

	fcmClient, err := fcm.NewClient()
	if err != nil {
		log.Fatalf("init FCM: %v", err)
	}
	tokenRepo := repository.NewTokenRepository()
	tg := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Enabled)
	notifier := usecase.NewNotificationService(fcmClient, tokenRepo, tg)

	// 3. Usecases.
	trading := usecase.NewSimTradingService(store, market, notifier)
	auto := usecase.NewAutoTradeService(store, market, screenerRepo, trading, notifier)
	screener := usecase.NewScreenerService(screenerRepo, client, notifier, cfg.Screener)

	// 4. Background loops.
	go screener.Run(ctx, cfg.ScreenerInterval())
	go auto.Run(ctx, cfg.AutoTradeInterval())

	// 5. Delivery.
	accountHandler := httpdelivery.NewAccountHandler(trading)
	positionHandler := httpdelivery.NewPositionHandler(trading, auto)
	screeningHandler := httpdelivery.NewScreeningHandler(screenerRepo)
	tokenHandler := httpdelivery.NewTokenHandler(tokenRepo)
	wsHandler := websocket.NewHandler(screenerRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sim/accounts", accountHandler.Accounts)
	mux.HandleFunc("/api/sim/account", accountHandler.Account)
	mux.HandleFunc("/api/sim/account/summary", accountHandler.Summary)
	mux.HandleFunc("/api/sim/account/config", accountHandler.UpdateConfig)
	mux.HandleFunc("/api/sim/account/autotrading", accountHandler.SetAutoTrading)
	mux.HandleFunc("/api/sim/positions", positionHandler.Open)
	mux.HandleFunc("/api/sim/positions/history", positionHandler.History)
	mux.HandleFunc("/api/sim/position/close", positionHandler.Close)
	mux.HandleFunc("/api/sim/trades", positionHandler.Trades)
	mux.HandleFunc("/api/sim/logs", positionHandler.Logs)
	mux.HandleFunc("/api/sim/scan", positionHandler.Scan)
	mux.HandleFunc("/api/screening", screeningHandler.Latest)
	mux.HandleFunc("/api/tokens/register", tokenHandler.Register)
	mux.HandleFunc("/api/tokens/unregister", tokenHandler.Unregister)
	mux.HandleFunc("/ws", wsHandler.Handle)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("Server executing on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
