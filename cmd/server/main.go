package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brokerage/internal/config"
	"brokerage/internal/db"
	"brokerage/internal/handlers"
	"brokerage/internal/quotes"
	"brokerage/internal/services"
	"brokerage/internal/store"
	"brokerage/internal/websocket"

	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	trades := store.NewTradeStore(database)
	sessions := store.NewSessionStore(database)
	quoteCache := store.NewQuoteStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	quoteClient := quotes.NewClient(cfg.QuoteAPIURL)
	quoteService := quotes.NewService(quoteClient, quoteCache, cfg.QuoteCacheTTL)
	refresher := quotes.NewRefresher(quoteClient, quoteCache)
	if err := refresher.Start(); err != nil {
		log.Fatalf("failed to start quote refresher: %v", err)
	}
	defer refresher.Stop()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := sessions.DeleteExpired(ctx)
		if err != nil {
			log.Printf("session cleanup failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("removed %d expired sessions", removed)
		}
	}); err != nil {
		log.Fatalf("failed to schedule session cleanup: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	service := services.NewTradingService(txRunner, users, trades, quoteService, audit, hub)

	handler := handlers.New(txRunner, cfg, users, trades, sessions, audit, service, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("brokerage API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
