package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"barter/internal/api"
	"barter/internal/game"
	"barter/internal/store"
	"barter/internal/tick"
	"barter/internal/trade"
	"barter/web"
)

func main() {
	port := flag.String("port", "8088", "server port")
	dbPath := flag.String("db", "barter.db", "SQLite database path")
	patternPath := flag.String("pattern", "", "TOML trade layout (empty = built-in layout)")
	interval := flag.Duration("tick", tick.DefaultInterval, "tick interval")
	countdown := flag.Int("countdown", 3, "countdown steps before a trade commits")
	corsOrigins := flag.String("cors", "", "comma-separated allowed CORS origins (empty = allow all for dev)")
	flag.Parse()

	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	cfg := game.DefaultConfig()
	cfg.Interval, cfg.Trade.TicksPerStep = stepTicks(*interval)
	cfg.Trade.CountdownSteps = *countdown
	if *patternPath != "" {
		p, err := trade.LoadPattern(*patternPath)
		if err != nil {
			log.Fatalf("Failed to load trade layout: %v", err)
		}
		cfg.Pattern = p
		log.Printf("Using trade layout %q from %s", p.Name, *patternPath)
	}

	svc, err := game.NewService(st, cfg)
	if err != nil {
		log.Fatalf("Failed to create game service: %v", err)
	}

	staticFS, err := web.GetDistFS()
	if err != nil {
		log.Fatalf("Failed to load embedded frontend: %v", err)
	}

	server := api.NewServer(svc, st, staticFS)

	if *corsOrigins != "" {
		origins := strings.Split(*corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		server.SetCORSOrigins(origins)
		log.Printf("CORS restricted to: %v", origins)
	}

	ctx, stopService := context.WithCancel(context.Background())
	serviceDone := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(serviceDone)
	}()

	addr := ":" + *port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("Starting barter server on http://localhost%s", addr)
		log.Printf("Database: %s", *dbPath)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")

	// Running trades are cancelled while clients are still connected to hear why
	stopService()
	<-serviceDone
	log.Println("Game service stopped")

	server.Shutdown()
	log.Println("Connections closed")

	if err := st.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}
	log.Println("Server shutdown complete")
}

// stepTicks returns the tick interval to run at and the number of ticks in
// one countdown step, which lasts a second regardless of the tick rate
func stepTicks(interval time.Duration) (time.Duration, int) {
	if interval <= 0 {
		interval = tick.DefaultInterval
	}
	return interval, max(1, int(time.Second/interval))
}
