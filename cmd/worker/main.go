package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classtrack/internal/config"
	"classtrack/internal/queue"
	"classtrack/internal/session"
	"classtrack/internal/store"
)

// Worker relays gateway events to the cross-instance redis channel and
// sweeps expired day-scoped ad-hoc sessions.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.ScanQueueKey)
	}

	sessRepo := session.NewRepository(db.Client)

	// Ad-hoc sessions are valid only for the day they were opened.
	go func() {
		ticker := time.NewTicker(cfg.SessionSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				today := time.Now().Format("2006-01-02")
				removed, err := sessRepo.DeleteBefore(ctx, today)
				if err != nil {
					log.Printf("session sweep failed: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("session sweep removed %d expired sessions", removed)
				}
			}
		}
	}()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Type {
		case "scan_result", "device_status":
		default:
			continue
		}

		if err := redisClient.Client.Publish(ctx, cfg.ResultChannel, []byte(msg.Body)).Err(); err != nil {
			log.Printf("result publish failed: %v", err)
		}
	}

	log.Println("worker stopped")
}
