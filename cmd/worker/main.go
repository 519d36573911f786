package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"punchclock/internal/config"
	"punchclock/internal/notify"
	"punchclock/internal/punch"
	"punchclock/internal/queue"
	"punchclock/internal/store"
	"punchclock/internal/summary"
)

// Worker consumes punch events and pushes confirmations to the portal's
// notification service.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		q = queue.NewRedisQueue(redisClient.Client, "punchclock:punches")
	}

	repo := punch.NewRepository(db.Client)
	notifier := notify.New(cfg.NotifyServiceURL, cfg.NotifySkip)

	if !cfg.NotifySkip {
		if err := notifier.Health(ctx); err != nil {
			log.Printf("WARNING: notification service not available: %v", err)
			log.Println("worker will retry delivery when events arrive")
		} else {
			log.Println("notification service connected")
		}
	}

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for punch events...")
	for evt := range events {
		rec, err := repo.Get(ctx, evt.RecordID)
		if err != nil {
			log.Printf("fetch record %s failed: %v", evt.RecordID, err)
			continue
		}

		msg := notify.Message{
			UserID: rec.UserID,
			Title:  "Attendance recorded",
			Body:   confirmationBody(evt.Kind, rec),
		}
		if err := notifier.Send(ctx, msg); err != nil {
			log.Printf("notify failed for record %s: %v", evt.RecordID, err)
			continue
		}
		log.Printf("record %s (%s) notified", evt.RecordID, evt.Kind)

		time.Sleep(10 * time.Millisecond) // Small delay between deliveries
	}

	log.Println("worker stopped")
}

func confirmationBody(kind string, rec punch.Record) string {
	if kind == string(punch.KindIn) || rec.LogoutAt == nil {
		return fmt.Sprintf("Punched in at %s.", rec.LoginAt.Format("15:04"))
	}
	worked := "0m"
	if rec.Minutes != nil {
		worked = summary.FormatMinutes(*rec.Minutes)
	}
	return fmt.Sprintf("Punched out at %s. Worked %s today so far.", rec.LogoutAt.Format("15:04"), worked)
}
