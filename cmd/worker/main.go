package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"meetspot-api/internal/api"
	"meetspot-api/internal/config"
	"meetspot-api/internal/crypto"
	"meetspot-api/internal/notify"
	"meetspot-api/internal/repository"
	"meetspot-api/internal/worker"
)

func main() {
	cfg := config.Load()

	api.SetupGlobalHandler("meetspot-worker")

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	encryptionKey, err := crypto.DeriveKey(cfg.EncryptionSecret)
	if err != nil {
		log.Fatalf("Failed to derive encryption key: %v", err)
	}

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	var notifier notify.Notifier
	if cfg.MailgunAPIKey != "" && cfg.MailgunDomain != "" {
		notifier = notify.NewMailgunNotifier(cfg.MailgunDomain, cfg.MailgunAPIKey)
		log.Println("Mailgun configured, sending real email.")
	} else {
		notifier = notify.LogNotifier{}
		log.Println("Mailgun not configured, notifications will be logged only.")
	}

	meetingRepo := repository.NewPostgresMeetingRequestRepository(db)

	w := worker.New(nc, meetingRepo, notifier, encryptionKey, cfg.FrontendURL)
	if err := w.Start(); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go w.RunExpirySweep(ctx)

	log.Println("Notification worker started, waiting for events...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	log.Println("Shutting down notification worker...")
}
