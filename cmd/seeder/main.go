//cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/unclebandit/smsleopard-agent/internal/config"
	"github.com/unclebandit/smsleopard-agent/internal/db"
	"github.com/unclebandit/smsleopard-agent/internal/repository"
	"github.com/unclebandit/smsleopard-agent/internal/service"
)

func main() {
	cfg, err := config.NewLoadedConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		slog.Error("failed to migrate", "error", err)
		os.Exit(1)
	}

	seedFiles := []string{
		"seed/campaigns.sql",
		"seed/customers.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			slog.Error("failed to read seed file", "file", file, "error", err)
			os.Exit(1)
		}

		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			slog.Error("failed to execute seed file", "file", file, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	// Start each automated conversation with its campaign's opening message.
	svc := &service.ConversationService{
		CampaignRepo: &repository.CampaignRepository{DB: conn},
		CustomerRepo: &repository.CustomerRepository{DB: conn},
		MessageRepo:  &repository.ChatMessageRepository{DB: conn},
	}
	customers, err := svc.ListCustomers(ctx, "automated")
	if err != nil {
		slog.Error("failed to list customers", "error", err)
		os.Exit(1)
	}
	for _, c := range customers {
		if c.CampaignID() == "" {
			continue
		}
		history, err := svc.Conversation(ctx, c.PhoneNumber, c.CampaignID())
		if err != nil || len(history) > 0 {
			continue
		}
		if _, err := svc.EnrollCustomer(ctx, service.EnrollRequest{PhoneNumber: c.PhoneNumber, CampaignID: c.CampaignID()}); err != nil {
			slog.Error("failed to send campaign opener", "campaign_id", c.CampaignID(), "error", err)
			os.Exit(1)
		}
	}

	fmt.Println("Database seeding completed successfully!")
}
