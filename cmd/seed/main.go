// Seed loads master data and a starter template catalog into the Dunlin
// database. Run once against a fresh deployment.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/collectline/dunlin/internal/domain"
	"github.com/collectline/dunlin/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := domain.DefaultConfig()
	if os.Getenv("DUNLIN_TIER") == "pro" {
		cfg = domain.ProConfig()
	}
	if v := os.Getenv("DUNLIN_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := seedMasterData(ctx, repo); err != nil {
		slog.Error("failed to seed master data", "error", err)
		os.Exit(1)
	}

	if err := seedTemplates(ctx, repo); err != nil {
		slog.Error("failed to seed templates", "error", err)
		os.Exit(1)
	}

	slog.Info("seed complete")
}

func seedMasterData(ctx context.Context, repo domain.Repository) error {
	entries := []domain.MasterDataEntry{
		{Category: domain.CategoryBucket, Code: "X", Value: "Current", Sort: 1},
		{Category: domain.CategoryBucket, Code: "B1", Value: "1-30 DPD", Sort: 2},
		{Category: domain.CategoryBucket, Code: "B2", Value: "31-60 DPD", Sort: 3},
		{Category: domain.CategoryBucket, Code: "B3", Value: "61-90 DPD", Sort: 4},
		{Category: domain.CategoryBucket, Code: "B4", Value: "90+ DPD", Sort: 5},

		{Category: domain.CategoryState, Code: "MH", Value: "Maharashtra", Sort: 1},
		{Category: domain.CategoryState, Code: "KA", Value: "Karnataka", Sort: 2},
		{Category: domain.CategoryState, Code: "TN", Value: "Tamil Nadu", Sort: 3},
		{Category: domain.CategoryState, Code: "DL", Value: "Delhi", Sort: 4},
		{Category: domain.CategoryState, Code: "GJ", Value: "Gujarat", Sort: 5},

		{Category: domain.CategoryLanguage, Code: "en", Value: "English", Sort: 1},
		{Category: domain.CategoryLanguage, Code: "hi", Value: "Hindi", Sort: 2},
		{Category: domain.CategoryLanguage, Code: "mr", Value: "Marathi", Sort: 3},
		{Category: domain.CategoryLanguage, Code: "ta", Value: "Tamil", Sort: 4},

		{Category: domain.CategoryProductType, Code: "PL", Value: "Personal Loan", Sort: 1},
		{Category: domain.CategoryProductType, Code: "HL", Value: "Home Loan", Sort: 2},
		{Category: domain.CategoryProductType, Code: "AL", Value: "Auto Loan", Sort: 3},
		{Category: domain.CategoryProductType, Code: "CC", Value: "Credit Card", Sort: 4},

		{Category: domain.CategoryComparisonSign, Code: "GTE", Value: "Greater Than or Equal To", Sort: 1},
		{Category: domain.CategoryComparisonSign, Code: "GT", Value: "Greater Than", Sort: 2},
		{Category: domain.CategoryComparisonSign, Code: "LTE", Value: "Less Than or Equal To", Sort: 3},
		{Category: domain.CategoryComparisonSign, Code: "LT", Value: "Less Than", Sort: 4},
		{Category: domain.CategoryComparisonSign, Code: "EQ", Value: "Equal To", Sort: 5},
		{Category: domain.CategoryComparisonSign, Code: "RANGE", Value: "Between", Sort: 6},
	}

	for i := range entries {
		entries[i].IsActive = true
		if err := repo.SaveMasterDataEntry(ctx, &entries[i]); err != nil {
			return err
		}
	}

	slog.Info("master data seeded", "entries", len(entries))
	return nil
}

func seedTemplates(ctx context.Context, repo domain.Repository) error {
	now := time.Now().UTC()
	templates := []domain.MessageTemplate{
		{
			Channel:      domain.ChannelSMS,
			TemplateName: "payment-reminder-en",
			Language:     "en",
			Body:         "Dear {{name}}, your EMI of {{amount}} is overdue. Please pay at the earliest to avoid charges.",
			Variables:    []string{"name", "amount"},
		},
		{
			Channel:      domain.ChannelSMS,
			TemplateName: "payment-reminder-hi",
			Language:     "hi",
			Body:         "प्रिय {{name}}, आपकी {{amount}} की EMI बकाया है। कृपया शीघ्र भुगतान करें।",
			Variables:    []string{"name", "amount"},
		},
		{
			Channel:      domain.ChannelEmail,
			TemplateName: "overdue-notice-en",
			Language:     "en",
			Body:         "Dear {{name}}, this is a reminder that your account is {{dpd}} days past due.",
			Variables:    []string{"name", "dpd"},
		},
		{
			Channel:      domain.ChannelWhatsApp,
			TemplateName: "gentle-nudge-en",
			Language:     "en",
			Body:         "Hi {{name}}, a quick reminder about your pending payment of {{amount}}.",
			Variables:    []string{"name", "amount"},
		},
		{
			Channel:      domain.ChannelIVR,
			TemplateName: "payment-call-en",
			Language:     "en",
			Body:         "ivr-flow-payment-reminder-v1",
		},
	}

	for i := range templates {
		templates[i].ID = uuid.New().String()
		templates[i].CreatedAt = now
		templates[i].UpdatedAt = now
		if err := repo.SaveTemplate(ctx, &templates[i]); err != nil {
			return err
		}
	}

	slog.Info("templates seeded", "templates", len(templates))
	return nil
}
