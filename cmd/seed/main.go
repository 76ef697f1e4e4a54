package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"healthtrack-billing/internal/config"
	"healthtrack-billing/internal/domain/model"
	pg "healthtrack-billing/internal/infra/db/postgres"
)

func intPtr(n int) *int { return &n }

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	tierRepo := pg.NewTierRepo(pool)

	// If tiers already exist, do nothing
	existing, err := tierRepo.ListActive(ctx)
	if err != nil {
		log.Fatalf("list tiers: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d tiers already present. No changes.\n", len(existing))
		for _, t := range existing {
			fmt.Printf("  - %s (rank=%d, monthly=%.2f, yearly=%.2f)\n", t.Code, t.Rank, t.PriceMonthly, t.PriceYearly)
		}
		return
	}

	seed := []struct {
		Code     model.TierCode
		Name     string
		Rank     int
		Monthly  float64
		Yearly   float64
		Features model.FeatureSet
	}{
		{
			Code: model.TierFree, Name: "Free", Rank: 0, Monthly: 0, Yearly: 0,
			Features: model.FeatureSet{
				HistoryDays: intPtr(7),
				Insights:    "basic",
			},
		},
		{
			Code: model.TierBasic, Name: "Basic", Rank: 1, Monthly: 4.99, Yearly: 49.99,
			Features: model.FeatureSet{
				HistoryDays: intPtr(30),
				Reminders: model.ReminderFeatures{
					Enabled: true, MaxPerDay: 3,
					Methods:     []string{"email"},
					Frequencies: []string{"daily"},
				},
				Insights: "basic",
				Export:   model.ExportFeatures{CSV: true},
			},
		},
		{
			Code: model.TierPremium, Name: "Premium", Rank: 2, Monthly: 9.99, Yearly: 99.99,
			Features: model.FeatureSet{
				HistoryDays: intPtr(365),
				Reminders: model.ReminderFeatures{
					Enabled: true, MaxPerDay: 10,
					Methods:     []string{"email", "sms"},
					Frequencies: []string{"daily", "weekly"},
				},
				Reports: model.ReportFeatures{
					Enabled: true,
					Methods: []string{"email"}, Frequencies: []string{"weekly"},
				},
				Insights: "advanced",
				Export:   model.ExportFeatures{CSV: true, PDF: true},
			},
		},
		{
			Code: model.TierProfessional, Name: "Professional", Rank: 3, Monthly: 19.99, Yearly: 199.99,
			Features: model.FeatureSet{
				HistoryDays: nil, // unlimited
				Reminders: model.ReminderFeatures{
					Enabled: true, MaxPerDay: 20,
					Methods:     []string{"email", "sms"},
					Frequencies: []string{"daily", "weekly", "monthly"},
				},
				Reports: model.ReportFeatures{
					Enabled: true,
					Methods: []string{"email"}, Frequencies: []string{"daily", "weekly", "monthly"},
				},
				Insights: "ai",
				Export:   model.ExportFeatures{CSV: true, PDF: true},
			},
		},
	}

	for _, s := range seed {
		t, err := model.NewTier(s.Code, s.Name, s.Rank, s.Monthly, s.Yearly, s.Features)
		if err != nil {
			log.Fatalf("build tier %q: %v", s.Code, err)
		}
		if err := tierRepo.Save(ctx, t); err != nil {
			log.Fatalf("save tier %q: %v", s.Code, err)
		}
		fmt.Printf("seeded: %s (rank=%d, monthly=%.2f, yearly=%.2f)\n", t.Code, t.Rank, t.PriceMonthly, t.PriceYearly)
	}

	fmt.Println("✅ Seeding complete.")
}
