//go:build !integration

// File: internal/usecase/catalog_uc_test.go
package usecase_test

import (
	"context"
	"errors"
	"testing"

	"healthtrack-billing/internal/domain"
	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/usecase"
)

func TestCatalog_ResolveByPriceID(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewCatalogUseCase(NewMockTierRepo(catalogTiers()...), newTestLogger())

	t.Run("resolves monthly and yearly slots of every tier", func(t *testing.T) {
		cases := map[string]model.TierCode{
			"price_basic_m":   model.TierBasic,
			"price_basic_y":   model.TierBasic,
			"price_premium_m": model.TierPremium,
			"price_premium_y": model.TierPremium,
			"price_pro_m":     model.TierProfessional,
			"price_pro_y":     model.TierProfessional,
		}
		for priceID, want := range cases {
			tier, err := uc.ResolveByPriceID(ctx, priceID)
			if err != nil {
				t.Fatalf("ResolveByPriceID(%s): %v", priceID, err)
			}
			if tier.Code != want {
				t.Errorf("ResolveByPriceID(%s) = %s, want %s", priceID, tier.Code, want)
			}
		}
	})

	t.Run("unrecognized price id falls back to the free tier", func(t *testing.T) {
		tier, err := uc.ResolveByPriceID(ctx, "price_from_another_account")
		if err != nil {
			t.Fatalf("expected fallback, got error: %v", err)
		}
		if tier.Code != model.TierFree {
			t.Errorf("expected free fallback, got %s", tier.Code)
		}
	})
}

func TestCatalog_FreeTier(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers the catalog free row", func(t *testing.T) {
		uc := usecase.NewCatalogUseCase(NewMockTierRepo(catalogTiers()...), newTestLogger())
		tier := uc.FreeTier(ctx)
		if tier.Code != model.TierFree || tier.Features.HistoryDays == nil {
			t.Errorf("expected seeded free tier, got: %+v", tier)
		}
	})

	t.Run("degrades to the built-in bundle when the catalog is empty", func(t *testing.T) {
		uc := usecase.NewCatalogUseCase(NewMockTierRepo(), newTestLogger())
		tier := uc.FreeTier(ctx)
		if tier == nil || tier.Code != model.TierFree {
			t.Fatalf("expected built-in free tier, got: %+v", tier)
		}
	})

	t.Run("degrades on store failure too", func(t *testing.T) {
		repo := NewMockTierRepo()
		repo.FindByCodeFunc = func(ctx context.Context, code model.TierCode) (*model.Tier, error) {
			return nil, errors.New("connection reset")
		}
		uc := usecase.NewCatalogUseCase(repo, newTestLogger())
		if tier := uc.FreeTier(ctx); tier == nil || tier.Code != model.TierFree {
			t.Fatalf("FreeTier must never fail, got: %+v", tier)
		}
	})
}

func TestCatalog_GetByCode(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewCatalogUseCase(NewMockTierRepo(catalogTiers()...), newTestLogger())

	if _, err := uc.GetByCode(ctx, "enterprise"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown code, got: %v", err)
	}
	tier, err := uc.GetByCode(ctx, model.TierBasic)
	if err != nil || tier.Rank != 1 {
		t.Errorf("expected basic rank 1, got tier=%+v err=%v", tier, err)
	}
}
