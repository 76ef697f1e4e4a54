package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"healthtrack-billing/internal/infra/metrics"
	"healthtrack-billing/internal/usecase"
)

// ExpiryWorker periodically sweeps lapsed paid subscriptions back to free.
type ExpiryWorker struct {
	interval time.Duration
	expiryUC usecase.ExpiryUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, expiryUC usecase.ExpiryUseCase, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		expiryUC: expiryUC,
		log:      &l,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.expiryUC.SweepExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
			}
			if n > 0 {
				metrics.AddSubscriptionsExpired(n)
				w.log.Info().Int("count", n).Msg("lapsed subscriptions downgraded")
			}
		}
	}
}
