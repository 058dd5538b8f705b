package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assetlend/pkg/metrics"
)

// OverdueSweeper promotes past-due borrowed loans to overdue, on demand or on a ticker.
type OverdueSweeper struct {
	loans    LoanService
	interval time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewOverdueSweeper(loans LoanService, interval time.Duration, m *metrics.Metrics, log *zap.Logger) *OverdueSweeper {
	return &OverdueSweeper{loans: loans, interval: interval, metrics: m, log: log}
}

// SweepOnce runs a single pass and returns the loans it marked overdue.
// actor is the user who asked for the sweep, or uuid.Nil for scheduled runs.
func (s *OverdueSweeper) SweepOnce(ctx context.Context, actor uuid.UUID) ([]LoanResponse, error) {
	updated, err := s.loans.CheckOverdueLoans(ctx, actor)
	s.metrics.OverdueSweep(len(updated), err)
	if err != nil {
		s.log.Error("overdue sweep failed", zap.Error(err))
		return nil, err
	}
	if len(updated) > 0 {
		s.log.Info("overdue sweep marked loans", zap.Int("count", len(updated)))
	}
	return updated, nil
}

// Start blocks, sweeping every interval until ctx is cancelled.
// A zero interval disables the periodic sweep.
func (s *OverdueSweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("periodic overdue sweep disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("periodic overdue sweep started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("periodic overdue sweep stopped")
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx, uuid.Nil)
		}
	}
}
