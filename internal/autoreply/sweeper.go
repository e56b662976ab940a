package autoreply

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"widget-chat-service/internal/models"
	"widget-chat-service/internal/observability"
	"widget-chat-service/internal/repositories"
)

const (
	sweepLookback = 24 * time.Hour
	sweepLimit    = 500
)

// Sweeper periodically reports visitor messages whose auto-reply dispatch never
// finished. It only reports; replies are never generated after the fact.
type Sweeper struct {
	outcomes repositories.OutcomeRepository
	grace    time.Duration
	cron     *cron.Cron
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSweeper builds a Sweeper that ignores messages younger than grace.
func NewSweeper(outcomes repositories.OutcomeRepository, grace time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		outcomes: outcomes,
		grace:    grace,
		cron:     cron.New(),
		now:      time.Now,
		logger:   logger,
	}
}

// Start schedules the sweep with a cron spec such as "@every 1m".
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("unreplied sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("unreplied sweep scheduled")
	return nil
}

// Stop halts scheduling and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one detection pass and returns the unresolved messages found.
func (s *Sweeper) Sweep(ctx context.Context) ([]models.UnrepliedMessage, error) {
	now := s.now()
	rows, err := s.outcomes.ListUnresolved(ctx, now.Add(-sweepLookback), now.Add(-s.grace), sweepLimit)
	if err != nil {
		return nil, err
	}

	observability.SetUnresolved(len(rows))
	for _, row := range rows {
		state := "missing"
		if row.Outcome != nil {
			state = string(*row.Outcome)
		}
		s.logger.Warn().
			Int64("message_id", row.MessageID).
			Str("chat_id", row.ChatID).
			Str("widget_id", row.WidgetID).
			Str("state", state).
			Time("created_at", row.CreatedAt).
			Msg("visitor message without completed auto-reply dispatch")
	}
	return rows, nil
}
