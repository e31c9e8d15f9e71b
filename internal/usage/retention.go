package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// PurgeOld deletes counter buckets older than the retention window. Returns
// the number of rows removed.
func (s *Service) PurgeOld(ctx context.Context, retentionMonths int) (int64, error) {
	if retentionMonths <= 0 {
		return 0, fmt.Errorf("retention months must be positive, got %d", retentionMonths)
	}

	cutoff := MonthStartOf(time.Now()).AddDate(0, -retentionMonths, 0)

	tag, err := s.pool.Exec(ctx, `DELETE FROM usage_counters WHERE day < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge usage counters: %w", err)
	}

	return tag.RowsAffected(), nil
}

// RunRetention is the cron entry point. It logs and swallows errors so a
// failed purge never takes the scheduler down.
func (s *Service) RunRetention(ctx context.Context, retentionMonths int) {
	start := time.Now()
	deleted, err := s.PurgeOld(ctx, retentionMonths)
	if err != nil {
		log.Error().Err(err).Msg("Usage retention purge failed")
		return
	}
	log.Info().
		Int64("deleted", deleted).
		Dur("took", time.Since(start)).
		Msg("Usage retention purge completed")
}
