package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/db"
	"github.com/breachwatch/breachwatch/internal/domains"
)

// Snapshot summarizes an API key's consumption against a domain, with the
// quota window it counts toward.
type Snapshot struct {
	DayRequests   int64 `json:"day_requests"`
	MonthRequests int64 `json:"month_requests"`
	MonthLimit    int   `json:"month_limit"`
	Remaining     int64 `json:"remaining"`
}

// Service tracks per-key, per-domain request counters in daily buckets.
type Service struct {
	pool *pgxpool.Pool

	// defaultMonthlyLimit applies to directly owned domains, which have no
	// org plan to read a quota from.
	defaultMonthlyLimit int
}

// NewService creates a usage service.
func NewService(pool *pgxpool.Pool, defaultMonthlyLimit int) *Service {
	return &Service{pool: pool, defaultMonthlyLimit: defaultMonthlyLimit}
}

// Record counts one request returning recordCount records. Metering is
// best-effort: a failed increment is logged and never fails the request that
// produced it.
func (s *Service) Record(ctx context.Context, apiKeyID, domainID uuid.UUID, recordCount int) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_counters (api_key_id, domain_id, day, requests, records)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (api_key_id, domain_id, day) DO UPDATE
		SET requests = usage_counters.requests + 1,
		    records  = usage_counters.records + EXCLUDED.records`,
		apiKeyID, domainID, DayOf(time.Now()), recordCount,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			// The key or domain was deleted mid-request; the sample has
			// nowhere to land.
			log.Debug().Err(err).
				Str("api_key_id", apiKeyID.String()).
				Str("domain_id", domainID.String()).
				Msg("Dropped usage sample for deleted target")
			return
		}
		log.Error().Err(err).
			Str("api_key_id", apiKeyID.String()).
			Str("domain_id", domainID.String()).
			Msg("Failed to record usage")
	}
}

// SnapshotFor computes the key's current standing against the domain's
// monthly quota. Org domains use the owning org's plan limit; direct domains
// use the platform default. The read is idempotent and retried on transient
// store failures.
func (s *Service) SnapshotFor(ctx context.Context, apiKeyID uuid.UUID, domain *domains.Domain) (Snapshot, error) {
	return db.Retry(ctx, func() (Snapshot, error) {
		return s.snapshotFor(ctx, apiKeyID, domain)
	})
}

func (s *Service) snapshotFor(ctx context.Context, apiKeyID uuid.UUID, domain *domains.Domain) (Snapshot, error) {
	now := time.Now()

	var snap Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(requests) FILTER (WHERE day = $3), 0),
			COALESCE(SUM(requests), 0)
		FROM usage_counters
		WHERE api_key_id = $1 AND domain_id = $2 AND day >= $4`,
		apiKeyID, domain.ID, DayOf(now), MonthStartOf(now),
	).Scan(&snap.DayRequests, &snap.MonthRequests)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load usage counters: %w", err)
	}

	snap.MonthLimit = s.defaultMonthlyLimit
	if domain.OrgID.Valid {
		err := s.pool.QueryRow(ctx,
			`SELECT max_monthly_searches FROM orgs WHERE id = $1`, domain.OrgID.UUID,
		).Scan(&snap.MonthLimit)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load org quota: %w", err)
		}
	}

	snap.Remaining = int64(snap.MonthLimit) - snap.MonthRequests
	if snap.Remaining < 0 {
		snap.Remaining = 0
	}
	return snap, nil
}

// OverQuota reports whether the key has exhausted the domain's monthly quota.
func (s *Service) OverQuota(ctx context.Context, apiKeyID uuid.UUID, domain *domains.Domain) (bool, Snapshot, error) {
	snap, err := s.SnapshotFor(ctx, apiKeyID, domain)
	if err != nil {
		return false, Snapshot{}, err
	}
	return snap.MonthRequests >= int64(snap.MonthLimit), snap, nil
}

// ListByKey returns the daily buckets for one key since a cutoff, newest first.
func (s *Service) ListByKey(ctx context.Context, apiKeyID uuid.UUID, since time.Time) ([]DayUsage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT domain_id, day, requests, records
		FROM usage_counters
		WHERE api_key_id = $1 AND day >= $2
		ORDER BY day DESC, domain_id`,
		apiKeyID, DayOf(since),
	)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	var result []DayUsage
	for rows.Next() {
		var u DayUsage
		if err := rows.Scan(&u.DomainID, &u.Day, &u.Requests, &u.Records); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// DayUsage is one daily counter bucket.
type DayUsage struct {
	DomainID uuid.UUID `json:"domain_id"`
	Day      time.Time `json:"day"`
	Requests int64     `json:"requests"`
	Records  int64     `json:"records"`
}
