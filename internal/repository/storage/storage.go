package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Baltuneedu/pdf-compress-app/internal/cache"
	"github.com/Baltuneedu/pdf-compress-app/internal/entities"
)

// ErrNotFound means no job record exists for the object id (state "absent").
var ErrNotFound = errors.New("no compression job for object")

// dbStorage persists one CompressionJob per object id. Every write is an
// upsert: a later delivery for the same id overwrites the previous record,
// last write wins. There is no per-id versioning, so two concurrent
// deliveries may interleave; the final row is whichever write lands last.
type dbStorage struct {
	dbpool *pgxpool.Pool
	cache  *cache.Cache
}

func New(ctx context.Context, databaseDSN string, c *cache.Cache) (*dbStorage, error) {
	pool, err := pgxpool.New(ctx, databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &dbStorage{dbpool: pool, cache: c}, nil
}

func (s *dbStorage) Ping(ctx context.Context) error {
	return s.dbpool.Ping(ctx)
}

// MarkPending starts a fresh lifecycle for the object, clearing any prior
// terminal record and its metrics.
func (s *dbStorage) MarkPending(ctx context.Context, objectID string) error {
	const q = `
		INSERT INTO compression_jobs (
			object_id, status, processing_started_at, updated_timestamp
		) VALUES ($1, $2, now(), now())
		ON CONFLICT (object_id) DO UPDATE SET
			status                 = EXCLUDED.status,
			error_reason           = NULL,
			skip_reason            = NULL,
			processing_started_at  = EXCLUDED.processing_started_at,
			processing_finished_at = NULL,
			compressed_size_bytes  = NULL,
			compression_ratio      = NULL,
			hit_target             = NULL,
			overwrote              = NULL,
			pass_used              = NULL,
			updated_timestamp      = now()`

	if _, err := s.dbpool.Exec(ctx, q, objectID, entities.StatusPending); err != nil {
		return fmt.Errorf("mark pending %q: %w", objectID, err)
	}
	s.invalidate(ctx, objectID)
	return nil
}

// MarkDone finalizes a pending record with the worker-reported metrics.
func (s *dbStorage) MarkDone(ctx context.Context, objectID string, res entities.CompressionResult) error {
	const q = `
		INSERT INTO compression_jobs (
			object_id, status, processing_finished_at,
			compressed_size_bytes, compression_ratio, hit_target, overwrote, pass_used,
			updated_timestamp
		) VALUES ($1, $2, now(), $3, $4, $5, $6, $7, now())
		ON CONFLICT (object_id) DO UPDATE SET
			status                 = EXCLUDED.status,
			error_reason           = NULL,
			skip_reason            = NULL,
			processing_finished_at = EXCLUDED.processing_finished_at,
			compressed_size_bytes  = EXCLUDED.compressed_size_bytes,
			compression_ratio      = EXCLUDED.compression_ratio,
			hit_target             = EXCLUDED.hit_target,
			overwrote              = EXCLUDED.overwrote,
			pass_used              = EXCLUDED.pass_used,
			updated_timestamp      = now()`

	_, err := s.dbpool.Exec(ctx, q, objectID, entities.StatusDone,
		res.CompressedBytes, res.Ratio, res.HitTarget, res.Overwrote, res.PassUsed)
	if err != nil {
		return fmt.Errorf("mark done %q: %w", objectID, err)
	}
	s.invalidate(ctx, objectID)
	return nil
}

// MarkError finalizes a pending record as failed. Metrics stay null; the
// reason tells a too-large refusal apart from a generic upstream failure.
func (s *dbStorage) MarkError(ctx context.Context, objectID string, reason string) error {
	const q = `
		INSERT INTO compression_jobs (
			object_id, status, error_reason, processing_finished_at, updated_timestamp
		) VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (object_id) DO UPDATE SET
			status                 = EXCLUDED.status,
			error_reason           = EXCLUDED.error_reason,
			skip_reason            = NULL,
			processing_finished_at = EXCLUDED.processing_finished_at,
			compressed_size_bytes  = NULL,
			compression_ratio      = NULL,
			hit_target             = NULL,
			overwrote              = NULL,
			pass_used              = NULL,
			updated_timestamp      = now()`

	if _, err := s.dbpool.Exec(ctx, q, objectID, entities.StatusError, reason); err != nil {
		return fmt.Errorf("mark error %q: %w", objectID, err)
	}
	s.invalidate(ctx, objectID)
	return nil
}

// MarkSkipped records a below-threshold object. processing_started_at is
// never set on this path.
func (s *dbStorage) MarkSkipped(ctx context.Context, objectID string, reason string) error {
	const q = `
		INSERT INTO compression_jobs (
			object_id, status, skip_reason, updated_timestamp
		) VALUES ($1, $2, $3, now())
		ON CONFLICT (object_id) DO UPDATE SET
			status                 = EXCLUDED.status,
			error_reason           = NULL,
			skip_reason            = EXCLUDED.skip_reason,
			processing_started_at  = NULL,
			processing_finished_at = NULL,
			compressed_size_bytes  = NULL,
			compression_ratio      = NULL,
			hit_target             = NULL,
			overwrote              = NULL,
			pass_used              = NULL,
			updated_timestamp      = now()`

	if _, err := s.dbpool.Exec(ctx, q, objectID, entities.StatusSkipped, reason); err != nil {
		return fmt.Errorf("mark skipped %q: %w", objectID, err)
	}
	s.invalidate(ctx, objectID)
	return nil
}

// Get reads one job record, trying the redis cache first. Cache misses and
// cache errors both fall through to postgres.
func (s *dbStorage) Get(ctx context.Context, objectID string) (entities.CompressionJob, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, objectID); err == nil {
			if str, ok := raw.(string); ok && str != "" {
				var job entities.CompressionJob
				if json.Unmarshal([]byte(str), &job) == nil {
					return job, nil
				}
			}
		}
	}

	const q = `
		SELECT object_id, status, error_reason, skip_reason,
		       processing_started_at, processing_finished_at,
		       compressed_size_bytes, compression_ratio, hit_target, overwrote, pass_used,
		       updated_timestamp
		FROM compression_jobs WHERE object_id = $1`

	var job entities.CompressionJob
	err := s.dbpool.QueryRow(ctx, q, objectID).Scan(
		&job.ObjectID, &job.Status, &job.ErrorReason, &job.SkipReason,
		&job.ProcessingStartedAt, &job.ProcessingFinishedAt,
		&job.CompressedSizeBytes, &job.CompressionRatio, &job.HitTarget, &job.Overwrote, &job.PassUsed,
		&job.UpdatedTimestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.CompressionJob{}, ErrNotFound
	}
	if err != nil {
		return entities.CompressionJob{}, fmt.Errorf("get job %q: %w", objectID, err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(job); err == nil {
			if err := s.cache.Store(ctx, objectID, 60, string(raw)); err != nil {
				log.Printf("[storage] cache store %q: %v", objectID, err)
			}
		}
	}
	return job, nil
}

func (s *dbStorage) Close() {
	s.dbpool.Close()
}

// invalidate drops the cached record after a write; failures only log.
func (s *dbStorage) invalidate(ctx context.Context, objectID string) {
	if s.cache == nil {
		return
	}
	rmCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.cache.Remove(rmCtx, objectID); err != nil {
		log.Printf("[storage] cache invalidate %q: %v", objectID, err)
	}
}
