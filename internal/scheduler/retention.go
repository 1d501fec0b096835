package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/havenline/casekeeper/internal/config"
	"github.com/havenline/casekeeper/internal/modules/service"
)

const leaderLockKey = "casekeeper:retention:sweep-lock"

// SweepResult is the outcome of one retention sweep.
type SweepResult struct {
	Candidates int
	Removed    int
	Skipped    int
	Errors     int
	Duration   time.Duration
}

// RetentionSweeper periodically removes archives whose retention window has
// passed. It is safe to run on every instance: a Redis lock elects one
// sweeper per interval, and the per-archive delete re-checks expiry
// transactionally, so even two concurrent sweeps converge on one deletion.
type RetentionSweeper struct {
	archives service.ArchiveService
	rdb      *redis.Client
	log      *zap.Logger

	interval  time.Duration
	lockTTL   time.Duration
	batchSize int

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewRetentionSweeper(archives service.ArchiveService, rdb *redis.Client, cfg *config.Config, log *zap.Logger) *RetentionSweeper {
	interval := time.Duration(cfg.Retention.SweepIntervalSec) * time.Second
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	lockTTL := time.Duration(cfg.Retention.LockTTLSec) * time.Second
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	batchSize := cfg.Retention.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RetentionSweeper{
		archives:  archives,
		rdb:       rdb,
		log:       log.With(zap.String("component", "retention-sweeper")),
		interval:  interval,
		lockTTL:   lockTTL,
		batchSize: batchSize,
	}
}

// Start launches the background sweep loop. Call once at application start.
func (s *RetentionSweeper) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(runCtx)

	s.log.Info("retention sweeper started", zap.Duration("interval", s.interval))
}

// Stop terminates the background loop.
func (s *RetentionSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("retention sweeper stopped")
}

func (s *RetentionSweeper) run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Thread-safe; concurrent calls serialize.
func (s *RetentionSweeper) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &SweepResult{}
	start := time.Now()

	proceed, held := s.acquireLock(ctx)
	if !proceed {
		s.log.Debug("sweep skipped, another instance holds the lock")
		return result
	}
	if held {
		defer s.releaseLock(ctx)
	}

	now := time.Now().UTC()
	expired, err := s.archives.ListExpired(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error("listing expired archives failed", zap.Error(err))
		result.Errors++
		return result
	}
	result.Candidates = len(expired)

	for _, rec := range expired {
		removed, err := s.archives.DeleteExpired(ctx, rec.ID, now)
		if err != nil {
			// one bad archive must not stop the sweep
			s.log.Error("expired archive removal failed",
				zap.String("archive_id", rec.ID.String()),
				zap.Error(err))
			result.Errors++
			continue
		}
		if removed {
			result.Removed++
		} else {
			result.Skipped++
		}
	}

	result.Duration = time.Since(start)
	s.log.Info("retention sweep finished",
		zap.Int("candidates", result.Candidates),
		zap.Int("removed", result.Removed),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", result.Duration))

	return result
}

// acquireLock takes the cross-instance sweep lock. Redis being unreachable
// degrades to sweeping anyway: duplicate sweeps are safe, missed ones are not.
// held reports whether this instance owns the lock; only an owned lock may be
// released, a lock-less sweep must never evict the real leader's lock.
func (s *RetentionSweeper) acquireLock(ctx context.Context) (proceed, held bool) {
	if s.rdb == nil {
		return true, false
	}
	ok, err := s.rdb.SetNX(ctx, leaderLockKey, time.Now().UTC().Format(time.RFC3339), s.lockTTL).Result()
	if err != nil {
		s.log.Warn("sweep lock unavailable, proceeding without it", zap.Error(err))
		return true, false
	}
	return ok, ok
}

func (s *RetentionSweeper) releaseLock(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, leaderLockKey).Err(); err != nil {
		s.log.Warn("sweep lock release failed", zap.Error(err))
	}
}
