package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/service"
)

// GuildSyncer reconciles staff records against a guild's live roster.
type GuildSyncer interface {
	SyncGuild(ctx context.Context, guildID string) (int, error)
}

// ConflictSweeper scans a guild and resolves whatever it finds.
type ConflictSweeper interface {
	ScanGuild(ctx context.Context, guildID string, onProgress func(service.ScanProgress)) ([]domain.RoleConflict, error)
	BulkResolve(ctx context.Context, guildID string, conflicts []domain.RoleConflict, onProgress func(service.BulkProgress)) []domain.ConflictResolutionResult
}

// SchedulerConfig describes the periodic jobs. An empty spec disables that job.
type SchedulerConfig struct {
	GuildIDs []string
	SyncSpec string
	ScanSpec string
	Timeout  time.Duration
}

// Scheduler runs guild sync and conflict sweeps on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	cfg     SchedulerConfig
	syncer  GuildSyncer
	sweeper ConflictSweeper
	logger  *zap.Logger

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

// NewScheduler builds a scheduler with standard five-field cron specs.
func NewScheduler(cfg SchedulerConfig, syncer GuildSyncer, sweeper ConflictSweeper, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		cfg:     cfg,
		syncer:  syncer,
		sweeper: sweeper,
		logger:  logger.With(zap.String("component", "scheduler")),
		running: map[string]bool{},
	}
}

// Start registers one job per guild and schedule, then starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, guildID := range s.cfg.GuildIDs {
		guildID := guildID
		if s.cfg.SyncSpec != "" && s.syncer != nil {
			if _, err := s.cron.AddFunc(s.cfg.SyncSpec, func() { s.run(ctx, "sync", guildID, s.syncGuild) }); err != nil {
				return fmt.Errorf("schedule sync for guild %s: %w", guildID, err)
			}
		}
		if s.cfg.ScanSpec != "" && s.sweeper != nil {
			if _, err := s.cron.AddFunc(s.cfg.ScanSpec, func() { s.run(ctx, "scan", guildID, s.sweepGuild) }); err != nil {
				return fmt.Errorf("schedule scan for guild %s: %w", guildID, err)
			}
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Int("guilds", len(s.cfg.GuildIDs)),
		zap.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop halts scheduling and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// run executes a job unless the same job is already running for the guild.
func (s *Scheduler) run(ctx context.Context, job, guildID string, fn func(context.Context, string) error) {
	key := job + ":" + guildID
	s.mu.Lock()
	if s.running[key] {
		s.mu.Unlock()
		s.logger.Warn("skipping overlapping run", zap.String("job", job), zap.String("guild_id", guildID))
		return
	}
	s.running[key] = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, key)
		s.mu.Unlock()
		s.wg.Done()
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	logger := s.logger.With(zap.String("job", job), zap.String("guild_id", guildID))
	if err := fn(jobCtx, guildID); err != nil {
		logger.Error("scheduled job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	logger.Info("scheduled job completed", zap.Duration("duration", time.Since(start)))
}

func (s *Scheduler) syncGuild(ctx context.Context, guildID string) error {
	_, err := s.syncer.SyncGuild(ctx, guildID)
	return err
}

func (s *Scheduler) sweepGuild(ctx context.Context, guildID string) error {
	conflicts, err := s.sweeper.ScanGuild(ctx, guildID, nil)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	var failed int
	s.sweeper.BulkResolve(ctx, guildID, conflicts, func(p service.BulkProgress) { failed = p.Errors })
	if failed > 0 {
		return fmt.Errorf("%d of %d conflicts not resolved", failed, len(conflicts))
	}
	return nil
}
