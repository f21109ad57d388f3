package service

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/config"
	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/observability"
	"github.com/spec-kit/firm-roster/internal/platform"
	"github.com/spec-kit/firm-roster/internal/repository"
)

// Engine holds the wired role lifecycle services.
type Engine struct {
	Hierarchy     *domain.RoleHierarchy
	Conflicts     *ConflictService
	Staff         *StaffService
	Cases         *CaseService
	Cascade       *CascadeService
	Lifecycle     *LifecycleService
	Notifications *NotificationService
	Auth          *AuthService
}

// EngineDependencies are the infrastructure pieces the engine runs on.
type EngineDependencies struct {
	Hierarchy  *domain.RoleHierarchy
	StaffRepo  repository.StaffRepository
	CaseRepo   repository.CaseRepository
	AuditRepo  repository.AuditRepository
	Platform   platform.Platform
	History    ConflictHistoryStore
	SyncState  SyncStateStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewEngine wires every service from cfg and deps.
func NewEngine(cfg config.Config, deps EngineDependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hierarchy := deps.Hierarchy
	if hierarchy == nil {
		hierarchy = domain.DefaultRoleHierarchy()
	}
	pause := cfg.Engine.BatchPause()

	conflicts := NewConflictService(ConflictDependencies{
		Hierarchy:  hierarchy,
		Platform:   deps.Platform,
		AuditRepo:  deps.AuditRepo,
		History:    deps.History,
		Dispatcher: deps.Dispatcher,
		Metrics:    deps.Metrics,
		Logger:     logger,
		PauseEvery: cfg.Engine.BatchPauseEvery,
		Pause:      pause,
		Sleep:      SleepPause,
	})
	staff := NewStaffService(StaffDependencies{
		StaffRepo:  deps.StaffRepo,
		AuditRepo:  deps.AuditRepo,
		Dispatcher: deps.Dispatcher,
		Metrics:    deps.Metrics,
		Logger:     logger,
	})
	cases := NewCaseService(CaseDependencies{
		CaseRepo:   deps.CaseRepo,
		AuditRepo:  deps.AuditRepo,
		Dispatcher: deps.Dispatcher,
		Logger:     logger,
	})
	cascade := NewCascadeService(CascadeDependencies{
		Hierarchy:            hierarchy,
		CaseRepo:             deps.CaseRepo,
		StaffRepo:            deps.StaffRepo,
		AuditRepo:            deps.AuditRepo,
		Cases:                cases,
		Platform:             deps.Platform,
		ChannelAccess:        NewChannelAccessService(deps.Platform, cfg.Engine.RoleChannels, logger),
		Metrics:              deps.Metrics,
		Logger:               logger,
		MinLawyerLevel:       cfg.Engine.MinLawyerLevel,
		MinLeadAttorneyLevel: cfg.Engine.MinLeadAttorneyLevel,
		SeniorStaffLevel:     cfg.Engine.SeniorStaffLevel,
	})
	lifecycle := NewLifecycleService(LifecycleDependencies{
		Hierarchy:  hierarchy,
		Platform:   deps.Platform,
		Conflicts:  conflicts,
		Staff:      staff,
		Cascade:    cascade,
		SyncState:  deps.SyncState,
		Dispatcher: deps.Dispatcher,
		Metrics:    deps.Metrics,
		Logger:     logger,
		PauseEvery: cfg.Engine.BatchPauseEvery,
		Pause:      pause,
		Sleep:      SleepPause,
	})

	var notifications *NotificationService
	if deps.Dispatcher != nil {
		notifications = NewNotificationService(deps.Dispatcher, deps.Platform, cfg.Discord.LogChannelID, logger)
	}

	return &Engine{
		Hierarchy:     hierarchy,
		Conflicts:     conflicts,
		Staff:         staff,
		Cases:         cases,
		Cascade:       cascade,
		Lifecycle:     lifecycle,
		Notifications: notifications,
		Auth:          NewAuthService(cfg, AuthDependencies{StaffRepo: deps.StaffRepo, Hierarchy: hierarchy}),
	}
}

// NewStateStores picks the history and sync-state backends. The redis
// backend is used when configured and a client is available.
func NewStateStores(cfg config.Config, client redis.UniversalClient) (ConflictHistoryStore, SyncStateStore) {
	limit := cfg.Engine.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if cfg.Engine.HistoryBackend == "redis" && client != nil {
		return NewRedisConflictHistory(client, cfg.Redis.KeyPrefix, limit),
			NewRedisSyncState(client, cfg.Redis.KeyPrefix)
	}
	return NewMemoryConflictHistory(limit), NewMemorySyncState()
}
