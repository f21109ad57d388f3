package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/api/dto"
	"github.com/spec-kit/firm-roster/internal/config"
	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/observability"
	"github.com/spec-kit/firm-roster/internal/persistence"
	"github.com/spec-kit/firm-roster/internal/platform"
	"github.com/spec-kit/firm-roster/internal/repository"
	"github.com/spec-kit/firm-roster/internal/service"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "rosterctl",
	Short: "Operate the firm roster engine from the command line",
	Long: `rosterctl runs guild conflict scans, roster syncs and statistics against
the same Postgres, Redis and Discord configuration as the API server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	guildFlag    string
	resolveFlag  bool
	operatorFlag string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a guild for members holding several staff roles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e *service.Engine) error {
			conflicts, err := e.Conflicts.ScanGuild(ctx, guildFlag, func(p service.ScanProgress) {
				if p.Processed%100 == 0 || p.Processed == p.Total {
					fmt.Fprintf(os.Stderr, "scanned %d/%d members, %d conflicts\n", p.Processed, p.Total, p.ConflictsFound)
				}
			})
			if err != nil {
				return err
			}
			out := map[string]any{"conflicts": conflicts}
			if resolveFlag && len(conflicts) > 0 {
				var progress service.BulkProgress
				out["results"] = e.Conflicts.BulkResolve(ctx, guildFlag, conflicts, func(p service.BulkProgress) { progress = p })
				out["resolved"], out["errors"] = progress.ConflictsResolved, progress.Errors
			}
			return printJSON(out)
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile staff records with the guild's current roles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e *service.Engine) error {
			touched, err := e.Lifecycle.SyncGuild(ctx, guildFlag)
			if err != nil {
				return err
			}
			return printJSON(dto.SyncResponse{RecordsTouched: &touched})
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print conflict resolution statistics for a guild",
	PreRunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return requireSharedHistory(cfg.Engine)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e *service.Engine) error {
			stats, err := e.Conflicts.GetConflictStatistics(ctx, guildFlag)
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a senior staff operator",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e *service.Engine) error {
			token, expires, err := e.Auth.IssueOperatorToken(ctx, guildFlag, operatorFlag)
			if err != nil {
				return err
			}
			return printJSON(dto.AuthResponse{Token: token, ExpiresAt: expires})
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&guildFlag, "guild", "", "Guild ID to operate on (required)")
	_ = rootCmd.MarkPersistentFlagRequired("guild")

	scanCmd.Flags().BoolVar(&resolveFlag, "resolve", false, "Resolve every conflict found")
	tokenCmd.Flags().StringVar(&operatorFlag, "operator", "", "Operator user ID (required)")
	_ = tokenCmd.MarkFlagRequired("operator")

	rootCmd.AddCommand(scanCmd, syncCmd, statsCmd, tokenCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withEngine wires the engine over REST-only Discord access and runs fn.
func withEngine(ctx context.Context, fn func(context.Context, *service.Engine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	hierarchy, err := cfg.Engine.Hierarchy()
	if err != nil {
		return err
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	pool := pg.PoolHandle()
	if pool == nil {
		return fmt.Errorf("POSTGRES_DSN is required")
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	session, err := platform.NewDiscordSession(cfg.Discord)
	if err != nil {
		return err
	}

	history, syncState := service.NewStateStores(*cfg, redis.Client)
	engine := service.NewEngine(*cfg, service.EngineDependencies{
		Hierarchy:  hierarchy,
		StaffRepo:  repository.NewStaffRepository(pool),
		CaseRepo:   repository.NewCaseRepository(pool),
		AuditRepo:  repository.NewAuditRepository(pool),
		Platform:   platform.NewDiscordPlatform(session, cfg.Discord, logger),
		History:    history,
		SyncState:  syncState,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     logger,
	})
	engine.Notifications.RegisterHandlers()

	logger.Debug("rosterctl engine ready", zap.String("guild_id", guildFlag), zap.Int("staff_roles", len(hierarchy.Roles())))
	return fn(ctx, engine)
}

// requireSharedHistory rejects the in-process history backend, which starts
// empty in every new process.
func requireSharedHistory(cfg config.EngineConfig) error {
	if cfg.HistoryBackend != "redis" {
		return fmt.Errorf("conflict history backend %q is per process; set CONFLICT_HISTORY_BACKEND=redis to read statistics", cfg.HistoryBackend)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
