package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/das-api/internal/repository"
	"github.com/noah-isme/das-api/internal/service"
	"github.com/noah-isme/das-api/pkg/cache"
	"github.com/noah-isme/das-api/pkg/config"
	"github.com/noah-isme/das-api/pkg/database"
	"github.com/noah-isme/das-api/pkg/logger"
)

// app holds what every subcommand shares. The database is opened on first use
// so that commands like issue-token run without one.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.Handle
}

func (a *app) database(ctx context.Context) (*database.Handle, error) {
	if a.db != nil {
		return a.db, nil
	}
	h, err := database.Open(ctx, a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = h
	return h, nil
}

// reportCache connects to the API's shared Redis cache so that a reset
// invalidates cached reports. Without Redis there is nothing to invalidate.
func (a *app) reportCache(ctx context.Context, metrics *service.MetricsService) *service.CacheService {
	if a.cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, a.cfg.Redis, a.logger)
		if err == nil {
			return service.NewCacheService(repository.NewCacheRepository(client, a.logger), metrics, a.cfg.Reports.CacheTTL, a.logger, true)
		}
		a.logger.Warn("redis unavailable, cached reports stay until they expire", zap.Error(err))
	}
	return service.NewCacheService(repository.NewMemoryCacheRepository(0, 0), metrics, 0, a.logger, false)
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "das-admin",
		Short:         "Maintenance commands for the DAS API datastore",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg != nil {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.cfg = cfg
			a.logger = logr
			return nil
		},
	}
	root.AddCommand(
		migrateCmd(a),
		verifyRoutingCmd(a),
		resetApprovalsCmd(a),
		issueTokenCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		a.close()
		os.Exit(1)
	}
}
