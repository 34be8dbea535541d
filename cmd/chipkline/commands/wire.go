package commands

import (
	"fmt"

	"github.com/twchip/chipkline/internal/browser"
	"github.com/twchip/chipkline/internal/chip"
	"github.com/twchip/chipkline/internal/external/fubon"
	"github.com/twchip/chipkline/internal/external/twse"
	"github.com/twchip/chipkline/internal/external/yahoo"
	"github.com/twchip/chipkline/internal/store"
	"github.com/twchip/chipkline/pkg/config"
	"github.com/twchip/chipkline/pkg/database"
	"github.com/twchip/chipkline/pkg/httputil"
	"github.com/twchip/chipkline/pkg/logger"
	"github.com/twchip/chipkline/pkg/redis"
)

// app holds the wired dependency graph shared by the subcommands.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	service   *chip.Service
	codes     *twse.Client
	snapshots *store.SnapshotRepository // nil when Postgres is disabled

	db    *database.DB
	redis *redis.Client
}

// buildApp loads config and wires the pipeline.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "chipkline")

	httpClient := httputil.New(log).WithRateLimit(cfg.Fubon.RateLimit)
	factory := browser.NewWebDriverFactory(cfg, httpClient, log)
	fubonClient := fubon.NewClient(factory, cfg.Fubon, log)

	priceProvider := yahoo.NewProvider(log)
	codes := twse.NewClient(cfg, log)

	a := &app{
		cfg:   cfg,
		log:   log,
		codes: codes,
		redis: redisClient,
	}

	var snapStore chip.SnapshotStore
	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.snapshots = store.NewSnapshotRepository(db.Pool)
		snapStore = a.snapshots
	}

	a.service = chip.NewService(fubonClient, priceProvider, codes, cache, cfg.CacheTTL, snapStore, log)
	return a, nil
}

// Close releases the app's connections.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
