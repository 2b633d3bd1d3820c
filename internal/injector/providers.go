package injector

import (
	"fmt"
	"os"

	"github.com/google/wire"

	"github.com/zeusync/missionsim/internal/core/clock"
	"github.com/zeusync/missionsim/internal/core/eligibility"
	"github.com/zeusync/missionsim/internal/core/events/bus"
	"github.com/zeusync/missionsim/internal/core/mission"
	"github.com/zeusync/missionsim/internal/core/observability/log"
	"github.com/zeusync/missionsim/internal/server"
)

// Options is everything the process reads from flags and files.
type Options struct {
	Scenario mission.Config
	Server   server.Config
	// CatalogPath is the mission catalog JSON; empty disables eligibility.
	CatalogPath string
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideScheduler,
	ProvideEventBus,
	ProvideScenario,
	ProvideCatalog,
	ProvideServer,
	NewApp,
	wire.Bind(new(log.Log), new(*log.Logger)),
	wire.Bind(new(server.SnapshotSource), new(*mission.Scenario)),
)

func ProvideLogger(opts Options) (*log.Logger, func(), error) {
	logger := log.NewWithOptions(log.Options{
		Level:      opts.Server.LogLevel,
		File:       opts.Server.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
	})
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideScheduler(logger log.Log) *clock.Scheduler {
	return clock.NewScheduler(logger)
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideScenario(opts Options, sched *clock.Scheduler, eventBus bus.EventBus, logger log.Log) (*mission.Scenario, func(), error) {
	sc, err := mission.New(opts.Scenario, sched, eventBus, logger)
	if err != nil {
		return nil, nil, err
	}
	return sc, sc.Stop, nil
}

func ProvideCatalog(opts Options) (*eligibility.Catalog, error) {
	if opts.CatalogPath == "" {
		return nil, nil
	}
	f, err := os.Open(opts.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("open mission catalog: %w", err)
	}
	defer f.Close()
	return eligibility.ParseCatalog(f)
}

func ProvideServer(opts Options, source server.SnapshotSource, catalog *eligibility.Catalog, eventBus bus.EventBus, logger log.Log) (*server.Server, func(), error) {
	srv, err := server.NewServer(opts.Server, source, catalog, eventBus, logger)
	if err != nil {
		return nil, nil, err
	}
	return srv, func() { _ = srv.Close() }, nil
}
