package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/missionsim/internal/core/mission"
	"github.com/zeusync/missionsim/internal/core/observability/log"
	"github.com/zeusync/missionsim/internal/injector"
	"github.com/zeusync/missionsim/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "missionsim:", err)
		os.Exit(1)
	}
}

func run() error {
	srvCfg := server.DefaultServerConfig()

	var (
		scenarioPath = flag.String("config", "", "scenario YAML file (default: built-in desert scenario)")
		catalogPath  = flag.String("catalog", "", "mission catalog JSON for device eligibility")
		logLevel     = flag.String("log-level", srvCfg.LogLevel.String(), "debug, info, warn, error or silent")
	)
	flag.StringVar(&srvCfg.ListenAddr, "listen", srvCfg.ListenAddr, "HTTP listen address")
	flag.StringVar(&srvCfg.LogFile, "log-file", "", "also write logs to this rotating file")
	flag.IntVar(&srvCfg.MaxClients, "max-clients", srvCfg.MaxClients, "maximum websocket feed clients")
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	srvCfg.LogLevel = level

	scenario, err := loadScenario(*scenarioPath)
	if err != nil {
		return err
	}

	app, cleanup, err := injector.InitializeApp(injector.Options{
		Scenario:    scenario,
		Server:      srvCfg,
		CatalogPath: *catalogPath,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Logger.Info("Mission simulation starting",
		log.String("scenario", scenario.Name),
		log.String("fingerprint", app.Scenario.Fingerprint()),
		log.String("listen_addr", srvCfg.ListenAddr))

	return app.Run(ctx)
}

func loadScenario(path string) (mission.Config, error) {
	if path == "" {
		return mission.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return mission.Config{}, err
	}
	defer f.Close()

	cfg, err := mission.LoadYAML(f)
	if err != nil {
		return mission.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return *cfg, nil
}
