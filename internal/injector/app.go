package injector

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/missionsim/internal/core/clock"
	"github.com/zeusync/missionsim/internal/core/mission"
	"github.com/zeusync/missionsim/internal/core/observability/log"
	"github.com/zeusync/missionsim/internal/server"
)

// App is the assembled process.
type App struct {
	Logger    log.Log
	Scheduler *clock.Scheduler
	Scenario  *mission.Scenario
	Server    *server.Server
}

func NewApp(logger log.Log, sched *clock.Scheduler, sc *mission.Scenario, srv *server.Server) *App {
	return &App{Logger: logger, Scheduler: sched, Scenario: sc, Server: srv}
}

// Run launches the scenario and serves it until ctx is cancelled. The server
// keeps serving the final snapshot after the mission is accomplished. On
// return no process is left on the scheduler.
func (a *App) Run(ctx context.Context) error {
	defer a.Scheduler.StopAll()
	if err := a.Scenario.Start(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Scheduler.Run(ctx) })
	g.Go(func() error { return a.Server.Run(ctx) })
	g.Go(func() error {
		select {
		case <-a.Scenario.Done():
			snap := a.Scenario.Snapshot()
			a.Logger.Info("Mission accomplished",
				log.String("run_id", snap.RunID),
				log.Duration("elapsed", snap.Elapsed))
		case <-ctx.Done():
		}
		return nil
	})
	return g.Wait()
}
