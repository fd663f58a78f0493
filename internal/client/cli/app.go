package cli

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/vmartynov/offsync/internal/client/config"
	"github.com/vmartynov/offsync/internal/client/models"
	"github.com/vmartynov/offsync/internal/client/remote"
	"github.com/vmartynov/offsync/internal/client/repositories/records"
	"github.com/vmartynov/offsync/internal/client/services"
	syncx "github.com/vmartynov/offsync/internal/client/sync"
	"github.com/vmartynov/offsync/internal/logging"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config        *config.Config
	api           *remote.HTTPClient
	recordService services.RecordService
	engine        *syncx.Engine
	scheduler     *syncx.Scheduler

	token    atomic.Value // string
	userName string
	mode     atomic.Value // Mode
	reader   *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	db, err := records.Open(ctx, c.DatabaseDSN)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	app := &App{config: c, reader: bufio.NewReader(os.Stdin)}
	app.token.Store("")
	app.mode.Store(ModeOffline)

	app.api = remote.NewHTTPClient(c.ServerAddr, func(ctx context.Context) (string, error) {
		return app.token.Load().(string), nil
	}, nil)

	repo := records.NewSQLiteRepository(db)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	policy := syncx.DefaultPolicy()
	for kind, name := range c.ConflictStrategies {
		strategy, err := syncx.ParseStrategy(name)
		if err != nil {
			log.Printf("ignoring conflict strategy for %q: %s", kind, err)
			continue
		}
		policy.Override(models.Kind(kind), strategy)
	}

	app.engine = syncx.NewEngine(repo, app.api, policy, nil, logger, syncx.EngineConfig{
		MaxInFlight: c.MaxInFlight,
		CycleBudget: c.CycleBudget,
	})
	app.engine.SetReachability(func() bool { return app.Mode() == ModeOnline })
	app.engine.SetConflictHandler(func(ev syncx.ConflictEvent) {
		log.Printf("conflict on %s %s: resolve it with 'conflicts' and 'resolve'", ev.Kind, ev.LocalID)
	})

	app.scheduler = syncx.NewScheduler(app.engine, logger, c.SyncInterval)
	app.recordService = services.NewRecordService(repo, app.scheduler)

	return app, nil
}

func (a *App) Mode() Mode {
	return a.mode.Load().(Mode)
}

func (a *App) setMode(mode Mode) {
	if a.Mode() != mode {
		a.mode.Store(mode)
		log.Printf("Switched to %s mode\n", mode)
		if mode == ModeOnline {
			a.scheduler.OnConnectivityRestored()
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.token.Load().(string) != ""
}

// Run services scheduled sync cycles and the interactive loop until the
// context is cancelled or the user exits.
func (a *App) Run(ctx context.Context) {
	go a.scheduler.Run(ctx)
	go a.StartOnlineStatusWatcher(ctx, 15*time.Second)
	a.Root(ctx)
}

// StartOnlineStatusWatcher probes server reachability on a ticker and flips
// the connectivity mode, which in turn gates sync cycles.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.api.Ping(probeCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
