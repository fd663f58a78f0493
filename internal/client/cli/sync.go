package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	syncx "github.com/vmartynov/offsync/internal/client/sync"
)

// sync runs an explicit refresh. A cycle already in flight is reported, not
// queued; its results land in the same place either way.
func (a *App) sync(ctx context.Context) {
	s, err := a.scheduler.RunNow(ctx)
	if errors.Is(err, syncx.ErrCycleInFlight) {
		fmt.Println("Sync already running")
		return
	}
	if errors.Is(err, syncx.ErrOffline) {
		fmt.Println("Offline, sync skipped")
		return
	}
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Printf("Synced: %d created, %d updated, %d deleted, %d pulled, %d conflicts, %d failed\n",
		s.Created, s.Updated, s.Deleted, s.Pulled, s.Conflicts, s.Failed)
}

func (a *App) conflicts(ctx context.Context) {
	rows, err := a.recordService.Conflicts(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	if len(rows) == 0 {
		fmt.Println("No conflicts")
		return
	}
	for _, r := range rows {
		fmt.Printf("%s  %-8s  local=%v  remote=%v\n", r.LocalID, r.Kind, r.Fields, r.RemoteSnapshot)
	}
}

func (a *App) resolve(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: resolve <id> <local|remote|merge>")
		return
	}

	var strategy syncx.Strategy
	switch args[1] {
	case "local":
		strategy = syncx.StrategyLocalWins
	case "remote":
		strategy = syncx.StrategyRemoteWins
	case "merge":
		strategy = syncx.StrategyMerge
	default:
		fmt.Println("Unknown resolution:", args[1])
		return
	}

	if err := a.engine.ResolveConflict(ctx, args[0], strategy); err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Println("Resolved")
}

func (a *App) retry(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: retry <id>")
		return
	}
	if err := a.recordService.Retry(ctx, args[0]); err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Println("Retry scheduled")
}

func (a *App) failed(ctx context.Context) {
	rows, err := a.recordService.Failed(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	if len(rows) == 0 {
		fmt.Println("No failed records")
		return
	}
	for _, r := range rows {
		fmt.Printf("%s  %-8s  attempts=%d  %s\n", r.LocalID, r.Kind, r.Attempts, r.LastError)
	}
}
