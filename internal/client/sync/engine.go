package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmartynov/offsync/internal/client/models"
	"github.com/vmartynov/offsync/internal/client/remote"
	"github.com/vmartynov/offsync/internal/client/repositories/records"
	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/logging"
)

// ErrOffline is returned when the reachability collaborator reports no
// network and the cycle therefore never starts.
var ErrOffline = errors.New("network unreachable, sync cycle not started")

// Summary reports what a sync cycle accomplished.
type Summary struct {
	Created   int
	Updated   int
	Deleted   int
	Pulled    int
	Conflicts int
	Failed    int
}

// ConflictEvent is emitted when a record's conflict policy defers resolution
// to the caller. Both versions are surfaced; the record stays parked in the
// conflict state until ResolveConflict is called with an explicit strategy.
type ConflictEvent struct {
	LocalID string
	Kind    models.Kind
	Local   models.Fields
	Remote  models.Fields
}

// EngineConfig tunes a sync engine. Zero values fall back to defaults.
type EngineConfig struct {
	// Kinds lists the entity kinds to sync, in processing order.
	Kinds []models.Kind

	// MaxInFlight bounds concurrent remote calls within one phase.
	MaxInFlight int

	// CycleBudget is the wall-clock budget of one cycle. Work left when it
	// runs out is deferred to the next trigger, not an error.
	CycleBudget time.Duration
}

// Engine orchestrates the synchronization cycle: push local pending changes,
// pull remote changes, and resolve conflicts along the way. Safe to invoke
// repeatedly; the scheduler guarantees at most one cycle runs at a time.
type Engine struct {
	store    records.Repository
	remote   remote.Client
	resolver *Resolver
	policy   Policy
	retry    *RetryPolicy
	log      logging.Logger

	kinds       []models.Kind
	maxInFlight int
	cycleBudget time.Duration

	// reachable is the external connectivity signal; nil means assume online.
	reachable func() bool

	onConflict func(ConflictEvent)
	now        func() time.Time
}

// NewEngine wires an engine from its collaborators. policy and retry may be
// nil for the defaults.
func NewEngine(store records.Repository, rc remote.Client, policy Policy, retry *RetryPolicy, log logging.Logger, cfg EngineConfig) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = models.Kinds()
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 6
	}
	if cfg.CycleBudget <= 0 {
		cfg.CycleBudget = 90 * time.Second
	}
	return &Engine{
		store:       store,
		remote:      rc,
		resolver:    NewResolver(rc),
		policy:      policy,
		retry:       retry,
		log:         log.With("component", "sync"),
		kinds:       cfg.Kinds,
		maxInFlight: cfg.MaxInFlight,
		cycleBudget: cfg.CycleBudget,
		now:         time.Now,
	}
}

// SetReachability installs the connectivity signal consulted before a cycle
// starts.
func (e *Engine) SetReachability(fn func() bool) { e.reachable = fn }

// SetConflictHandler installs the deferred-conflict handoff. The handler runs
// on the cycle's goroutine and must not block on user interaction; park the
// event and return.
func (e *Engine) SetConflictHandler(fn func(ConflictEvent)) { e.onConflict = fn }

// counters aggregates a cycle's results across phase goroutines.
type counters struct {
	created, updated, deleted, pulled, conflicts, failed atomic.Int64
}

func (c *counters) summary() *Summary {
	return &Summary{
		Created:   int(c.created.Load()),
		Updated:   int(c.updated.Load()),
		Deleted:   int(c.deleted.Load()),
		Pulled:    int(c.pulled.Load()),
		Conflicts: int(c.conflicts.Load()),
		Failed:    int(c.failed.Load()),
	}
}

// RunSyncCycle executes one full cycle and returns its summary. Per-record
// failures are recorded in the store, never returned; the only error cases
// are a cycle that could not start at all and a cancelled context.
func (e *Engine) RunSyncCycle(ctx context.Context) (*Summary, error) {
	if e.reachable != nil && !e.reachable() {
		return nil, ErrOffline
	}

	ctx, cancel := context.WithTimeout(ctx, e.cycleBudget)
	defer cancel()

	start := e.now()
	cts := &counters{}

	for _, kind := range e.kinds {
		if ctx.Err() != nil {
			// Budget exhausted: remaining records wait for the next trigger.
			e.log.Warn(ctx, "cycle budget exhausted, deferring remaining work", "kind", kind)
			break
		}
		e.pushCreates(ctx, kind, cts)
		e.pushUpdates(ctx, kind, cts)
		e.pushDeletes(ctx, kind, cts)
		e.pull(ctx, kind, cts)
	}

	s := cts.summary()
	e.log.Info(ctx, "cycle finished",
		"took", e.now().Sub(start).String(),
		"created", s.Created, "updated", s.Updated, "deleted", s.Deleted,
		"pulled", s.Pulled, "conflicts", s.Conflicts, "failed", s.Failed)
	return s, nil
}

// pending returns the records waiting on op: those in the matching pending
// status plus failed records whose retry gate has opened.
func (e *Engine) pending(ctx context.Context, kind models.Kind, status models.SyncStatus, op models.Op) ([]*models.Record, error) {
	recs, err := e.store.ListByStatus(ctx, kind, status, models.StatusFailed)
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := recs[:0]
	for _, r := range recs {
		if r.SyncStatus == status {
			out = append(out, r)
			continue
		}
		if r.PendingOp == op && r.RetryDue(now, e.retry.MaxAttempts) {
			out = append(out, r)
		}
	}
	return out, nil
}

// forEach dispatches fn over recs with bounded concurrency. fn owns exactly
// one record at a time, so metadata writes for a single record stay ordered.
// Record-level errors are handled inside fn; forEach only stops early on
// context cancellation.
func (e *Engine) forEach(ctx context.Context, recs []*models.Record, fn func(ctx context.Context, r *models.Record)) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxInFlight)
	for _, r := range recs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) pushCreates(ctx context.Context, kind models.Kind, cts *counters) {
	recs, err := e.pending(ctx, kind, models.StatusPendingCreate, models.OpCreate)
	if err != nil {
		e.log.Error(ctx, "failed to list pending creates", "kind", kind, "error", err)
		return
	}

	e.forEach(ctx, recs, func(ctx context.Context, r *models.Record) {
		up, err := e.remote.Create(ctx, kind, r.ClientKey, r.Fields)
		if err != nil {
			e.recordFailure(ctx, r, err, cts)
			return
		}
		r.Fields = up.Fields.Clone()
		r.MarkSynced(up.ServerID, up.UpdatedAt, e.now())
		if err := e.store.Save(ctx, r); err != nil {
			e.log.Error(ctx, "failed to save created record", "local_id", r.LocalID, "error", err)
			return
		}
		cts.created.Add(1)
	})
}

func (e *Engine) pushUpdates(ctx context.Context, kind models.Kind, cts *counters) {
	recs, err := e.pending(ctx, kind, models.StatusPendingUpdate, models.OpUpdate)
	if err != nil {
		e.log.Error(ctx, "failed to list pending updates", "kind", kind, "error", err)
		return
	}

	e.forEach(ctx, recs, func(ctx context.Context, r *models.Record) {
		var precondition time.Time
		if r.ServerUpdatedAt != nil {
			precondition = *r.ServerUpdatedAt
		}

		up, err := e.remote.Update(ctx, kind, r.ServerID, r.PendingChanges, precondition)

		var pe *remote.PreconditionError
		switch {
		case err == nil:
			r.Fields = up.Fields.Clone()
			r.MarkSynced(up.ServerID, up.UpdatedAt, e.now())
			if err := e.store.Save(ctx, r); err != nil {
				e.log.Error(ctx, "failed to save updated record", "local_id", r.LocalID, "error", err)
				return
			}
			cts.updated.Add(1)
		case errors.As(err, &pe):
			// Conflict detected at push time: the server's record is newer.
			e.handleConflict(ctx, r, pe.Current, cts)
		case remote.KindOf(err) == remote.KindNotFound:
			// The record vanished remotely; the remote store is
			// authoritative, so it goes away locally too.
			if err := e.store.Delete(ctx, r.LocalID); err != nil {
				e.log.Error(ctx, "failed to erase vanished record", "local_id", r.LocalID, "error", err)
				return
			}
			cts.deleted.Add(1)
		default:
			e.recordFailure(ctx, r, err, cts)
		}
	})
}

func (e *Engine) pushDeletes(ctx context.Context, kind models.Kind, cts *counters) {
	recs, err := e.pending(ctx, kind, models.StatusPendingDelete, models.OpDelete)
	if err != nil {
		e.log.Error(ctx, "failed to list pending deletes", "kind", kind, "error", err)
		return
	}

	e.forEach(ctx, recs, func(ctx context.Context, r *models.Record) {
		if r.ServerID != "" {
			if err := e.remote.Delete(ctx, kind, r.ServerID); err != nil {
				e.recordFailure(ctx, r, err, cts)
				return
			}
		}
		if err := e.store.Delete(ctx, r.LocalID); err != nil {
			e.log.Error(ctx, "failed to erase deleted record", "local_id", r.LocalID, "error", err)
			return
		}
		cts.deleted.Add(1)
	})
}

// pull fetches the remote collection and reconciles it into the local store.
// A transport failure aborts only this kind's pull; pushes already committed
// stay committed.
func (e *Engine) pull(ctx context.Context, kind models.Kind, cts *counters) {
	cursor, err := e.store.LatestSyncedAt(ctx, kind)
	if err != nil {
		e.log.Error(ctx, "failed to read pull cursor", "kind", kind, "error", err)
		return
	}

	pager := e.remote.List(ctx, kind, cursor)
	for {
		items, done, err := pager.Next(ctx)
		if err != nil {
			e.log.Warn(ctx, "pull aborted", "kind", kind, "error", err)
			return
		}
		if done {
			return
		}
		for _, item := range items {
			e.reconcile(ctx, kind, item, cts)
		}
	}
}

func (e *Engine) reconcile(ctx context.Context, kind models.Kind, item remote.Upstream, cts *counters) {
	local, err := e.store.GetByServerID(ctx, kind, item.ServerID)
	if errors.Is(err, common.ErrorNotFound) {
		rec := models.NewRemoteRecord(kind, item.ServerID, item.Fields, item.UpdatedAt, e.now())
		if err := e.store.Save(ctx, rec); err != nil {
			e.log.Error(ctx, "failed to save pulled record", "server_id", item.ServerID, "error", err)
			return
		}
		cts.pulled.Add(1)
		return
	}
	if err != nil {
		e.log.Error(ctx, "failed to look up local record", "server_id", item.ServerID, "error", err)
		return
	}

	switch local.SyncStatus {
	case models.StatusSynced:
		// No outstanding local change; adopt the remote version.
		local.Fields = item.Fields.Clone()
		local.MarkSynced(item.ServerID, item.UpdatedAt, e.now())
		if err := e.store.Save(ctx, local); err != nil {
			e.log.Error(ctx, "failed to save pulled record", "local_id", local.LocalID, "error", err)
			return
		}
		cts.pulled.Add(1)

	case models.StatusPendingDelete:
		// The tombstone wins locally; the delete phase settles it.

	case models.StatusConflict:
		// Parked awaiting an explicit resolution; heuristics must not
		// flip-flop it.

	default:
		// A local pending change exists. Strictly-newer remote timestamps
		// mean divergent concurrent edits; equal timestamps are clock noise
		// and the local change keeps waiting for its push.
		if local.ServerUpdatedAt != nil && item.UpdatedAt.After(*local.ServerUpdatedAt) {
			e.handleConflict(ctx, local, item, cts)
		}
	}
}

// handleConflict routes a divergent record through its kind's policy. All
// conflicts are counted; none is ever dropped without a markable outcome.
func (e *Engine) handleConflict(ctx context.Context, r *models.Record, current remote.Upstream, cts *counters) {
	cts.conflicts.Add(1)
	pol := e.policy.For(r.Kind)

	if pol.Strategy == StrategyDefer {
		r.MarkConflict(current.Fields, current.UpdatedAt)
		if err := e.store.Save(ctx, r); err != nil {
			e.log.Error(ctx, "failed to park conflicted record", "local_id", r.LocalID, "error", err)
			return
		}
		e.log.Info(ctx, "conflict deferred to caller", "local_id", r.LocalID, "kind", r.Kind)
		if e.onConflict != nil {
			e.onConflict(ConflictEvent{
				LocalID: r.LocalID,
				Kind:    r.Kind,
				Local:   r.Fields.Clone(),
				Remote:  current.Fields.Clone(),
			})
		}
		return
	}

	if err := e.resolver.Resolve(ctx, r, current, pol); err != nil {
		e.recordFailure(ctx, r, err, cts)
		return
	}
	if err := e.store.Save(ctx, r); err != nil {
		e.log.Error(ctx, "failed to save resolved record", "local_id", r.LocalID, "error", err)
	}
}

// ResolveConflict re-enters the engine for a record parked by the deferred
// strategy, applying the explicitly chosen resolution.
func (e *Engine) ResolveConflict(ctx context.Context, localID string, strategy Strategy) error {
	r, err := e.store.Get(ctx, localID)
	if err != nil {
		return err
	}
	if r.SyncStatus != models.StatusConflict || r.RemoteSnapshotAt == nil {
		return models.ErrUnresolvedStatus
	}

	current := remote.Upstream{
		ServerID:  r.ServerID,
		UpdatedAt: *r.RemoteSnapshotAt,
		Fields:    r.RemoteSnapshot,
	}

	pol := e.policy.For(r.Kind)
	pol.Strategy = strategy

	if err := e.resolver.Resolve(ctx, r, current, pol); err != nil {
		return err
	}
	return e.store.Save(ctx, r)
}

// recordFailure classifies err and leaves the record in the failed state:
// retryable causes get a backoff gate for the next cycle, the rest exhaust
// their attempts immediately so they surface to the user instead of cycling.
func (e *Engine) recordFailure(ctx context.Context, r *models.Record, err error, cts *counters) {
	if ctx.Err() != nil {
		// The cycle was cut short (budget expired or caller cancelled) while
		// this request was in flight. The record is not at fault: it keeps
		// its pending status and attempt count for the next trigger.
		e.log.Debug(ctx, "push interrupted, deferring record", "local_id", r.LocalID)
		return
	}

	kind := remote.KindOf(err)

	if e.retry.ShouldRetry(kind, r.Attempts) {
		next := e.now().Add(e.retry.Delay(r.Attempts))
		r.MarkFailed(err.Error(), &next)
		e.log.Warn(ctx, "push failed, will retry", "local_id", r.LocalID, "error_kind", kind, "attempt", r.Attempts)
	} else {
		r.MarkFailed(err.Error(), nil)
		r.Attempts = e.retry.MaxAttempts
		e.log.Warn(ctx, "push failed permanently", "local_id", r.LocalID, "error_kind", kind, "error", err)
	}

	if saveErr := e.store.Save(ctx, r); saveErr != nil {
		e.log.Error(ctx, "failed to save failed record", "local_id", r.LocalID, "error", saveErr)
		return
	}
	cts.failed.Add(1)
}
