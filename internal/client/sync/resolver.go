package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/vmartynov/offsync/internal/client/models"
	"github.com/vmartynov/offsync/internal/client/remote"
)

// Strategy is the closed set of conflict resolutions.
type Strategy string

const (
	// StrategyRemoteWins discards the local pending change and overwrites
	// local fields from the remote version. For entities regenerated
	// authoritatively server-side.
	StrategyRemoteWins Strategy = "remote_wins"

	// StrategyLocalWins pushes the local change set unconditionally. For
	// exclusively user-authored entities where the device must never silently
	// lose work.
	StrategyLocalWins Strategy = "local_wins"

	// StrategyMerge keeps local values for locally-changed fields and remote
	// values for everything else, with optional per-field combine functions.
	// A kind using merge without declaring any combine function still gets
	// this field-level merge; remote-wins applies only to kinds with no
	// policy entry at all (see Policy.For).
	StrategyMerge Strategy = "merge"

	// StrategyDefer parks the record and surfaces both versions to the
	// caller; the record stays in the conflict state until an explicit
	// resolution arrives.
	StrategyDefer Strategy = "defer"
)

// MergeFunc combines a locally-changed value with the remote value for one
// field. JSON numbers arrive as float64.
type MergeFunc func(local, remote any) any

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// MergeMax keeps the larger of two numeric values; non-numeric input falls
// back to the local value.
func MergeMax(local, remote any) any {
	l, okL := toFloat(local)
	r, okR := toFloat(remote)
	if !okL || !okR {
		return local
	}
	if r > l {
		return remote
	}
	return local
}

// MergeSum adds two numeric counters; non-numeric input falls back to the
// local value.
func MergeSum(local, remote any) any {
	l, okL := toFloat(local)
	r, okR := toFloat(remote)
	if !okL || !okR {
		return local
	}
	return l + r
}

// KindPolicy is the static conflict policy of one entity kind.
type KindPolicy struct {
	Strategy   Strategy
	FieldMerge map[string]MergeFunc
}

// Policy maps entity kinds to their conflict policies. Kinds without an entry
// resolve remote-wins: the merge strategy degrades to it when nothing is
// declared for the kind.
type Policy map[models.Kind]KindPolicy

// For returns the policy for kind, defaulting to remote-wins.
func (p Policy) For(kind models.Kind) KindPolicy {
	if kp, ok := p[kind]; ok {
		return kp
	}
	return KindPolicy{Strategy: StrategyRemoteWins}
}

// DefaultPolicy is the static per-kind table: heroes merge field-wise with the
// mission counter combined by max, stories are user-authored prose (local
// wins), feedback is curated server-side (remote wins).
func DefaultPolicy() Policy {
	return Policy{
		models.KindHero: {
			Strategy:   StrategyMerge,
			FieldMerge: map[string]MergeFunc{"missions": MergeMax},
		},
		models.KindStory:    {Strategy: StrategyLocalWins},
		models.KindFeedback: {Strategy: StrategyRemoteWins},
	}
}

// ParseStrategy maps a configuration value onto a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case StrategyRemoteWins, StrategyLocalWins, StrategyMerge, StrategyDefer:
		return s, nil
	default:
		return "", fmt.Errorf("unknown conflict strategy %q", name)
	}
}

// Override replaces the strategy for kind, keeping any field-merge functions
// already declared for it.
func (p Policy) Override(kind models.Kind, s Strategy) {
	kp := p.For(kind)
	kp.Strategy = s
	p[kind] = kp
}

// Resolver applies a resolution strategy to a conflicted record. It is pure
// with respect to the remote API except for the strategies that push a
// reconciled result back (local-wins and merge).
type Resolver struct {
	remote remote.Client
	now    func() time.Time
}

func NewResolver(rc remote.Client) *Resolver {
	return &Resolver{remote: rc, now: time.Now}
}

// Resolve reconciles rec with the observed remote version in place. The
// deferred strategy is not handled here; the engine parks the record and
// emits an event instead of calling Resolve.
func (r *Resolver) Resolve(ctx context.Context, rec *models.Record, current remote.Upstream, pol KindPolicy) error {
	switch pol.Strategy {
	case StrategyLocalWins:
		return r.pushAndAdopt(ctx, rec, rec.PendingChanges)
	case StrategyMerge:
		return r.pushAndAdopt(ctx, rec, mergeFields(rec.PendingChanges, current.Fields, pol.FieldMerge))
	case StrategyRemoteWins:
		r.adoptRemote(rec, current)
		return nil
	case StrategyDefer:
		return fmt.Errorf("deferred strategy cannot be resolved automatically")
	default:
		return fmt.Errorf("unknown conflict strategy %q", pol.Strategy)
	}
}

// adoptRemote overwrites local fields from the remote version.
func (r *Resolver) adoptRemote(rec *models.Record, current remote.Upstream) {
	rec.Fields = current.Fields.Clone()
	rec.MarkSynced(current.ServerID, current.UpdatedAt, r.now())
}

// pushAndAdopt writes changed to the server with no precondition check, an
// unconditional overwrite, and adopts whatever the server returns.
func (r *Resolver) pushAndAdopt(ctx context.Context, rec *models.Record, changed models.Fields) error {
	up, err := r.remote.Update(ctx, rec.Kind, rec.ServerID, changed, time.Time{})
	if err != nil {
		return err
	}
	rec.Fields = up.Fields.Clone()
	rec.MarkSynced(up.ServerID, up.UpdatedAt, r.now())
	return nil
}

// mergeFields keeps local values for fields in the change set (combined by a
// field function where one is declared) and remote values for the rest. The
// result always contains every locally-changed field.
func mergeFields(changes, remoteFields models.Fields, fieldMerge map[string]MergeFunc) models.Fields {
	merged := remoteFields.Clone()
	if merged == nil {
		merged = models.Fields{}
	}
	for f, local := range changes {
		if fn, ok := fieldMerge[f]; ok {
			merged[f] = fn(local, remoteFields[f])
			continue
		}
		merged[f] = local
	}
	return merged
}
