package sync

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	stdsync "sync"
	"time"

	"github.com/vmartynov/offsync/internal/client/models"
	"github.com/vmartynov/offsync/internal/client/remote"
)

// fakeClock is a manually advanced time source shared by the engine and the
// fake remote in tests.
type fakeClock struct {
	mu stdsync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeRemote is an in-memory authoritative store implementing remote.Client,
// with per-operation fault injection.
type fakeRemote struct {
	mu    stdsync.Mutex
	clock *fakeClock

	records map[models.Kind]map[string]remote.Upstream
	byKey   map[string]remote.Upstream
	nextID  int

	createErr map[string]error // keyed by idempotency key
	updateErr map[string]error // keyed by server id
	listErr   error

	// createHook runs at the start of every Create, outside the store lock.
	// A non-nil return is passed through as the call's result.
	createHook func(ctx context.Context) error

	createCalls int
	pageSize    int
}

func newFakeRemote(clock *fakeClock) *fakeRemote {
	return &fakeRemote{
		clock:     clock,
		records:   map[models.Kind]map[string]remote.Upstream{},
		byKey:     map[string]remote.Upstream{},
		createErr: map[string]error{},
		updateErr: map[string]error{},
		pageSize:  2,
	}
}

func (f *fakeRemote) collection(kind models.Kind) map[string]remote.Upstream {
	if f.records[kind] == nil {
		f.records[kind] = map[string]remote.Upstream{}
	}
	return f.records[kind]
}

// seed inserts a record server-side and returns its identity.
func (f *fakeRemote) seed(kind models.Kind, fields models.Fields, updatedAt time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.collection(kind)[id] = remote.Upstream{ServerID: id, UpdatedAt: updatedAt, Fields: fields.Clone()}
	return id
}

func (f *fakeRemote) get(kind models.Kind, serverID string) (remote.Upstream, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.collection(kind)[serverID]
	return up, ok
}

// touch bumps a record's fields and timestamp, simulating a concurrent edit
// from another device.
func (f *fakeRemote) touch(kind models.Kind, serverID string, fields models.Fields, updatedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	up := f.collection(kind)[serverID]
	for k, v := range fields {
		if up.Fields == nil {
			up.Fields = models.Fields{}
		}
		up.Fields[k] = v
	}
	up.UpdatedAt = updatedAt
	f.collection(kind)[serverID] = up
}

func (f *fakeRemote) Create(ctx context.Context, kind models.Kind, clientKey string, fields models.Fields) (*remote.Upstream, error) {
	f.mu.Lock()
	hook := f.createHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if err := f.createErr[clientKey]; err != nil {
		delete(f.createErr, clientKey)
		return nil, err
	}

	if up, ok := f.byKey[clientKey]; ok {
		return &up, nil
	}

	f.nextID++
	up := remote.Upstream{
		ServerID:  strconv.Itoa(f.nextID),
		UpdatedAt: f.clock.Now(),
		Fields:    fields.Clone(),
	}
	f.collection(kind)[up.ServerID] = up
	f.byKey[clientKey] = up
	return &up, nil
}

func (f *fakeRemote) Update(ctx context.Context, kind models.Kind, serverID string, changed models.Fields, precondition time.Time) (*remote.Upstream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.updateErr[serverID]; err != nil {
		delete(f.updateErr, serverID)
		return nil, err
	}

	up, ok := f.collection(kind)[serverID]
	if !ok {
		return nil, remote.NewError(remote.KindNotFound, fmt.Errorf("no record %s", serverID))
	}
	if !precondition.IsZero() && up.UpdatedAt.After(precondition) {
		return nil, &remote.PreconditionError{Current: up}
	}

	if up.Fields == nil {
		up.Fields = models.Fields{}
	}
	for k, v := range changed {
		up.Fields[k] = v
	}
	up.UpdatedAt = f.clock.Now()
	f.collection(kind)[serverID] = up
	return &up, nil
}

func (f *fakeRemote) Delete(ctx context.Context, kind models.Kind, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Absent records delete successfully; the operation is idempotent.
	delete(f.collection(kind), serverID)
	return nil
}

type fakePager struct {
	items []remote.Upstream
	size  int
	err   error
	done  bool
}

func (p *fakePager) Next(ctx context.Context) ([]remote.Upstream, bool, error) {
	if p.err != nil {
		return nil, false, p.err
	}
	if p.done || len(p.items) == 0 {
		return nil, true, nil
	}
	n := p.size
	if n > len(p.items) {
		n = len(p.items)
	}
	page := p.items[:n]
	p.items = p.items[n:]
	if len(p.items) == 0 {
		p.done = true
	}
	return page, false, nil
}

func (f *fakeRemote) List(ctx context.Context, kind models.Kind, updatedSince *time.Time) remote.Pager {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return &fakePager{err: f.listErr}
	}

	var items []remote.Upstream
	for _, up := range f.collection(kind) {
		if updatedSince != nil && !up.UpdatedAt.After(*updatedSince) {
			continue
		}
		items = append(items, up)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ServerID < items[j].ServerID
		}
		return items[i].UpdatedAt.Before(items[j].UpdatedAt)
	})
	return &fakePager{items: items, size: f.pageSize}
}
