package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwsync/internal/domain"
	"fwsync/internal/ports"
	"fwsync/internal/queue"
	"fwsync/internal/store"
)

// fakeCollector returns canned rows per kind, fails kinds listed in failKinds
// and invokes onExport hooks before answering, which lets tests cancel a task
// mid-flight.
type fakeCollector struct {
	mu        sync.Mutex
	calls     map[domain.SyncKind]int
	failKinds map[domain.SyncKind]error
	onExport  func(kind domain.SyncKind)

	policies []ports.PolicyRow
	objects  []ports.ObjectRow
	usage    []ports.UsageRow
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{
		calls:     map[domain.SyncKind]int{},
		failKinds: map[domain.SyncKind]error{},
		policies: []ports.PolicyRow{
			{Seq: 1, RuleName: "allow-web", Action: "allow"},
			{Seq: 2, RuleName: "deny-all", Action: "deny"},
		},
		objects: []ports.ObjectRow{{Name: "dmz-web", Type: "ip-netmask", Value: "10.1.0.10/32"}},
		usage: []ports.UsageRow{
			{RuleName: "allow-web", LastHitDate: "2026-08-20 10:00:00", UnusedDays: 3, UsageStatus: "used"},
		},
	}
}

func (f *fakeCollector) enter(kind domain.SyncKind) error {
	f.mu.Lock()
	f.calls[kind]++
	hook := f.onExport
	err := f.failKinds[kind]
	f.mu.Unlock()
	if hook != nil {
		hook(kind)
	}
	return err
}

func (f *fakeCollector) callCount(kind domain.SyncKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeCollector) GetSystemInfo(context.Context) (ports.SystemInfoRecord, error) {
	if err := f.enter(domain.KindSystemInfo); err != nil {
		return ports.SystemInfoRecord{}, err
	}
	return ports.SystemInfoRecord{Hostname: "fw-lab", Model: "PA-220", Version: "10.2"}, nil
}

func (f *fakeCollector) ExportSecurityRules(context.Context) ([]ports.PolicyRow, error) {
	if err := f.enter(domain.KindPolicies); err != nil {
		return nil, err
	}
	return f.policies, nil
}

func (f *fakeCollector) ExportNetworkObjects(context.Context) ([]ports.ObjectRow, error) {
	if err := f.enter(domain.KindNetworkObjects); err != nil {
		return nil, err
	}
	return f.objects, nil
}

func (f *fakeCollector) ExportNetworkGroups(context.Context) ([]ports.GroupRow, error) {
	if err := f.enter(domain.KindNetworkGroups); err != nil {
		return nil, err
	}
	return []ports.GroupRow{{Name: "trusted-nets", Members: "dmz-web"}}, nil
}

func (f *fakeCollector) ExportServiceObjects(context.Context) ([]ports.ServiceRow, error) {
	if err := f.enter(domain.KindServiceObjects); err != nil {
		return nil, err
	}
	return []ports.ServiceRow{{Name: "tcp-443", Protocol: "tcp", Port: "443"}}, nil
}

func (f *fakeCollector) ExportServiceGroups(context.Context) ([]ports.GroupRow, error) {
	if err := f.enter(domain.KindServiceGroups); err != nil {
		return nil, err
	}
	return []ports.GroupRow{{Name: "web-services", Members: "tcp-443"}}, nil
}

func (f *fakeCollector) ExportUsageLogs(_ context.Context, _ int) ([]ports.UsageRow, error) {
	if err := f.enter(domain.KindUsageLogs); err != nil {
		return nil, err
	}
	return f.usage, nil
}

type fakeFactory struct {
	collector ports.Collector
}

func (f *fakeFactory) Collector(domain.Device) (ports.Collector, error) {
	return f.collector, nil
}

type captureEvents struct {
	mu     sync.Mutex
	events []ports.Event
}

func (p *captureEvents) Publish(_ context.Context, e ports.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *captureEvents) progressValues() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []int
	for _, e := range p.events {
		if e.Type == "progress" {
			out = append(out, e.Progress)
		}
	}
	return out
}

type testEnv struct {
	db        *store.DB
	queue     *queue.Service
	devices   *store.DeviceStore
	history   *store.HistoryStore
	entities  *store.EntityStore
	collector *fakeCollector
	events    *captureEvents
	manager   *Manager
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:        db,
		devices:   store.NewDeviceStore(db),
		history:   store.NewHistoryStore(db),
		entities:  store.NewEntityStore(db),
		collector: newFakeCollector(),
		events:    &captureEvents{},
	}
	env.queue = queue.New(store.NewTaskStore(db), env.devices, env.events)
	env.manager = NewManager(env.queue, env.devices, env.history, env.entities,
		&fakeFactory{collector: env.collector}, opts...)
	return env
}

func (env *testEnv) createDevice(t *testing.T) *domain.Device {
	t.Helper()
	d := &domain.Device{
		Name:      "edge-fw-1",
		Category:  domain.CategoryFirewall,
		Vendor:    domain.VendorMock,
		IPAddress: "10.0.0.1",
		Port:      443,
	}
	require.NoError(t, env.devices.Create(context.Background(), d))
	return d
}

func (env *testEnv) enqueue(t *testing.T, deviceID int64, kinds ...domain.SyncKind) *domain.Task {
	t.Helper()
	task, err := env.queue.CreateTask(context.Background(), queue.CreateParams{
		DeviceID: deviceID,
		Kinds:    kinds,
	})
	require.NoError(t, err)
	return task
}

func TestProcessTaskAllKindsSucceed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.createDevice(t)
	task := env.enqueue(t, device.ID, domain.KindPolicies, domain.KindNetworkObjects)

	require.NoError(t, env.manager.ProcessTask(ctx, task.ID))

	done, err := env.queue.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "all sync kinds completed", done.Message)

	// Weighted progress: policies 30, network objects 20 out of 50 total.
	values := env.events.progressValues()
	assert.Equal(t, []int{0, 60, 60, 100}, values)

	// Data landed.
	count, err := env.entities.CountPolicies(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Both kinds share the task's batch id in history.
	entries, err := env.history.ListByBatch(ctx, task.BatchID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.KindPolicies, entries[0].Kind)
	assert.Equal(t, domain.KindNetworkObjects, entries[1].Kind)
	for _, e := range entries {
		assert.Equal(t, domain.ResultSuccess, e.Result)
		assert.True(t, e.IsBatch)
	}
}

func TestProcessTaskCanonicalOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.createDevice(t)

	// Requested backwards; execution follows canonical order.
	task := env.enqueue(t, device.ID, domain.KindUsageLogs, domain.KindPolicies, domain.KindSystemInfo)
	require.NoError(t, env.manager.ProcessTask(ctx, task.ID))

	entries, err := env.history.ListByBatch(ctx, task.BatchID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.KindSystemInfo, entries[0].Kind)
	assert.Equal(t, domain.KindPolicies, entries[1].Kind)
	assert.Equal(t, domain.KindUsageLogs, entries[2].Kind)
}

func TestProcessTaskKindFailureIsolated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.createDevice(t)
	env.collector.failKinds[domain.KindNetworkObjects] = errors.New("connection refused")

	task := env.enqueue(t, device.ID, domain.KindPolicies, domain.KindNetworkObjects, domain.KindServiceObjects)
	err := env.manager.ProcessTask(ctx, task.ID)
	require.Error(t, err)

	done, err := env.queue.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, done.Status)
	assert.Equal(t, "one or more sync kinds failed", done.Message)

	// The failing kind did not stop its siblings.
	assert.Equal(t, 1, env.collector.callCount(domain.KindServiceObjects))
	count, err := env.entities.CountPolicies(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := env.history.ListByBatch(ctx, task.BatchID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ResultSuccess, entries[0].Result)
	assert.Equal(t, domain.ResultFailed, entries[1].Result)
	assert.Equal(t, "connection refused", entries[1].Message)
	assert.Equal(t, domain.ResultSuccess, entries[2].Result)
}

func TestProcessTaskCanceledMidFlight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.createDevice(t)

	task := env.enqueue(t, device.ID, domain.KindPolicies, domain.KindNetworkObjects)

	// Cancel lands while the first kind's collector call is in flight. The
	// orchestrator observes it at the next boundary and stops.
	env.collector.onExport = func(kind domain.SyncKind) {
		if kind == domain.KindPolicies {
			_, err := env.queue.Cancel(ctx, task.ID)
			require.NoError(t, err)
		}
	}

	err := env.manager.ProcessTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrCanceled)

	done, err := env.queue.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, done.Status)
	assert.Equal(t, "canceled by user", done.Message)

	// The remaining kind never ran.
	assert.Equal(t, 0, env.collector.callCount(domain.KindNetworkObjects))
}

func TestProcessTaskSingleKindNotBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.createDevice(t)

	task := env.enqueue(t, device.ID, domain.KindSystemInfo)
	require.NoError(t, env.manager.ProcessTask(ctx, task.ID))

	info, err := env.entities.GetSystemInfo(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "fw-lab", info.Hostname)

	// A single-kind task correlates history by its own id.
	entries, err := env.history.ListByBatch(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsBatch)
	assert.Equal(t, "synchronized system info", entries[0].Message)
}

func TestProcessTaskUsageAnnotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.createDevice(t)

	task := env.enqueue(t, device.ID, domain.KindPolicies, domain.KindUsageLogs)
	require.NoError(t, env.manager.ProcessTask(ctx, task.ID))

	p, err := env.entities.GetPolicy(ctx, device.ID, "allow-web")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.LastHitDate)
	assert.Equal(t, "used", p.UsageStatus)
	assert.Equal(t, 3, p.UnusedDays)

	entries, err := env.history.ListByBatch(ctx, task.BatchID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "synchronized usage for 1 policies", entries[1].Message)
}

func TestProcessTaskMissingDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.createDevice(t)
	task := env.enqueue(t, device.ID, domain.KindPolicies)

	// The device disappears between admission and execution.
	_, err := env.db.ExecContext(ctx, `PRAGMA foreign_keys=OFF`)
	require.NoError(t, err)
	_, err = env.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, device.ID)
	require.NoError(t, err)

	err = env.manager.ProcessTask(ctx, task.ID)
	require.Error(t, err)

	done, err := env.queue.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, done.Status)
	assert.Equal(t, 0, env.collector.callCount(domain.KindPolicies))
}

func TestProcessTaskNotPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.createDevice(t)

	task := env.enqueue(t, device.ID, domain.KindPolicies)
	require.NoError(t, env.manager.ProcessTask(ctx, task.ID))

	// Reprocessing a finished task is rejected at start.
	err := env.manager.ProcessTask(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestParseHitDate(t *testing.T) {
	got := parseHitDate("2026-08-20 10:00:00")
	require.NotNil(t, got)
	assert.Equal(t, 2026, got.Year())

	got = parseHitDate("2026-08-20")
	require.NotNil(t, got)
	assert.Equal(t, 20, got.Day())

	assert.Nil(t, parseHitDate(""))
	assert.Nil(t, parseHitDate("never"))
}

func TestProcessTaskFullRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.createDevice(t)
	task := env.enqueue(t, device.ID, domain.KindAll)

	require.NoError(t, env.manager.ProcessTask(ctx, task.ID))

	for _, kind := range domain.AllKinds() {
		assert.Equal(t, 1, env.collector.callCount(kind), "kind %s", kind)
	}
	entries, err := env.history.ListByBatch(ctx, task.BatchID)
	require.NoError(t, err)
	assert.Len(t, entries, len(domain.AllKinds()))

	uuid.MustParse(task.BatchID)
}
