package fleet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"armada/pkg/engine"
	"armada/pkg/model"
)

// fakeRuntime is an in-memory engine.Runtime that honors the interface
// contracts: idempotent Remove, absent-as-status, metrics sentinel for
// non-running containers.
type fakeRuntime struct {
	mu         sync.Mutex
	containers map[string]*fakeContainer
	order      []string

	listErr    error
	createErr  error
	inspectErr map[string]error
	metricsErr map[string]error

	// startDead makes newly created containers come up not running, to
	// exercise startup verification failures.
	startDead bool

	nextID int
}

type fakeContainer struct {
	id      string
	running bool
	created time.Time
	logs    []string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		containers: make(map[string]*fakeContainer),
		inspectErr: make(map[string]error),
		metricsErr: make(map[string]error),
	}
}

// add seeds a container directly, as if an out-of-band actor created it.
func (f *fakeRuntime) add(name string, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.containers[name] = &fakeContainer{
		id:      fmt.Sprintf("ctr-%d", f.nextID),
		running: running,
		created: time.Now(),
	}
	f.order = append(f.order, name)
}

// drop simulates an out-of-band removal.
func (f *fakeRuntime) drop(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(name)
}

func (f *fakeRuntime) removeLocked(name string) {
	delete(f.containers, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fakeRuntime) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for name := range f.containers {
		if strings.HasPrefix(name, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeRuntime) CreateAndStart(_ context.Context, name string, _ engine.Spec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return "", err
	}
	f.nextID++
	c := &fakeContainer{
		id:      fmt.Sprintf("ctr-%d", f.nextID),
		running: !f.startDead,
		created: time.Now(),
	}
	if f.startDead {
		c.logs = []string{"worker: fatal: identity handshake refused", "worker: exiting"}
	}
	if _, exists := f.containers[name]; !exists {
		f.order = append(f.order, name)
	}
	f.containers[name] = c
	return c.id, nil
}

func (f *fakeRuntime) Stop(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[name]; ok {
		c.running = false
	}
	return nil
}

func (f *fakeRuntime) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(name)
	return nil
}

func (f *fakeRuntime) List(_ context.Context, namePrefix string) ([]engine.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []engine.Info
	for _, name := range f.order {
		if !strings.HasPrefix(name, namePrefix) {
			continue
		}
		out = append(out, engine.Info{Name: name, Running: f.containers[name].running})
	}
	return out, nil
}

func (f *fakeRuntime) InspectStatus(_ context.Context, name string) (model.ContainerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.inspectErr[name]; err != nil {
		return model.ContainerStatus{}, err
	}
	c, ok := f.containers[name]
	if !ok {
		return model.ContainerStatus{State: model.StateAbsent}, nil
	}
	state := model.StateStopped
	if c.running {
		state = model.StateRunning
	}
	return model.ContainerStatus{State: state, CreatedAt: c.created}, nil
}

func (f *fakeRuntime) Metrics(_ context.Context, name string) (model.Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.metricsErr[name]; err != nil {
		return model.Metrics{}, err
	}
	c, ok := f.containers[name]
	if !ok || !c.running {
		return model.Metrics{}, nil
	}
	return model.Metrics{
		Available:  true,
		CPUPercent: 3.5,
		MemUsage:   64 << 20,
		MemLimit:   512 << 20,
	}, nil
}

func (f *fakeRuntime) StreamLogs(_ context.Context, name string, _ bool) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return nil, fmt.Errorf("no such container: %s", name)
	}
	return io.NopCloser(strings.NewReader(strings.Join(c.logs, "\n"))), nil
}

func (f *fakeRuntime) TailLogs(_ context.Context, name string, n int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return nil, nil
	}
	if len(c.logs) > n {
		return c.logs[len(c.logs)-n:], nil
	}
	return c.logs, nil
}

// fakeScheduler is an in-memory cron.Scheduler.
type fakeScheduler struct {
	mu         sync.Mutex
	entries    map[string]string
	installErr error
	removeErr  error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{entries: make(map[string]string)}
}

func (s *fakeScheduler) Install(ref, expr, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.installErr != nil {
		return s.installErr
	}
	s.entries[ref] = expr + " " + command
	return nil
}

func (s *fakeScheduler) Remove(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.entries, ref)
	return nil
}

func (s *fakeScheduler) entry(ref string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ref]
	return e, ok
}

// newTestController wires a controller over the fakes with temp directories
// and a quiet logger.
func newTestController(t *testing.T, rt *fakeRuntime, sched *fakeScheduler) (*Controller, Resolver) {
	t.Helper()
	resolver := Resolver{LogDir: t.TempDir(), CronDir: t.TempDir()}
	opts := Options{
		Image:          "fleet-worker:test",
		EnvVar:         "NODE_ID",
		CronExpr:       "*/5 * * * *",
		VerifyRetries:  2,
		VerifyInterval: time.Millisecond,
		LogTail:        5,
	}
	return NewController(rt, sched, resolver, opts, discardLogger()), resolver
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
