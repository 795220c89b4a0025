package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hostwatch/internal/logging"
	"hostwatch/internal/models"
)

type fakeSampler struct {
	mu      sync.Mutex
	samples []models.Sample
	errs    []error
	calls   int
}

func (f *fakeSampler) Sample(ctx context.Context) (models.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return models.Sample{}, f.errs[i]
	}
	if i < len(f.samples) {
		return f.samples[i], nil
	}
	return models.Sample{Timestamp: time.Now(), CPUPercent: 1, MemoryPercent: 1}, nil
}

func (f *fakeSampler) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryStore struct {
	mu     sync.Mutex
	alerts []models.Alert
	err    error
}

func (m *memoryStore) Store(_ context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	a.ID = uint(len(m.alerts) + 1)
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *memoryStore) TotalCount(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.alerts)), nil
}

func (m *memoryStore) BreakdownByKind(context.Context) (map[models.AlertKind]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[models.AlertKind]int64{}
	for _, a := range m.alerts {
		out[a.Kind]++
	}
	return out, nil
}

func (m *memoryStore) Recent(_ context.Context, limit int) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Alert{}
	for i := len(m.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.alerts[i])
	}
	return out, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	samples []models.Sample
	alerts  []models.Alert
}

func (r *recordingObserver) OnSample(s models.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *recordingObserver) OnAlert(a models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func newTestLoop(t *testing.T, sampler Sampler, store AlertStore, opts CollectorOptions) (*CollectionLoop, *MetricHistory) {
	t.Helper()
	history := NewMetricHistory(100)
	loop := NewCollectionLoop(sampler, history, newEvaluator(t), store, opts, logging.Discard())
	return loop, history
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRunOnceRecordsAndStores(t *testing.T) {
	sampler := &fakeSampler{samples: []models.Sample{{Timestamp: time.Now(), CPUPercent: 40, MemoryPercent: 10}}}
	store := &memoryStore{}
	loop, history := newTestLoop(t, sampler, store, CollectorOptions{})
	obs := &recordingObserver{}

	if err := loop.RunOnce(context.Background(), obs); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if history.Len() != 1 {
		t.Errorf("history len = %d, want 1", history.Len())
	}
	if len(store.alerts) != 1 || store.alerts[0].Kind != models.AlertKindCPU {
		t.Errorf("stored alerts = %+v", store.alerts)
	}
	if len(obs.samples) != 1 || len(obs.alerts) != 1 {
		t.Errorf("observer saw %d samples and %d alerts", len(obs.samples), len(obs.alerts))
	}
	if obs.alerts[0].ID != 1 {
		t.Errorf("observer alert ID = %d, want the stored ID", obs.alerts[0].ID)
	}
}

func TestRunOnceSamplerFailure(t *testing.T) {
	sampler := &fakeSampler{errs: []error{ErrMeasurement}}
	loop, history := newTestLoop(t, sampler, &memoryStore{}, CollectorOptions{})

	err := loop.RunOnce(context.Background())
	if !errors.Is(err, ErrMeasurement) {
		t.Fatalf("err = %v, want ErrMeasurement", err)
	}
	if history.Len() != 0 {
		t.Errorf("failed iteration pushed %d samples", history.Len())
	}
	if s := loop.Stats(); s.Failures != 1 || s.Iterations != 1 || s.LastError == "" {
		t.Errorf("stats = %+v", s)
	}
}

func TestRunOnceStoreFailureKeepsSample(t *testing.T) {
	storeErr := errors.New("disk full")
	sampler := &fakeSampler{samples: []models.Sample{{CPUPercent: 99, MemoryPercent: 99}}}
	loop, history := newTestLoop(t, sampler, &memoryStore{err: storeErr}, CollectorOptions{})

	if err := loop.RunOnce(context.Background()); !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
	if history.Len() != 1 {
		t.Errorf("history len = %d, want 1", history.Len())
	}
}

type panicSampler struct{}

func (panicSampler) Sample(context.Context) (models.Sample, error) {
	panic("sensor exploded")
}

func TestRunOnceRecoversPanic(t *testing.T) {
	loop, _ := newTestLoop(t, panicSampler{}, &memoryStore{}, CollectorOptions{})
	if err := loop.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from panicking sampler")
	}
}

func TestLoopSurvivesFailuresAndBacksOff(t *testing.T) {
	sampler := &fakeSampler{errs: []error{ErrMeasurement}}
	loop, history := newTestLoop(t, sampler, &memoryStore{}, CollectorOptions{
		Interval:     10 * time.Millisecond,
		ErrorBackoff: 150 * time.Millisecond,
	})

	start := time.Now()
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer loop.Stop()

	waitFor(t, 2*time.Second, func() bool { return history.Len() >= 1 })
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("second sample after %v, want at least the backoff", elapsed)
	}
	if loop.State() != LoopRunning {
		t.Errorf("state = %v, want running", loop.State())
	}
}

func TestStartTwiceFails(t *testing.T) {
	loop, _ := newTestLoop(t, &fakeSampler{}, &memoryStore{}, CollectorOptions{Interval: time.Hour})
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer loop.Stop()

	if err := loop.Start(context.Background()); !errors.Is(err, ErrCollectorRunning) {
		t.Errorf("second Start err = %v, want ErrCollectorRunning", err)
	}
}

func TestStopWaitsAndAllowsRestart(t *testing.T) {
	sampler := &fakeSampler{}
	loop, _ := newTestLoop(t, sampler, &memoryStore{}, CollectorOptions{Interval: time.Hour})

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return sampler.Calls() >= 1 })

	stopped := make(chan struct{})
	go func() {
		loop.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the sleep")
	}
	if loop.State() != LoopStopped {
		t.Errorf("state = %v, want stopped", loop.State())
	}

	loop.Stop()

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	loop.Stop()
}

func TestParentContextCancelStopsLoop(t *testing.T) {
	loop, _ := newTestLoop(t, &fakeSampler{}, &memoryStore{}, CollectorOptions{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	waitFor(t, 2*time.Second, func() bool { return loop.State() == LoopStopped })
}

func TestLoopStateString(t *testing.T) {
	for state, want := range map[LoopState]string{
		LoopStopped:  "stopped",
		LoopRunning:  "running",
		LoopStopping: "stopping",
		LoopState(9): "unknown(9)",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(state), got, want)
		}
	}
}

type overlapSampler struct {
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (o *overlapSampler) Sample(context.Context) (models.Sample, error) {
	o.mu.Lock()
	o.inFlight++
	if o.inFlight > o.peak {
		o.peak = o.inFlight
	}
	o.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	o.mu.Lock()
	o.inFlight--
	o.mu.Unlock()
	return models.Sample{Timestamp: time.Now()}, nil
}

func TestRunOnceIsSerialized(t *testing.T) {
	sampler := &overlapSampler{}
	loop, history := newTestLoop(t, sampler, &memoryStore{}, CollectorOptions{Interval: time.Millisecond})
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := loop.RunOnce(context.Background()); err != nil {
					t.Errorf("RunOnce: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	loop.Stop()

	if sampler.peak != 1 {
		t.Errorf("peak concurrent iterations = %d, want 1", sampler.peak)
	}
	if history.Len() < 40 {
		t.Errorf("history len = %d, want at least 40", history.Len())
	}
}
