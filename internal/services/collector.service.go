package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hostwatch/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultErrorBackoff = 10 * time.Second
)

// ErrCollectorRunning is returned by Start when the loop is not stopped
var ErrCollectorRunning = errors.New("collection loop already running")

// LoopState is the lifecycle state of a CollectionLoop
type LoopState int

const (
	LoopStopped LoopState = iota
	LoopRunning
	LoopStopping
)

func (s LoopState) String() string {
	switch s {
	case LoopStopped:
		return "stopped"
	case LoopRunning:
		return "running"
	case LoopStopping:
		return "stopping"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// CollectorObserver receives every recorded sample and every stored alert.
// Callbacks run on the loop goroutine and must not block.
type CollectorObserver interface {
	OnSample(models.Sample)
	OnAlert(models.Alert)
}

// CollectorOptions configures cadence. Zero values take the defaults.
type CollectorOptions struct {
	Interval     time.Duration
	ErrorBackoff time.Duration
}

// CollectorStats is a snapshot of loop progress
type CollectorStats struct {
	State      string    `json:"state"`
	Iterations uint64    `json:"iterations"`
	Failures   uint64    `json:"failures"`
	LastError  string    `json:"last_error,omitempty"`
	LastRun    time.Time `json:"last_run"`
}

// CollectionLoop samples the host on a fixed cadence, records each sample in
// the history, and persists the alerts the evaluator produces. Only one
// iteration is ever in flight.
type CollectionLoop struct {
	sampler   Sampler
	history   *MetricHistory
	evaluator *ThresholdEvaluator
	store     AlertStore
	log       logrus.FieldLogger

	interval time.Duration
	backoff  time.Duration

	mu        sync.Mutex
	state     LoopState
	cancel    context.CancelFunc
	done      chan struct{}
	observers []CollectorObserver

	// iterMu admits one iteration at a time, from the loop or a direct RunOnce
	iterMu sync.Mutex

	statsMu sync.Mutex
	stats   CollectorStats
}

// NewCollectionLoop wires the loop. It does not start it.
func NewCollectionLoop(sampler Sampler, history *MetricHistory, evaluator *ThresholdEvaluator, store AlertStore, opts CollectorOptions, log logrus.FieldLogger) *CollectionLoop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = DefaultErrorBackoff
	}
	return &CollectionLoop{
		sampler:   sampler,
		history:   history,
		evaluator: evaluator,
		store:     store,
		log:       log,
		interval:  opts.Interval,
		backoff:   opts.ErrorBackoff,
		state:     LoopStopped,
	}
}

// Subscribe registers an observer. Call before Start.
func (l *CollectionLoop) Subscribe(o CollectorObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// Start launches the loop on its own goroutine. Cancelling ctx has the same
// effect as Stop without waiting.
func (l *CollectionLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != LoopStopped {
		return ErrCollectorRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.state = LoopRunning
	observers := append([]CollectorObserver(nil), l.observers...)

	go l.run(runCtx, observers, l.done)

	l.log.WithFields(logrus.Fields{
		"interval": l.interval,
		"backoff":  l.backoff,
	}).Info("collection loop started")
	return nil
}

// Stop asks the loop to finish and waits for it. An in-flight iteration runs
// to completion first.
func (l *CollectionLoop) Stop() {
	l.mu.Lock()
	if l.state == LoopStopped {
		l.mu.Unlock()
		return
	}
	if l.state == LoopRunning {
		l.state = LoopStopping
		l.cancel()
	}
	done := l.done
	l.mu.Unlock()

	<-done
}

// State returns the current lifecycle state
func (l *CollectionLoop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stats returns counters for the health endpoint
func (l *CollectionLoop) Stats() CollectorStats {
	l.statsMu.Lock()
	s := l.stats
	l.statsMu.Unlock()
	s.State = l.State().String()
	return s
}

func (l *CollectionLoop) run(ctx context.Context, observers []CollectorObserver, done chan struct{}) {
	defer func() {
		l.mu.Lock()
		l.state = LoopStopped
		l.cancel()
		l.mu.Unlock()
		close(done)
		l.log.Info("collection loop stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		// The iteration is shielded from cancellation so a stop request
		// never leaves a sample half processed.
		wait := l.interval
		if err := l.RunOnce(context.WithoutCancel(ctx), observers...); err != nil {
			l.log.WithError(err).WithField("retry_in", l.backoff).Warn("collection iteration failed")
			wait = l.backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.mu.Lock()
			if l.state == LoopRunning {
				l.state = LoopStopping
			}
			l.mu.Unlock()
			return
		case <-timer.C:
		}
	}
}

// RunOnce performs a single sample, record, evaluate, store pass. Any error
// abandons the rest of the pass; alerts already stored stay stored. Calls are
// serialized with the loop's own iterations.
func (l *CollectionLoop) RunOnce(ctx context.Context, observers ...CollectorObserver) (err error) {
	l.iterMu.Lock()
	defer l.iterMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collection iteration panicked: %v", r)
		}
		l.record(err)
	}()

	sample, err := l.sampler.Sample(ctx)
	if err != nil {
		return fmt.Errorf("failed to sample host: %w", err)
	}

	l.history.Push(sample)
	for _, o := range observers {
		o.OnSample(sample)
	}

	for _, alert := range l.evaluator.Evaluate(sample) {
		if err := l.store.Store(ctx, &alert); err != nil {
			return fmt.Errorf("failed to persist %s alert: %w", alert.Kind, err)
		}
		l.log.WithFields(logrus.Fields{
			"type":      alert.Kind,
			"value":     alert.Value,
			"threshold": alert.Threshold,
		}).Warn(alert.Message)
		for _, o := range observers {
			o.OnAlert(alert)
		}
	}
	return nil
}

func (l *CollectionLoop) record(err error) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	l.stats.Iterations++
	l.stats.LastRun = time.Now()
	if err != nil {
		l.stats.Failures++
		l.stats.LastError = err.Error()
	} else {
		l.stats.LastError = ""
	}
}
