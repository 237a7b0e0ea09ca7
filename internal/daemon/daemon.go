package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/internal/schedule"
	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

// DefaultInterval between schedule evaluations
const DefaultInterval = time.Minute

const shutdownTimeout = 5 * time.Second

// GroupRunner runs an action against the resources of one group
type GroupRunner interface {
	RunGroup(ctx context.Context, group string, action types.Action) (*types.OrchestrationResult, error)
}

// RunnerFunc adapts a function to GroupRunner
type RunnerFunc func(ctx context.Context, group string, action types.Action) (*types.OrchestrationResult, error)

// RunGroup calls f
func (f RunnerFunc) RunGroup(ctx context.Context, group string, action types.Action) (*types.OrchestrationResult, error) {
	return f(ctx, group, action)
}

// Config holds daemon configuration
type Config struct {
	Interval    time.Duration
	MetricsAddr string // empty disables the HTTP listener
	Schedules   map[string]config.ScheduleConfig
}

// Daemon applies each group's work-hours schedule. Every tick it computes
// the desired action per group and runs it when that differs from the last
// action it applied.
type Daemon struct {
	interval  time.Duration
	addr      string
	groups    []string
	schedules map[string]*schedule.Schedule
	runner    GroupRunner
	metrics   *DaemonMetrics
	logger    *telemetry.Logger
	startTime time.Time
	now       func() time.Time

	mu       sync.RWMutex
	applied  map[string]types.Action
	next     map[string]time.Time
	lastTick time.Time

	ticks atomic.Int64
	ready atomic.Bool
}

// NewDaemon creates a daemon for the configured schedules
func NewDaemon(cfg Config, runner GroupRunner) (*Daemon, error) {
	if runner == nil {
		return nil, errors.New("daemon requires a group runner")
	}
	if len(cfg.Schedules) == 0 {
		return nil, errors.New("no schedules configured")
	}

	schedules := make(map[string]*schedule.Schedule, len(cfg.Schedules))
	groups := make([]string, 0, len(cfg.Schedules))
	for group, sc := range cfg.Schedules {
		s, err := schedule.New(sc)
		if err != nil {
			return nil, fmt.Errorf("schedule for group %q: %w", group, err)
		}
		schedules[group] = s
		groups = append(groups, group)
	}
	sort.Strings(groups)

	metrics, err := NewDaemonMetrics(telemetry.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon metrics: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Daemon{
		interval:  interval,
		addr:      cfg.MetricsAddr,
		groups:    groups,
		schedules: schedules,
		runner:    runner,
		metrics:   metrics,
		logger:    telemetry.NewLogger("daemon"),
		startTime: time.Now(),
		now:       time.Now,
		applied:   make(map[string]types.Action),
		next:      make(map[string]time.Time),
	}, nil
}

// Start runs the schedule loop until ctx is cancelled. The first tick
// happens immediately.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.WithContext(ctx).Info().
		Dur("interval", d.interval).
		Strs("groups", d.groups).
		Msg("daemon started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.WithContext(ctx).Info().Msg("daemon stopped")
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick evaluates every group once. Groups run one after another so two
// schedules never act on overlapping resources at the same time.
func (d *Daemon) Tick(ctx context.Context) {
	now := d.now()
	d.ticks.Add(1)
	d.metrics.RecordTick(ctx)

	for _, group := range d.groups {
		if ctx.Err() != nil {
			return
		}
		desired := d.schedules[group].DesiredAction(now)
		if last, ok := d.LastApplied(group); !ok || last != desired {
			d.trigger(ctx, group, desired)
		}
		d.planNext(ctx, group, now)
	}

	d.mu.Lock()
	d.lastTick = now
	d.mu.Unlock()
	d.ready.Store(true)
}

func (d *Daemon) trigger(ctx context.Context, group string, action types.Action) {
	logger := d.logger.WithContext(ctx)
	logger.Info().
		Str("group", group).
		Str("action", string(action)).
		Msg("schedule transition, running group")

	telemetry.ScheduleTriggers.Add(ctx, 1, metric.WithAttributes(
		attribute.String("group", group),
		attribute.String("action", string(action)),
	))

	started := time.Now()
	result, err := d.runner.RunGroup(ctx, group, action)
	d.metrics.RecordGroupRun(ctx, group, action, runStatus(result, err), time.Since(started).Seconds())

	// not recorded as applied, so the next tick retries
	if err != nil {
		logger.Error().Err(err).
			Str("group", group).
			Str("action", string(action)).
			Msg("scheduled run failed")
		return
	}

	d.metrics.RecordGroupResources(ctx, group, result.Total)
	if result.Failed > 0 {
		logger.Warn().
			Str("group", group).
			Str("run_id", result.RunID).
			Int("failed", result.Failed).
			Msg("scheduled run finished with failures")
	}

	d.mu.Lock()
	d.applied[group] = action
	d.mu.Unlock()
}

// planNext records and logs the group's next window boundary
func (d *Daemon) planNext(ctx context.Context, group string, now time.Time) {
	next, action, ok := d.schedules[group].NextTransition(now)
	if !ok {
		return
	}
	d.mu.Lock()
	d.next[group] = next
	d.mu.Unlock()

	d.logger.WithContext(ctx).Debug().
		Str("group", group).
		Time("next_transition", next).
		Str("next_action", string(action)).
		Msg("next schedule transition")
}

// LastApplied returns the action most recently applied to group
func (d *Daemon) LastApplied(group string) (types.Action, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	action, ok := d.applied[group]
	return action, ok
}

// TickCount returns the number of completed schedule evaluations
func (d *Daemon) TickCount() int64 {
	return d.ticks.Load()
}

// Ready reports whether the first tick has completed
func (d *Daemon) Ready() bool {
	return d.ready.Load()
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	groups := make(map[string]string, len(d.groups))
	for _, g := range d.groups {
		groups[g] = string(d.applied[g])
	}
	var next map[string]time.Time
	if len(d.next) > 0 {
		next = make(map[string]time.Time, len(d.next))
		for g, t := range d.next {
			next[g] = t
		}
	}
	return HealthStatus{
		Status:          "healthy",
		Uptime:          int64(time.Since(d.startTime).Seconds()),
		Ticks:           d.ticks.Load(),
		LastTick:        d.lastTick,
		Groups:          groups,
		NextTransitions: next,
	}
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status   string            `json:"status"`
	Uptime   int64             `json:"uptime_seconds"`
	Ticks    int64             `json:"ticks"`
	LastTick time.Time         `json:"last_tick"`
	Groups   map[string]string `json:"groups"`

	NextTransitions map[string]time.Time `json:"next_transitions,omitempty"`
}

// Handler serves /metrics, /healthz and /readyz
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.Health())
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !d.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Run starts the schedule loop, the HTTP listener and a signal handler as
// one process group. It returns nil on SIGINT, SIGTERM or ctx cancellation.
func (d *Daemon) Run(ctx context.Context) error {
	var g run.Group

	loopCtx, cancel := context.WithCancel(ctx)
	g.Add(func() error {
		return d.Start(loopCtx)
	}, func(error) {
		cancel()
	})

	if d.addr != "" {
		ln, err := net.Listen("tcp", d.addr)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to listen on %s: %w", d.addr, err)
		}
		srv := &http.Server{
			Handler:           d.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Add(func() error {
			d.logger.WithContext(ctx).Info().
				Str("addr", ln.Addr().String()).
				Msg("serving metrics and health")
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err := g.Run()
	var sigErr run.SignalError
	switch {
	case errors.As(err, &sigErr):
		d.logger.WithContext(ctx).Info().
			Str("signal", sigErr.Signal.String()).
			Msg("shutting down")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}
