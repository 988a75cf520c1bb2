package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/config"
)

const (
	defaultCheckInterval = 5 * time.Minute
	defaultLookbackHours = 24
)

// SnapshotObserver receives every snapshot the checker collects.
type SnapshotObserver interface {
	SnapshotCollected(snap *PipelineSnapshot)
}

// CheckResult is the outcome of one health check. Raised holds alerts that
// started firing on this check; alerts still firing from an earlier check are
// in Firing only.
type CheckResult struct {
	Snapshot *PipelineSnapshot
	Firing   []Alert
	Raised   []Alert
	Resolved []AlertType
	Sent     int
}

// Checker polls pipeline health, publishes each snapshot and notifies the
// webhook when an alert starts firing. A condition that stays breached is
// reported once, not on every tick.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	observer  SnapshotObserver
	interval  time.Duration
	lookback  int

	mu     sync.Mutex
	firing map[AlertType]bool
}

// NewChecker creates a pipeline health checker. observer may be nil.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig, observer SnapshotObserver) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	lookback := cfg.LookbackWindowHours
	if lookback <= 0 {
		lookback = defaultLookbackHours
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		observer:  observer,
		interval:  interval,
		lookback:  lookback,
		firing:    make(map[AlertType]bool),
	}
}

// Run checks once immediately and then on every interval until ctx is
// cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("pipeline health checker started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			if _, err := c.Check(ctx); err != nil {
				log.Error("pipeline health check failed", zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			log.Info("pipeline health checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects a snapshot, evaluates thresholds and sends newly raised
// alerts.
func (c *Checker) Check(ctx context.Context) (*CheckResult, error) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		return nil, err
	}
	if c.observer != nil {
		c.observer.SnapshotCollected(snap)
	}

	res := &CheckResult{Snapshot: snap, Firing: c.alerter.Evaluate(snap)}

	c.mu.Lock()
	now := make(map[AlertType]bool, len(res.Firing))
	for _, a := range res.Firing {
		now[a.Type] = true
		if !c.firing[a.Type] {
			res.Raised = append(res.Raised, a)
		}
	}
	for t := range c.firing {
		if !now[t] {
			res.Resolved = append(res.Resolved, t)
		}
	}
	c.firing = now
	c.mu.Unlock()

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	for _, a := range res.Raised {
		log.Warn("pipeline alert raised",
			zap.String("type", string(a.Type)),
			zap.String("severity", a.Severity),
			zap.String("message", a.Message),
		)
	}
	for _, t := range res.Resolved {
		log.Info("pipeline alert resolved", zap.String("type", string(t)))
	}
	res.Sent = c.alerter.SendAlerts(ctx, res.Raised)

	log.Debug("pipeline health checked",
		zap.Int("documents", snap.DocumentsTotal),
		zap.Int("completed", snap.DocumentsCompleted),
		zap.Int("failed", snap.DocumentsFailed),
		zap.Int("in_flight", snap.DocumentsInFlight),
		zap.Float64("failure_rate", snap.FailureRate),
		zap.Int("pending_backlog", snap.PendingBacklog),
		zap.Int("alerts_firing", len(res.Firing)),
		zap.Int("alerts_sent", res.Sent),
	)
	return res, nil
}
