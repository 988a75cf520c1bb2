package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/store"
)

// snapshotScanLimit bounds the documents read per snapshot.
const snapshotScanLimit = 10000

// PipelineSnapshot is a point-in-time view of document processing health.
type PipelineSnapshot struct {
	// Documents updated within the lookback window.
	DocumentsTotal     int     `json:"documents_total"`
	DocumentsCompleted int     `json:"documents_completed"`
	DocumentsFailed    int     `json:"documents_failed"`
	DocumentsInFlight  int     `json:"documents_in_flight"`
	FailureRate        float64 `json:"failure_rate"`

	// Pending documents regardless of age.
	PendingBacklog int `json:"pending_backlog"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers pipeline snapshots from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*PipelineSnapshot, error) {
	now := c.now().UTC()
	snap := &PipelineSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	docs, err := c.store.ListDocuments(ctx, store.DocumentFilter{Limit: snapshotScanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list documents")
	}

	for _, d := range docs {
		if d.Status == model.StatusPending {
			snap.PendingBacklog++
		}
		if d.UpdatedAt.Before(cutoff) {
			continue
		}
		snap.DocumentsTotal++
		switch {
		case d.Status == model.StatusCompleted:
			snap.DocumentsCompleted++
		case d.Status == model.StatusFailed:
			snap.DocumentsFailed++
		case d.Status.InFlight():
			snap.DocumentsInFlight++
		}
	}

	if finished := snap.DocumentsCompleted + snap.DocumentsFailed; finished > 0 {
		snap.FailureRate = float64(snap.DocumentsFailed) / float64(finished)
	}
	return snap, nil
}
