package main

import (
	"context"
	"errors"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/meridian/internal/ingest"
	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/store"
)

var (
	pendingConcurrency int
	pendingLimit       int
	pendingRetryFailed bool
)

var extractPendingCmd = &cobra.Command{
	Use:   "extract-pending",
	Short: "Process every pending document in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		statuses := []model.ProcessingStatus{model.StatusPending}
		if pendingRetryFailed {
			statuses = append(statuses, model.StatusFailed)
		}

		_, err = processPending(ctx, env.Documents, statuses, pendingLimit, pendingConcurrency)
		return err
	},
}

func init() {
	extractPendingCmd.Flags().IntVar(&pendingConcurrency, "concurrency", 4, "documents processed in parallel")
	extractPendingCmd.Flags().IntVar(&pendingLimit, "limit", 100, "max number of documents to process")
	extractPendingCmd.Flags().BoolVar(&pendingRetryFailed, "retry-failed", false, "also re-process failed documents")
	rootCmd.AddCommand(extractPendingCmd)
}

// pendingSummary counts the outcomes of a processPending run.
type pendingSummary struct {
	Succeeded int64
	Failed    int64
	Skipped   int64
}

// processPending loads documents in the given statuses and runs each through
// the pipeline with bounded concurrency. A single document failing does not
// abort the batch; the failure is recorded on the document.
func processPending(ctx context.Context, docs *ingest.Service, statuses []model.ProcessingStatus, limit, concurrency int) (pendingSummary, error) {
	var sum pendingSummary

	var queue []model.Document
	for _, st := range statuses {
		batch, err := docs.ListDocuments(ctx, store.DocumentFilter{Status: st, Limit: limit})
		if err != nil {
			return sum, eris.Wrap(err, "extract-pending: list documents")
		}
		queue = append(queue, batch...)
	}
	if limit > 0 && len(queue) > limit {
		queue = queue[:limit]
	}
	if len(queue) == 0 {
		zap.L().Info("no pending documents found")
		return sum, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing pending documents",
		zap.Int("documents", len(queue)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed, skipped atomic.Int64

	for _, doc := range queue {
		g.Go(func() error {
			log := zap.L().With(zap.String("document_id", doc.ID), zap.String("filename", doc.Filename))

			res, err := docs.Process(gctx, doc.ID)
			switch {
			case errors.Is(err, ingest.ErrInProgress):
				skipped.Add(1)
				log.Info("document already in progress, skipping")
			case err != nil:
				failed.Add(1)
				log.Error("document processing failed", zap.Error(err))
			default:
				succeeded.Add(1)
				log.Info("document processed",
					zap.Int("fields", len(res.Extractions)),
					zap.String("method", res.Method),
				)
			}
			return nil // don't abort batch on individual failure
		})
	}

	if err := g.Wait(); err != nil {
		return sum, eris.Wrap(err, "extract-pending")
	}

	sum = pendingSummary{Succeeded: succeeded.Load(), Failed: failed.Load(), Skipped: skipped.Load()}
	zap.L().Info("pending documents complete",
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("failed", sum.Failed),
		zap.Int64("skipped", sum.Skipped),
	)
	return sum, nil
}
