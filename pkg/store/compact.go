package store

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatcore/pkg/logger"
)

// StartCompaction starts the cron-driven journal sweep that drops
// superseded pending-message entries. Returns a cancel func; a nil
// journal or disabled schedule yields a no-op cancel.
func StartCompaction(ctx context.Context, j *Journal, cronExpr string) (context.CancelFunc, error) {
	if j == nil || !j.Ready() {
		logger.Info("compaction_disabled")
		return func() {}, nil
	}
	if cronExpr == "" {
		// default: daily at 03:00
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("compaction_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid compaction cron expression: %s", cronExpr)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runCompactionLoop(ctx2, j, cronExpr)
	logger.Info("compaction_scheduler_started", "cron", cronExpr)
	return cancel, nil
}

// runCompactionLoop computes the next tick for the cron expression with
// gronx and sleeps until then.
func runCompactionLoop(ctx context.Context, j *Journal, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("compaction_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("compaction_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			n, err := j.CompactStale()
			if err != nil {
				logger.Error("compaction_run_error", "error", err)
				continue
			}
			logger.Info("compaction_run_done", "removed", n)
		case <-ctx.Done():
			logger.Info("compaction_scheduler_stopping")
			return
		}
	}
}
