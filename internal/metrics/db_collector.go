package metrics

import (
	"context"
	"log"
	"time"
)

// QueueStatsSource reports the delivery-queue depth and the highest attempt
// count among pending tasks.
type QueueStatsSource interface {
	PendingStats(ctx context.Context) (pending, maxAttempts int64, err error)
}

// SubscriberStatsSource reports subscriber counts per status.
type SubscriberStatsSource interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// StartDBCollectors periodically refreshes the queue-depth and subscriber
// gauges from the repositories. Attempt counts on pending tasks are the
// operator's visibility into tasks stuck in transient-failure retry loops.
func StartDBCollectors(ctx context.Context, queue QueueStatsSource, subscribers SubscriberStatsSource, interval time.Duration, logger *log.Logger) {
	if queue == nil || subscribers == nil {
		return
	}
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		updateDBGauges(ctx, queue, subscribers, logger)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				updateDBGauges(ctx, queue, subscribers, logger)
			}
		}
	}()
}

func updateDBGauges(ctx context.Context, queue QueueStatsSource, subscribers SubscriberStatsSource, logger *log.Logger) {
	counts, err := subscribers.CountByStatus(ctx)
	if err != nil {
		logger.Printf("metrics subscriber counts: %v", err)
	} else {
		for status, cnt := range counts {
			SetSubscribersCount(status, cnt)
		}
	}

	pending, maxAttempts, err := queue.PendingStats(ctx)
	if err != nil {
		logger.Printf("metrics queue stats: %v", err)
		return
	}
	SetQueuePending(pending)
	SetQueueMaxAttempts(maxAttempts)
}
