package cache

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"newsletter_delivery/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// StartRedisSizeCollector periodically exports the used_memory figure from
// INFO memory as a gauge.
func StartRedisSizeCollector(ctx context.Context, client *redis.Client, interval time.Duration, logger *log.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		update := func() {
			info, err := client.Info(ctx, "memory").Result()
			if err != nil {
				metrics.IncRedisError("get")
				logger.Printf("redis INFO memory: %v", err)
				return
			}
			for _, line := range strings.Split(info, "\n") {
				line = strings.TrimSpace(line)
				if v, ok := strings.CutPrefix(line, "used_memory:"); ok {
					n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
					if err == nil {
						metrics.SetRedisCacheSizeBytes(n)
					}
					return
				}
			}
		}

		update()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				update()
			}
		}
	}()
}
