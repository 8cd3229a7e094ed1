package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/metrics"
)

// summaryKey is where the latest snapshot is mirrored for external consumers.
const summaryKey = "market:summary"

// CropSummary is one row of the periodic market roll-up.
type CropSummary struct {
	CropName      string  `json:"crop_name"`
	ListingCount  int64   `json:"listing_count"`
	TotalQuantity int64   `json:"total_quantity"`
	AvgBid        float64 `json:"avg_bid"`
	MinBid        int64   `json:"min_bid"`
	MaxBid        int64   `json:"max_bid"`
}

// Snapshot is the full roll-up plus the time it was computed.
type Snapshot struct {
	Crops       []CropSummary `json:"crops"`
	RefreshedAt time.Time     `json:"refreshed_at"`
}

// SummaryRefresher periodically aggregates unsold listings per crop and
// mirrors the result to Redis. The latest snapshot is also served in-process
// for the market summary endpoint.
type SummaryRefresher struct {
	pool     *pgxpool.Pool
	rdb      *redis.Client
	logger   *zap.Logger
	interval time.Duration
	stopCh   chan struct{}

	mu     sync.RWMutex
	latest *Snapshot
}

func NewSummaryRefresher(pool *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger, interval time.Duration) *SummaryRefresher {
	return &SummaryRefresher{
		pool:     pool,
		rdb:      rdb,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Run refreshes immediately, then on every tick until the context is
// canceled or Stop is called. Intended to run on its own goroutine.
func (r *SummaryRefresher) Run(ctx context.Context) {
	if err := r.refresh(ctx); err != nil {
		r.logger.Warn("jobs.summary_refresh_failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("jobs.summary_refresher_stopped", zap.String("reason", "context_done"))
			return
		case <-r.stopCh:
			r.logger.Info("jobs.summary_refresher_stopped", zap.String("reason", "shutdown"))
			return
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil {
				r.logger.Warn("jobs.summary_refresh_failed", zap.Error(err))
				metrics.IncError("jobs", "summary_refresh_failed")
			}
		}
	}
}

// Stop signals the refresher loop to exit.
func (r *SummaryRefresher) Stop() {
	close(r.stopCh)
}

// Latest returns the most recent snapshot, or nil before the first refresh.
func (r *SummaryRefresher) Latest() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

func (r *SummaryRefresher) refresh(ctx context.Context) error {
	const q = `
		SELECT crop_name,
		       COUNT(*),
		       COALESCE(SUM(quantity), 0),
		       COALESCE(AVG(current_bid), 0)::FLOAT8,
		       COALESCE(MIN(current_bid), 0),
		       COALESCE(MAX(current_bid), 0)
		FROM market.listings
		WHERE status <> 'SOLD'
		GROUP BY crop_name
		ORDER BY crop_name`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	var crops []CropSummary
	for rows.Next() {
		var c CropSummary
		if err := rows.Scan(&c.CropName, &c.ListingCount, &c.TotalQuantity, &c.AvgBid, &c.MinBid, &c.MaxBid); err != nil {
			return err
		}
		crops = append(crops, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	snap := &Snapshot{
		Crops:       crops,
		RefreshedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.latest = snap
	r.mu.Unlock()

	if r.rdb != nil {
		data, err := json.Marshal(snap)
		if err == nil {
			if err := r.rdb.Set(ctx, summaryKey, data, 0).Err(); err != nil {
				r.logger.Warn("jobs.summary_redis_set_failed", zap.Error(err))
			}
		}
	}

	metrics.SetLastRefresh("summary", snap.RefreshedAt)
	r.logger.Debug("jobs.summary_refreshed", zap.Int("crops", len(crops)))
	return nil
}
