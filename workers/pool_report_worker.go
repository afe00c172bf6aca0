package workers

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"referral-ledger/metrics"
	"referral-ledger/models"
)

// PoolLister is the read side of the pool manager the worker needs.
type PoolLister interface {
	ListPools(ctx context.Context, openOnly bool) ([]models.Pool, error)
}

// PoolReportWorker periodically logs the open pools and publishes their
// remaining budget as gauges. It never writes to the ledger.
type PoolReportWorker struct {
	pools    PoolLister
	metrics  *metrics.Metrics
	interval time.Duration
	log      zerolog.Logger

	mu    sync.Mutex
	known map[uint]struct{}
}

func NewPoolReportWorker(pools PoolLister, m *metrics.Metrics, interval time.Duration, log zerolog.Logger) *PoolReportWorker {
	return &PoolReportWorker{
		pools:    pools,
		metrics:  m,
		interval: interval,
		log:      log.With().Str("worker", "pool_report").Logger(),
		known:    make(map[uint]struct{}),
	}
}

// RunOnce takes one snapshot and returns the number of open pools.
func (w *PoolReportWorker) RunOnce(ctx context.Context) (int, error) {
	open, err := w.pools.ListPools(ctx, true)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[uint]struct{}, len(open))
	var outstanding int64
	for _, p := range open {
		seen[p.ID] = struct{}{}
		outstanding += p.Remaining
		w.metrics.SetPoolRemaining(poolLabel(p.ID), p.Remaining)
		w.log.Debug().Uint("pool_id", p.ID).Str("slug", p.Slug).Int64("remaining", p.Remaining).Int64("total", p.Total).Msg("open pool")
	}
	for id := range w.known {
		if _, ok := seen[id]; !ok {
			w.metrics.ForgetPool(poolLabel(id))
		}
	}
	w.known = seen

	w.log.Info().Int("open_pools", len(open)).Int64("outstanding_points", outstanding).Msg("pool report")
	return len(open), nil
}

// Start schedules RunOnce every interval and blocks until ctx is cancelled.
func (w *PoolReportWorker) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("pool report failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	sched.Start()
	w.log.Info().Dur("interval", w.interval).Msg("pool report worker started")

	<-ctx.Done()
	return sched.Shutdown()
}

func poolLabel(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
