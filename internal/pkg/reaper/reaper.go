package reaper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/DavidKroell/Vendora/internal/pkg/env"
)

const (
	defaultInterval  = 5 * time.Minute
	defaultMaxAge    = 30 * time.Minute
	defaultBatchSize = 100
)

// StaleCanceller cancels pending orders older than maxAge. Satisfied by the
// shop service.
type StaleCanceller interface {
	CancelStaleOrders(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

// Reaper periodically cancels orders whose payment never arrived, so reserved
// buyer intent does not pile up as pending rows forever.
type Reaper struct {
	shop      StaleCanceller
	interval  time.Duration
	maxAge    time.Duration
	batchSize int

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a reaper with the given sweep interval and order timeout.
func New(shop StaleCanceller, interval, maxAge time.Duration, batchSize int) *Reaper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Reaper{
		shop:      shop,
		interval:  interval,
		maxAge:    maxAge,
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
	}
}

// NewFromEnv creates a reaper configured from ORDER_REAPER_* variables.
func NewFromEnv(shop StaleCanceller) *Reaper {
	interval := envMinutes("ORDER_REAPER_INTERVAL_MINUTES", defaultInterval)
	maxAge := envMinutes("ORDER_TIMEOUT_MINUTES", defaultMaxAge)
	return New(shop, interval, maxAge, defaultBatchSize)
}

func envMinutes(key string, fallback time.Duration) time.Duration {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil && v > 0 {
		return time.Duration(v) * time.Minute
	}
	return fallback
}

// Start launches the background sweep loop. The first sweep runs immediately
// so a restart does not wait a full interval to clear backlog.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.stopCh = make(chan struct{})
	r.running = true

	log.Infof("[Reaper] Starting (interval=%s, timeout=%s)", r.interval, r.maxAge)
	r.wg.Add(1)
	go r.loop()
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	close(r.stopCh)
	r.running = false
	r.wg.Wait()
	log.Info("[Reaper] Stopped")
}

func (r *Reaper) loop() {
	defer r.wg.Done()

	r.sweep()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			log.Info("[Reaper] Sweep loop stopping")
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	ctx := context.Background()
	cancelled, err := r.shop.CancelStaleOrders(ctx, r.maxAge, r.batchSize)
	if err != nil {
		log.Errorf("[Reaper] Sweep failed: %v", err)
		return
	}
	if cancelled > 0 {
		log.Infof("[Reaper] Cancelled %d stale order(s)", cancelled)
	}
}
