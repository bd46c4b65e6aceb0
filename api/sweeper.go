/*
sweeper.go - Automated overdue sweep scheduler

PURPOSE:
  Periodically runs the overdue sweep so active loans whose due date has
  passed are marked overdue even when nobody is calling the API.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick delegates to the circulation service's sweep, which is
    idempotent: a loan transitions Active -> Overdue at most once
  - Status-dependent reads sweep inline as well, so the ticker is a
    freshness floor rather than a correctness requirement

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewSweeper(circ)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: RunSweep endpoint (manual sweep)
  - circulation/sweep.go: Sweep semantics
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/stacks/circulation-engine/circulation"
)

// Sweeper runs the overdue sweep on a fixed interval.
type Sweeper struct {
	Circ          *circulation.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a new sweeper.
func NewSweeper(circ *circulation.Service) *Sweeper {
	return &Sweeper{
		Circ:          circ,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (sw *Sweeper) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	sw.ticker = time.NewTicker(sw.CheckInterval)
	sw.wg.Add(1)

	go sw.run()

	log.Printf("[Sweeper] Started with check interval: %v", sw.CheckInterval)
}

// Stop stops the sweeper.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker != nil {
		sw.ticker.Stop()
		close(sw.stop)
		sw.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (sw *Sweeper) run() {
	defer sw.wg.Done()

	// Run immediately on start
	sw.sweep()

	for {
		select {
		case <-sw.ticker.C:
			sw.sweep()
		case <-sw.stop:
			return
		}
	}
}

func (sw *Sweeper) sweep() {
	n, err := sw.Circ.RunOverdueSweep(context.Background())
	if err != nil {
		log.Printf("[Sweeper] Sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Sweeper] Marked %d loan(s) overdue", n)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (sw *Sweeper) RunNow() {
	sw.sweep()
}
