package metrics

import (
	"time"

	"github.com/cuemby/s4/pkg/txn"
)

// Database is the subset of *s4.DB the Collector needs. Defined here
// instead of depending on package s4 directly, since s4 already
// depends on pkg/txn and this package does too.
type Database interface {
	Len() int
	KeyCount() int
	SrcCount() int
	TxnStats() txn.Stats
}

// Collector periodically refreshes the size and transaction gauges
// from an open database. Per-operation metrics (query/commit latency,
// rows fetched, log records written) are observed inline by callers as
// each operation happens and are not touched here.
type Collector struct {
	db     Database
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over db.
func NewCollector(db Database) *Collector {
	return &Collector{
		db:     db,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	FactsTotal.Set(float64(c.db.Len()))
	KeysTotal.Set(float64(c.db.KeyCount()))
	SourcesTotal.Set(float64(c.db.SrcCount()))

	stats := c.db.TxnStats()
	TransactionsActive.Set(float64(stats.Active))
	TransactionsCommittedTotal.Set(float64(stats.Commits))
	TransactionsAbortedTotal.Set(float64(stats.Aborts))
	DeadlocksTotal.Set(float64(stats.Deadlocks))
}
