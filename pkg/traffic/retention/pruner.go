// Package retention prunes old traffic records on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain traffic records.
	// 0 means keep records forever (no pruning).
	RetentionDays int

	// Schedule is a cron expression for automatic pruning.
	// Example: "0 3 * * *" (daily at 3 AM). Empty disables the
	// scheduler; manual pruning still works.
	Schedule string

	// Vacuum compacts the database file after each prune.
	Vacuum bool
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 30,
		Schedule:      "0 3 * * *",
	}
}

// Store is the part of the traffic store the pruner needs.
type Store interface {
	Cleanup(ctx context.Context, cutoff time.Time, vacuum bool) (int64, error)
}

// Pruner enforces the retention policy on traffic records, either on
// its cron schedule or through an explicit Prune call.
type Pruner struct {
	storage Store
	config  *Config
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewPruner creates a retention pruner for the given store.
func NewPruner(storage Store, config *Config, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pruner{
		storage: storage,
		config:  config,
		cron:    cron.New(),
		logger:  logger.With("component", "traffic.retention"),
	}
}

// Start begins scheduled pruning. It returns immediately; pruning runs
// on the cron schedule until Stop is called or ctx is cancelled. With
// no schedule or no retention period configured, Start does nothing.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Schedule == "" || p.config.RetentionDays <= 0 {
		p.logger.Info("retention pruning disabled",
			"schedule", p.config.Schedule,
			"retention_days", p.config.RetentionDays,
		)
		return nil
	}

	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.config.Schedule, err)
	}

	_, err := p.cron.AddFunc(p.config.Schedule, func() {
		p.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("retention pruning scheduled",
		"schedule", p.config.Schedule,
		"retention_days", p.config.RetentionDays,
		"vacuum", p.config.Vacuum,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// run executes one scheduled pruning cycle.
func (p *Pruner) run(ctx context.Context) {
	deleted, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("scheduled pruning failed", "error", err)
		return
	}

	if deleted > 0 {
		p.logger.Info("scheduled pruning completed", "deleted_count", deleted)
	} else {
		p.logger.Debug("scheduled pruning completed, nothing to delete")
	}
}

// Prune deletes traffic records older than the retention period and
// returns the number of requests removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -p.config.RetentionDays)

	p.logger.Debug("pruning traffic records",
		"cutoff", cutoff,
		"retention_days", p.config.RetentionDays,
	)

	deleted, err := p.storage.Cleanup(ctx, cutoff, p.config.Vacuum)
	if err != nil {
		return 0, fmt.Errorf("prune failed: %w", err)
	}

	return deleted, nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	ctx := p.cron.Stop()
	<-ctx.Done()
	p.running = false
	p.logger.Info("retention pruning stopped")
}

// IsRunning reports whether the scheduler is active.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextRun returns the next scheduled pruning time, or nil when the
// scheduler is not running.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
