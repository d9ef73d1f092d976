package usage

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pruner is the subset of the tracker used by the prune scheduler
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// PruneScheduler deletes usage records older than the retention period once
// a day
type PruneScheduler struct {
	pruner        Pruner
	pruneTime     time.Time // Time of day to prune (only hour and minute are used)
	retentionDays int
	clock         Clock
	logger        zerolog.Logger
	started       bool
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// NewPruneScheduler creates a new prune scheduler
func NewPruneScheduler(pruner Pruner, pruneTime string, retentionDays int, logger zerolog.Logger) (*PruneScheduler, error) {
	// Parse prune time (HH:MM format)
	parsedTime, err := time.Parse("15:04", pruneTime)
	if err != nil {
		return nil, err
	}

	ps := &PruneScheduler{
		pruner:        pruner,
		pruneTime:     parsedTime,
		retentionDays: retentionDays,
		clock:         RealClock{},
		logger:        logger.With().Str("component", "prune-scheduler").Logger(),
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}

	return ps, nil
}

// SetClock sets the clock used for scheduling (for testing)
func (ps *PruneScheduler) SetClock(clock Clock) {
	ps.clock = clock
}

// Start begins the prune scheduler
func (ps *PruneScheduler) Start() {
	ps.started = true
	go ps.run()
	ps.logger.Info().
		Str("prune_time", ps.pruneTime.Format("15:04")).
		Int("retention_days", ps.retentionDays).
		Msg("Daily usage prune scheduler started")
}

// Stop stops the prune scheduler and waits for an in-flight prune
func (ps *PruneScheduler) Stop() {
	close(ps.stopChan)
	if ps.started {
		<-ps.doneChan
	}
	ps.logger.Info().Msg("Daily usage prune scheduler stopped")
}

// run is the main scheduler loop
func (ps *PruneScheduler) run() {
	defer close(ps.doneChan)

	for {
		nextPrune := ps.calculateNextPrune()
		waitDuration := nextPrune.Sub(ps.clock.Now())

		ps.logger.Debug().
			Time("next_prune", nextPrune).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next usage prune")

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
			ps.PruneNow(context.Background())
		case <-ps.stopChan:
			timer.Stop()
			return
		}
	}
}

// calculateNextPrune calculates the next prune time
func (ps *PruneScheduler) calculateNextPrune() time.Time {
	now := ps.clock.Now()

	todayPrune := time.Date(
		now.Year(), now.Month(), now.Day(),
		ps.pruneTime.Hour(), ps.pruneTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already passed today's prune time, schedule for tomorrow
	if now.After(todayPrune) {
		return todayPrune.AddDate(0, 0, 1)
	}

	return todayPrune
}

// PruneNow deletes every record last visited before the retention cutoff.
func (ps *PruneScheduler) PruneNow(ctx context.Context) (int, error) {
	cutoff := ps.clock.Now().AddDate(0, 0, -ps.retentionDays)

	deleted, err := ps.pruner.Prune(ctx, cutoff)
	if err != nil {
		ps.logger.Error().Err(err).Msg("Failed to prune old usage data")
		return 0, err
	}

	ps.logger.Info().
		Int("records_deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Old usage data pruned")
	return deleted, nil
}
