package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/focusforge/internal/browser"
	"github.com/goodtune/focusforge/internal/metrics"
	"github.com/goodtune/focusforge/internal/storage"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxFlushDuration caps the time credited by a single flush so a
	// sleep/resume jump is not attributed to the foreground page
	DefaultMaxFlushDuration = time.Hour

	// DefaultMinCreditDuration is the minimum elapsed time a flush credits
	DefaultMinCreditDuration = 500 * time.Millisecond

	// DefaultQueueSize is the event queue capacity
	DefaultQueueSize = 64

	// DefaultWriteRetries is how many times a failed storage write is retried
	DefaultWriteRetries = 1
)

// ErrStopped is returned when an event is submitted after Run has returned.
var ErrStopped = errors.New("usage: tracker stopped")

// Config holds tracker configuration
type Config struct {
	MaxFlushDuration  time.Duration
	MinCreditDuration time.Duration
	QueueSize         int
	WriteRetries      int
	Clock             Clock
}

type job struct {
	ctx  context.Context // submitter's context; the job is skipped once it is done
	fn   func(ctx context.Context)
	done chan struct{}
}

// Tracker turns tab and window focus events into per-hostname visit counts
// and dwell time. All state is owned by the Run goroutine; every public
// method is a unit of work queued to it and applied in submission order.
type Tracker struct {
	usageStore   storage.UsageStore
	tabs         browser.TabQuerier
	clock        Clock
	maxFlush     time.Duration
	minCredit    time.Duration
	writeRetries int
	logger       zerolog.Logger

	queue   chan job
	stopped chan struct{}

	// owned by Run
	session Session
	records map[string]storage.UsageRecord
	dirty   map[string]struct{}
}

// NewTracker creates a new usage tracker
func NewTracker(usageStore storage.UsageStore, tabs browser.TabQuerier, config Config, logger zerolog.Logger) *Tracker {
	if config.MaxFlushDuration == 0 {
		config.MaxFlushDuration = DefaultMaxFlushDuration
	}
	if config.MinCreditDuration < 0 {
		config.MinCreditDuration = 0
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.WriteRetries < 0 {
		config.WriteRetries = DefaultWriteRetries
	}
	if config.Clock == nil {
		config.Clock = RealClock{}
	}

	return &Tracker{
		usageStore:   usageStore,
		tabs:         tabs,
		clock:        config.Clock,
		maxFlush:     config.MaxFlushDuration,
		minCredit:    config.MinCreditDuration,
		writeRetries: config.WriteRetries,
		logger:       logger.With().Str("component", "usage-tracker").Logger(),
		queue:        make(chan job, config.QueueSize),
		stopped:      make(chan struct{}),
		records:      make(map[string]storage.UsageRecord),
		dirty:        make(map[string]struct{}),
	}
}

// Load reads the persisted usage records. It must be called before Run.
func (t *Tracker) Load(ctx context.Context) error {
	records, err := t.usageStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load usage data: %w", err)
	}
	t.records = records

	t.logger.Info().Int("hostnames", len(records)).Msg("Usage data loaded")
	return nil
}

// Run drains the event queue until ctx is cancelled. On the way out the open
// session is flushed so the time since the last event is not lost.
func (t *Tracker) Run(ctx context.Context) error {
	defer close(t.stopped)

	for {
		select {
		case j := <-t.queue:
			// An abandoned event leaves state as it was. A job that does run
			// is not interrupted by its submitter giving up halfway.
			if j.ctx.Err() == nil {
				j.fn(context.WithoutCancel(j.ctx))
			}
			close(j.done)

		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			t.goIdle(shutdownCtx)
			cancel()
			t.logger.Info().Msg("Usage tracker stopped")
			return nil
		}
	}
}

// submit queues fn and waits until Run has applied it. Results written by
// fn may only be read when submit returns nil.
func (t *Tracker) submit(ctx context.Context, fn func(ctx context.Context)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j := job{ctx: ctx, fn: fn, done: make(chan struct{})}

	select {
	case t.queue <- j:
	case <-t.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-j.done:
		return nil
	case <-t.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TabActivated handles the user switching to tabID.
func (t *Tracker) TabActivated(ctx context.Context, tabID int) error {
	return t.submit(ctx, func(ctx context.Context) { t.enterTracking(ctx, tabID) })
}

// TabUpdated handles a tab status change. Only a completed navigation on the
// active tab moves the tracker.
func (t *Tracker) TabUpdated(ctx context.Context, tabID int, status string) error {
	return t.submit(ctx, func(ctx context.Context) {
		if status != "complete" {
			return
		}
		tab, err := t.tabs.GetTab(ctx, tabID)
		if err != nil || !tab.Active {
			return
		}
		t.enterTracking(ctx, tabID)
	})
}

// WindowFocusChanged handles focus moving to windowID, or away from the
// browser when windowID is browser.WindowIDNone.
func (t *Tracker) WindowFocusChanged(ctx context.Context, windowID int) error {
	return t.submit(ctx, func(ctx context.Context) {
		if windowID == browser.WindowIDNone {
			t.goIdle(ctx)
			return
		}
		tab, err := t.tabs.ActiveTab(ctx, windowID)
		if err != nil {
			t.goIdle(ctx)
			return
		}
		t.enterTracking(ctx, tab.ID)
	})
}

// TabRemoved handles a tab closing. If it was the tracked tab, its time is
// flushed and the tracker goes idle. Call it before the tab is forgotten by
// the TabQuerier or the time since the last flush is discarded.
func (t *Tracker) TabRemoved(ctx context.Context, tabID int) error {
	return t.submit(ctx, func(ctx context.Context) {
		if t.session.Idle() || t.session.TabID != tabID {
			return
		}
		t.goIdle(ctx)
	})
}

// Flush credits the elapsed time of the open session without ending it.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.submit(ctx, func(ctx context.Context) { t.flush(ctx) })
}

// GoIdle flushes the open session and stops timing.
func (t *Tracker) GoIdle(ctx context.Context) error {
	return t.submit(ctx, func(ctx context.Context) { t.goIdle(ctx) })
}

// Snapshot returns a copy of every usage record.
func (t *Tracker) Snapshot(ctx context.Context) (map[string]storage.UsageRecord, error) {
	var out map[string]storage.UsageRecord
	err := t.submit(ctx, func(ctx context.Context) {
		out = make(map[string]storage.UsageRecord, len(t.records))
		for host, record := range t.records {
			out[host] = record
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Session returns the session currently being timed.
func (t *Tracker) Session(ctx context.Context) (Session, error) {
	var out Session
	if err := t.submit(ctx, func(ctx context.Context) { out = t.session }); err != nil {
		return Session{}, err
	}
	return out, nil
}

// Reset deletes every usage record. An open session keeps running but only
// accrues time from now on.
func (t *Tracker) Reset(ctx context.Context) error {
	var resetErr error
	err := t.submit(ctx, func(ctx context.Context) {
		if err := t.usageStore.Clear(ctx); err != nil {
			resetErr = fmt.Errorf("failed to clear usage data: %w", err)
			return
		}
		t.records = make(map[string]storage.UsageRecord)
		t.dirty = make(map[string]struct{})
		if !t.session.Idle() {
			t.session.StartedAt = t.clock.Now()
		}
		t.logger.Info().Msg("Usage data reset")
	})
	if err != nil {
		return err
	}
	return resetErr
}

// Prune deletes records whose last visit is before cutoff.
func (t *Tracker) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	var (
		deleted  int
		pruneErr error
	)
	err := t.submit(ctx, func(ctx context.Context) {
		cutoffMs := cutoff.UnixMilli()
		deleted, pruneErr = t.usageStore.DeleteBefore(ctx, cutoffMs)
		if pruneErr != nil {
			return
		}
		for host, record := range t.records {
			if record.LastVisitAt < cutoffMs {
				delete(t.records, host)
				delete(t.dirty, host)
			}
		}
	})
	if err != nil {
		return 0, err
	}
	return deleted, pruneErr
}

// enterTracking makes tabID the timed page.
func (t *Tracker) enterTracking(ctx context.Context, tabID int) {
	t.flush(ctx)

	// Re-resolve after the flush: the tab may have changed meanwhile
	tab, err := t.tabs.GetTab(ctx, tabID)
	if err != nil {
		t.logger.Debug().Err(err).Int("tab_id", tabID).Msg("Tab lookup failed, going idle")
		t.setSession(Session{})
		return
	}
	if !browser.IsTrackable(tab.URL) {
		t.setSession(Session{})
		return
	}

	hostname, err := storage.NormalizeHostname(tab.URL)
	if err != nil {
		t.logger.Debug().Err(err).Str("url", tab.URL).Msg("Unparsable URL, going idle")
		t.setSession(Session{})
		return
	}

	prev := t.session
	if !prev.Idle() && prev.TabID == tabID {
		if prev.URL == tab.URL {
			// Redundant event for the page already being timed
			return
		}
		if prev.Hostname == hostname {
			// Same site, same tab: keep the visit and the timer
			t.session.URL = tab.URL
			return
		}
	}

	now := t.clock.Now()
	t.recordVisit(ctx, hostname, now)
	t.setSession(Session{
		TabID:     tabID,
		URL:       tab.URL,
		Hostname:  hostname,
		StartedAt: now,
	})

	t.logger.Debug().
		Int("tab_id", tabID).
		Str("hostname", hostname).
		Msg("Tracking started")
}

// flush credits the open session's elapsed time and rebases its start.
func (t *Tracker) flush(ctx context.Context) {
	if t.session.Idle() {
		return
	}
	session := t.session

	tab, err := t.tabs.GetTab(ctx, session.TabID)
	if err != nil || !browser.IsTrackable(tab.URL) {
		t.logger.Debug().
			Int("tab_id", session.TabID).
			Str("hostname", session.Hostname).
			Msg("Tracked tab gone, discarding session")
		metrics.Flushes.WithLabelValues("discarded").Inc()
		t.setSession(Session{})
		return
	}

	now := t.clock.Now()
	elapsed := now.Sub(session.StartedAt)

	switch {
	case elapsed < 0:
		// Clock went backwards; restart the timer without crediting
		metrics.Flushes.WithLabelValues("clock_skew").Inc()
		t.session.StartedAt = now
		return
	case elapsed > t.maxFlush:
		metrics.Flushes.WithLabelValues("clamped").Inc()
		elapsed = t.maxFlush
	case elapsed < t.minCredit:
		// Focus flicker; keep accruing in the same session
		metrics.Flushes.WithLabelValues("below_minimum").Inc()
		return
	default:
		metrics.Flushes.WithLabelValues("credited").Inc()
	}

	record, ok := t.records[session.Hostname]
	if !ok {
		record = storage.UsageRecord{Hostname: session.Hostname, Visits: 1}
	}
	record.TotalTimeMs += elapsed.Milliseconds()
	record.LastVisitAt = now.UnixMilli()
	t.records[session.Hostname] = record
	t.persist(ctx, record)

	t.session.StartedAt = now
	metrics.DwellSecondsCredited.Add(elapsed.Seconds())

	t.logger.Debug().
		Str("hostname", session.Hostname).
		Dur("elapsed", elapsed).
		Int64("total_ms", record.TotalTimeMs).
		Msg("Dwell time credited")
}

func (t *Tracker) goIdle(ctx context.Context) {
	t.flush(ctx)
	t.setSession(Session{})
}

func (t *Tracker) recordVisit(ctx context.Context, hostname string, now time.Time) {
	record, ok := t.records[hostname]
	if !ok {
		record = storage.UsageRecord{Hostname: hostname}
	}
	record.Visits++
	record.LastVisitAt = now.UnixMilli()
	t.records[hostname] = record
	t.persist(ctx, record)

	metrics.VisitsRecorded.Inc()
}

func (t *Tracker) setSession(s Session) {
	t.session = s
	if s.Idle() {
		metrics.TrackingActive.Set(0)
	} else {
		metrics.TrackingActive.Set(1)
	}
}

// persist writes record along with any records whose earlier write failed.
// Failed records stay in memory and are retried on the next persist.
func (t *Tracker) persist(ctx context.Context, record storage.UsageRecord) {
	t.dirty[record.Hostname] = struct{}{}

	for hostname := range t.dirty {
		current, ok := t.records[hostname]
		if !ok {
			delete(t.dirty, hostname)
			continue
		}
		if err := t.write(ctx, current); err != nil {
			metrics.StorageWriteFailures.WithLabelValues(storage.KeyUsageData).Inc()
			t.logger.Warn().
				Err(err).
				Str("hostname", hostname).
				Msg("Failed to persist usage record, keeping it in memory")
			continue
		}
		delete(t.dirty, hostname)
	}
}

func (t *Tracker) write(ctx context.Context, record storage.UsageRecord) error {
	var err error
	for attempt := 0; attempt <= t.writeRetries; attempt++ {
		if err = t.usageStore.Upsert(ctx, record); err == nil {
			return nil
		}
	}
	return err
}
