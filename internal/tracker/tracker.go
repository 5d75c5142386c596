package tracker

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/runnerr0/dwell/internal/storage"
)

// DefaultMinDuration is the shortest interval committed to the store.
const DefaultMinDuration = 1000 * time.Millisecond

// Interval is the span currently being timed.
type Interval struct {
	TabID     int       `json:"tabId"`
	Domain    string    `json:"domain"`
	StartedAt time.Time `json:"startedAt"`
}

// Options configures a Tracker. Store and Source are required.
type Options struct {
	Store  storage.Store
	Source BrowserSource
	Clock  Clock
	Logger *slog.Logger

	// MinDuration defaults to DefaultMinDuration when zero.
	MinDuration    time.Duration
	IgnoredSchemes []string
	ExcludeDomains []string
}

// Tracker turns tab and focus events into committed per-domain durations.
// At most one interval is open at a time. Every handler runs under one lock,
// including its store and source calls, so handlers never interleave.
type Tracker struct {
	mu sync.Mutex

	store  storage.Store
	source BrowserSource
	clock  Clock
	logger *slog.Logger

	minDuration    time.Duration
	ignoredSchemes []string
	excluded       map[string]bool

	current       *Interval
	windowFocused bool
}

// New creates a Tracker. The window is assumed focused until told otherwise.
func New(opts Options) *Tracker {
	t := &Tracker{
		store:         opts.Store,
		source:        opts.Source,
		clock:         opts.Clock,
		logger:        opts.Logger,
		minDuration:   opts.MinDuration,
		excluded:      make(map[string]bool, len(opts.ExcludeDomains)),
		windowFocused: true,
	}
	if t.clock == nil {
		t.clock = SystemClock
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t.minDuration == 0 {
		t.minDuration = DefaultMinDuration
	}
	for _, s := range opts.IgnoredSchemes {
		t.ignoredSchemes = append(t.ignoredSchemes, strings.ToLower(s))
	}
	for _, d := range opts.ExcludeDomains {
		t.excluded[strings.ToLower(d)] = true
	}
	return t
}

// MinDuration reports the commit threshold in use.
func (t *Tracker) MinDuration() time.Duration {
	return t.minDuration
}

// Handle dispatches a browser event. It never fails; problems are logged.
func (t *Tracker) Handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventTabActivated:
		t.OnTabActivated(ctx, ev.TabID)
	case EventTabUpdated:
		t.OnTabUpdated(ctx, ev.TabID, ev.Status == StatusComplete, ev.Active, ev.URL)
	case EventWindowFocusChanged:
		t.OnWindowFocusChanged(ctx, ev.WindowID)
	case EventTabRemoved:
		// The next activation closes the interval; nothing to do here.
		t.logger.Debug("tab removed", "tabId", ev.TabID)
	default:
		t.logger.Warn("ignoring unknown event", "type", ev.Type)
	}
}

// OnTabActivated handles the active tab of some window changing.
func (t *Tracker) OnTabActivated(ctx context.Context, tabID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transitionLocked(ctx, tabID)
}

// OnTabUpdated handles a navigation in a tab. Only a completed load of the
// active tab in a focused window causes a transition.
func (t *Tracker) OnTabUpdated(ctx context.Context, tabID int, loadComplete, active bool, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !loadComplete || !active || !t.windowFocused {
		return
	}
	t.logger.Debug("active tab navigated", "tabId", tabID, "url", url)
	t.transitionLocked(ctx, tabID)
}

// OnWindowFocusChanged handles focus moving between windows or leaving the
// browser (windowID == WindowNone).
func (t *Tracker) OnWindowFocusChanged(ctx context.Context, windowID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if windowID == WindowNone {
		t.windowFocused = false
		t.closeLocked(ctx, t.clock.Now())
		t.logger.Debug("browser lost focus")
		return
	}

	t.windowFocused = true

	tab, err := t.source.ActiveTab(ctx, windowID)
	if err != nil {
		t.logger.Warn("active tab lookup failed", "windowId", windowID, "error", err)
		return
	}
	if tab == nil {
		t.logger.Debug("focused window has no active tab", "windowId", windowID)
		return
	}
	t.transitionLocked(ctx, tab.ID)
}

// Flush closes the open interval, committing it if eligible, without
// changing focus state. Called on shutdown.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeLocked(ctx, t.clock.Now())
}

// Current returns a copy of the open interval, if any.
func (t *Tracker) Current() (Interval, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Interval{}, false
	}
	return *t.current, true
}

// WindowFocused reports whether the tracker believes a browser window has focus.
func (t *Tracker) WindowFocused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.windowFocused
}

// TodayTotals returns today's committed totals, longest first. The open
// interval is not included. Store failures yield an empty result.
func (t *Tracker) TodayTotals(ctx context.Context) []storage.DomainData {
	return Totals(ctx, t.store, storage.DayKey(t.clock.Now()), t.logger)
}

// Totals reads one day's totals from store, sorted longest first. It never
// fails: a read error is logged and an empty slice is returned.
func Totals(ctx context.Context, store storage.Store, day string, logger *slog.Logger) []storage.DomainData {
	totals, err := store.GetDay(ctx, day)
	if err != nil {
		if logger != nil {
			logger.Warn("reading totals failed", "day", day, "error", err)
		}
		return []storage.DomainData{}
	}
	return totals.Sorted()
}

// transitionLocked is the only place intervals are opened. t.mu must be held.
func (t *Tracker) transitionLocked(ctx context.Context, tabID int) {
	if !t.windowFocused {
		t.logger.Debug("ignoring tab event while unfocused", "tabId", tabID)
		return
	}

	now := t.clock.Now()
	t.closeLocked(ctx, now)

	tab, err := t.source.GetTab(ctx, tabID)
	if err != nil {
		t.logger.Warn("tab lookup failed", "tabId", tabID, "error", err)
		return
	}

	domain, ok := t.trackable(tab.URL)
	if !ok {
		t.logger.Debug("tab not trackable", "tabId", tabID, "url", tab.URL)
		return
	}

	t.current = &Interval{TabID: tabID, Domain: domain, StartedAt: now}
	t.logger.Debug("interval opened", "tabId", tabID, "domain", domain)
}

// closeLocked ends the open interval at now and commits it when it meets the
// threshold. The interval is cleared whether or not the commit happens.
func (t *Tracker) closeLocked(ctx context.Context, now time.Time) {
	cur := t.current
	if cur == nil {
		return
	}
	t.current = nil

	elapsed := now.Sub(cur.StartedAt)
	if elapsed < t.minDuration {
		t.logger.Debug("interval below threshold",
			"domain", cur.Domain, "elapsedMs", elapsed.Milliseconds())
		return
	}

	c := storage.NewCommit(cur.Domain, cur.TabID, cur.StartedAt, now)
	if err := t.store.AddDuration(ctx, c); err != nil {
		t.logger.Warn("commit failed",
			"domain", cur.Domain, "day", c.Day, "ms", c.DurationMs, "error", err)
		return
	}

	t.logger.Info("interval committed",
		"id", c.ID.String(), "domain", c.Domain, "day", c.Day, "ms", c.DurationMs)
}

func (t *Tracker) trackable(rawURL string) (string, bool) {
	domain, ok := ExtractDomain(rawURL, t.ignoredSchemes)
	if !ok {
		return "", false
	}
	if t.excluded[strings.ToLower(domain)] {
		return "", false
	}
	return domain, true
}
