package tracker

import (
	"context"
	"fmt"
	"time"
)

// WindowNone is the window id the browser reports when no window has focus.
const WindowNone = -1

// StatusComplete is the tab status that marks a finished page load.
const StatusComplete = "complete"

// Event types accepted from the extension.
const (
	EventTabActivated       = "tab_activated"
	EventTabUpdated         = "tab_updated"
	EventTabRemoved         = "tab_removed"
	EventWindowFocusChanged = "window_focus_changed"
)

// Event is one browser notification as posted by the extension. Tab fields
// carry the snapshot the extension has at the time of the event.
type Event struct {
	Type      string    `json:"type"`
	TabID     int       `json:"tabId"`
	WindowID  int       `json:"windowId"`
	URL       string    `json:"url,omitempty"`
	Active    bool      `json:"active,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"ts,omitempty"`
}

// Validate checks that the event type is known.
func (e Event) Validate() error {
	switch e.Type {
	case EventTabActivated, EventTabUpdated, EventTabRemoved, EventWindowFocusChanged:
		return nil
	case "":
		return fmt.Errorf("event type is required")
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}

// Tab is what the browser source knows about a tab.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"windowId"`
	URL      string `json:"url"`
	Active   bool   `json:"active"`
}

// BrowserSource answers tab lookups for the tracker.
type BrowserSource interface {
	// ActiveTab returns the active tab of windowID, or nil when there is none.
	ActiveTab(ctx context.Context, windowID int) (*Tab, error)
	// GetTab returns the tab with tabID. It fails when the tab no longer exists.
	GetTab(ctx context.Context, tabID int) (*Tab, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
