// Package tabs keeps a view of the browser's tabs built from the events the
// extension posts, and answers the tracker's tab lookups from it.
package tabs

import (
	"context"
	"errors"
	"sync"

	"github.com/runnerr0/dwell/internal/tracker"
)

// ErrTabNotFound is returned for tabs that were never seen or have been removed.
var ErrTabNotFound = errors.New("tab not found")

// Registry implements tracker.BrowserSource.
type Registry struct {
	mu   sync.RWMutex
	tabs map[int]*tracker.Tab
}

var _ tracker.BrowserSource = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{tabs: make(map[int]*tracker.Tab)}
}

// Apply folds one event into the registry. Focus events carry no tab state
// and are ignored.
func (r *Registry) Apply(ev tracker.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case tracker.EventTabActivated:
		tab := r.upsertLocked(ev.TabID, ev.WindowID)
		if ev.URL != "" {
			tab.URL = ev.URL
		}
		r.activateLocked(tab)

	case tracker.EventTabUpdated:
		tab := r.upsertLocked(ev.TabID, ev.WindowID)
		if ev.URL != "" {
			tab.URL = ev.URL
		}
		if ev.Active {
			r.activateLocked(tab)
		} else {
			tab.Active = false
		}

	case tracker.EventTabRemoved:
		delete(r.tabs, ev.TabID)
	}
}

// activateLocked marks tab active and clears the flag on its window's other tabs.
func (r *Registry) activateLocked(tab *tracker.Tab) {
	for id, other := range r.tabs {
		if id != tab.ID && other.WindowID == tab.WindowID {
			other.Active = false
		}
	}
	tab.Active = true
}

func (r *Registry) upsertLocked(tabID, windowID int) *tracker.Tab {
	tab, ok := r.tabs[tabID]
	if !ok {
		tab = &tracker.Tab{ID: tabID, WindowID: windowID}
		r.tabs[tabID] = tab
	}
	// Tabs can be dragged between windows.
	if windowID != 0 && windowID != tracker.WindowNone {
		tab.WindowID = windowID
	}
	return tab
}

// ActiveTab returns the active tab of windowID, or nil when none is known.
func (r *Registry) ActiveTab(_ context.Context, windowID int) (*tracker.Tab, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tab := range r.tabs {
		if tab.WindowID == windowID && tab.Active {
			cp := *tab
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Registry) GetTab(_ context.Context, tabID int) (*tracker.Tab, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tab, ok := r.tabs[tabID]
	if !ok {
		return nil, ErrTabNotFound
	}
	cp := *tab
	return &cp, nil
}

// Len reports how many tabs are known.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}
