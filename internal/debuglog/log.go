// Package debuglog keeps the most recent tracker log records in a fixed-size
// ring and fans them out to optional live subscribers (the popup's debug view).
package debuglog

import (
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Seq     int64          `json:"seq"`
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Log is a ring buffer of entries with broadcast to subscribers.
// Safe for concurrent use.
type Log struct {
	mu sync.Mutex

	entries  []Entry
	capacity int
	head     int   // index where the next write goes
	total    int64 // monotonic count of entries ever added

	subs   map[int]chan Entry
	nextID int
}

// New creates a Log holding at most capacity entries. A non-positive
// capacity keeps one entry.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		subs:     make(map[int]chan Entry),
	}
}

// Add appends e, evicting the oldest entry when full, and offers it to every
// subscriber. A subscriber whose channel is full misses the entry.
func (l *Log) Add(e Entry) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	e.Seq = l.total
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, e)
	} else {
		l.entries[l.head] = e
	}
	l.head = (l.head + 1) % l.capacity

	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return e
}

// All returns every buffered entry, oldest first.
func (l *Log) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.orderedLocked()
}

// Last returns up to n most recent entries, oldest first.
func (l *Log) Last(n int) []Entry {
	all := l.All()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Since returns buffered entries with Seq greater than seq, oldest first.
// Entries already evicted are silently skipped.
func (l *Log) Since(seq int64) []Entry {
	all := l.All()
	for i, e := range all {
		if e.Seq > seq {
			return all[i:]
		}
	}
	return []Entry{}
}

func (l *Log) orderedLocked() []Entry {
	out := make([]Entry, len(l.entries))
	if len(l.entries) < l.capacity {
		copy(out, l.entries)
		return out
	}
	n := copy(out, l.entries[l.head:])
	copy(out[n:], l.entries[:l.head])
	return out
}

// Subscribe registers a live listener with the given channel buffer. The
// returned cancel func unregisters and closes the channel; calling it more
// than once is a no-op, and entries added afterwards are never sent to it.
func (l *Log) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Entry, buffer)

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			close(ch)
			l.mu.Unlock()
		})
	}
	return ch, cancel
}

// Subscribers reports the number of live listeners.
func (l *Log) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}
