package daemon

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/runnerr0/dwell/internal/debuglog"
	"github.com/runnerr0/dwell/internal/tracker"
)

const (
	actionGetTodayData = "getTodayData"
	defaultLogLimit    = 100
)

// eventsRequest accepts either a bare event or {"events": [...]}.
type eventsRequest struct {
	tracker.Event
	Events []tracker.Event `json:"events"`
}

type messageRequest struct {
	Action string `json:"action" binding:"required"`
}

// Status is the body of GET /status.
type Status struct {
	Service       string            `json:"service"`
	Version       string            `json:"version"`
	Backend       string            `json:"backend"`
	StartedAt     time.Time         `json:"startedAt"`
	QueueDepth    int               `json:"queueDepth"`
	Tabs          int               `json:"tabs"`
	WindowFocused bool              `json:"windowFocused"`
	Current       *tracker.Interval `json:"current,omitempty"`
	TodayMs       int64             `json:"todayMs"`
	StreamClients int               `json:"streamClients"`
}

func (s *Server) postEvents(c *gin.Context) {
	var req eventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, fail("request body too large"))
			return
		}
		c.JSON(http.StatusBadRequest, fail("invalid request body: "+err.Error()))
		return
	}

	events := req.Events
	if len(events) == 0 {
		events = []tracker.Event{req.Event}
	}
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, fail("event "+strconv.Itoa(i)+": "+err.Error()))
			return
		}
	}

	accepted := 0
	for _, ev := range events {
		if err := s.queue.Submit(ev); err != nil {
			s.logger.Warn("dropping event", "type", ev.Type, "tabId", ev.TabID, "error", err)
			c.JSON(http.StatusServiceUnavailable, errorWrapper{
				Message: err.Error() + "; accepted " + strconv.Itoa(accepted) + " of " + strconv.Itoa(len(events)),
			})
			return
		}
		accepted++
	}

	c.JSON(http.StatusAccepted, ok(gin.H{"accepted": accepted}))
}

func (s *Server) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fail("invalid request body: "+err.Error()))
		return
	}

	switch req.Action {
	case actionGetTodayData:
		c.JSON(http.StatusOK, ok(s.tracker.TodayTotals(c.Request.Context())))
	default:
		c.JSON(http.StatusBadRequest, fail("unknown action "+strconv.Quote(req.Action)))
	}
}

func (s *Server) getToday(c *gin.Context) {
	c.JSON(http.StatusOK, ok(s.tracker.TodayTotals(c.Request.Context())))
}

func (s *Server) getDebugLog(c *gin.Context) {
	if s.ring == nil {
		c.JSON(http.StatusOK, ok([]debuglog.Entry{}))
		return
	}

	if raw := c.Query("since"); raw != "" {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, fail("invalid since: "+raw))
			return
		}
		c.JSON(http.StatusOK, ok(s.ring.Since(seq)))
		return
	}

	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, fail("invalid limit: "+raw))
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, ok(s.ring.Last(limit)))
}

// streamDebugLog pushes new log entries as server-sent events until the
// client goes away or the daemon shuts down.
func (s *Server) streamDebugLog(c *gin.Context) {
	if s.ring == nil {
		c.JSON(http.StatusNotFound, fail("debug log disabled"))
		return
	}

	entries, cancel := s.ring.Subscribe(64)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case e, open := <-entries:
			if !open {
				return false
			}
			c.SSEvent("log", e)
			return true
		case <-c.Request.Context().Done():
			return false
		case <-s.stopping:
			return false
		}
	})
}

func (s *Server) getStatus(c *gin.Context) {
	st := Status{
		Service:       "dwell",
		Version:       s.version,
		Backend:       s.backend,
		StartedAt:     s.startedAt,
		QueueDepth:    s.queue.Len(),
		Tabs:          s.registry.Len(),
		WindowFocused: s.tracker.WindowFocused(),
	}
	if s.ring != nil {
		st.StreamClients = s.ring.Subscribers()
	}
	if cur, open := s.tracker.Current(); open {
		st.Current = &cur
	}
	for _, d := range s.tracker.TodayTotals(c.Request.Context()) {
		st.TodayMs += d.TimeSpent
	}
	c.JSON(http.StatusOK, ok(st))
}
