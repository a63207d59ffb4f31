package runtime

import (
	"chat-relay/domain"
	"time"
)

const (
	DefaultRateLimit  = 5
	DefaultRateWindow = 3 * time.Second
)

// FixedWindow resets the counter wholesale once the window has elapsed.
// It is not a sliding log: bursts across a window boundary are accepted.
type FixedWindow struct {
	Limit  int
	Window time.Duration
}

func NewFixedWindow(limit int, window time.Duration) FixedWindow {
	return FixedWindow{Limit: limit, Window: window}
}

// Allow counts one message against the window and reports whether it may go through.
// A rejected message never moves the window start.
func (f FixedWindow) Allow(w *domain.RateWindow, now time.Time) bool {
	if now.Sub(w.Start) > f.Window {
		w.Count = 1
		w.Start = now
		return true
	}
	w.Count++
	return w.Count <= f.Limit
}
