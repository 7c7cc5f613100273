package backtest

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Hard limit kinds. Each bounds a whole batch, not a single member.
const (
	LimitCalls    = "calls"
	LimitDuration = "duration"
	LimitMembers  = "members"
)

// HardLimitError reports that a batch-wide cost ceiling was reached. Runs in
// flight are paused with their checkpoints intact; nothing is discarded.
type HardLimitError struct {
	Kind  string
	Limit string
}

func (e *HardLimitError) Error() string {
	return fmt.Sprintf("hard limit reached: %s exceeds %s", e.Kind, e.Limit)
}

// IsHardLimit reports whether err is, or wraps, a hard limit stop.
func IsHardLimit(err error) bool {
	var hl *HardLimitError
	return errors.As(err, &hl)
}

// Budget is the shared cost meter for a batch: an outbound call counter and
// a wall clock deadline. All runners of a batch share one Budget so the
// ceilings bound the process, not each member.
type Budget struct {
	mu       sync.Mutex
	used     int
	maxCalls int
	deadline time.Time
	now      func() time.Time
}

// NewBudget creates a budget of maxCalls outbound calls and maxDuration of
// wall time starting now. Zero values disable the respective ceiling.
func NewBudget(maxCalls int, maxDuration time.Duration, now func() time.Time) *Budget {
	if now == nil {
		now = time.Now
	}
	b := &Budget{maxCalls: maxCalls, now: now}
	if maxDuration > 0 {
		b.deadline = now().Add(maxDuration)
	}
	return b
}

// Take reserves one outbound call, or reports which ceiling blocks it. The
// duration check runs here too so a long-stalled run stops at its next call.
func (b *Budget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.deadline.IsZero() && !b.now().Before(b.deadline) {
		return &HardLimitError{Kind: LimitDuration, Limit: b.deadline.Format(time.RFC3339)}
	}
	if b.maxCalls > 0 && b.used >= b.maxCalls {
		return &HardLimitError{Kind: LimitCalls, Limit: fmt.Sprintf("%d calls", b.maxCalls)}
	}
	b.used++
	return nil
}

// Used returns the number of calls taken so far.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}
