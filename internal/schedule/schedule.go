// Package schedule decides whether the current invocation falls into a
// publishing slot. Checkpoints are configured times of day; every run
// derives a jittered ("amortized") copy so the exact posting instant
// stays unpredictable to outside observers.
package schedule

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"
)

// safetyMargin pads the postpone guard so a scheduled post from the
// previous slot has time to become visible before the next slot fires.
const safetyMargin = 5 * time.Minute

// Checkpoint is one configured publishing slot per day. At is the time
// of day as an offset from midnight in the schedule's time zone.
type Checkpoint struct {
	At       time.Duration
	Jitter   time.Duration
	Postpone time.Duration
}

func (c Checkpoint) String() string {
	return fmt.Sprintf("at=%s jitter=%s postpone=%s",
		formatOfDay(c.At), c.Jitter, c.Postpone)
}

// Decision is the outcome of evaluating the schedule for one run.
type Decision struct {
	Act        bool
	Checkpoint Checkpoint // the slot being filled, valid when Act
	Reason     string
}

// Evaluator derives per-run amortized schedules. The random source is
// injected so tests can pin the jitter.
type Evaluator struct {
	rng *rand.Rand
}

func NewEvaluator(rng *rand.Rand) *Evaluator {
	return &Evaluator{rng: rng}
}

// Amortize returns a copy of the checkpoints sorted by time of day with
// a uniform random offset in [0, Jitter) added to each.
func (e *Evaluator) Amortize(checkpoints []Checkpoint) []Checkpoint {
	out := make([]Checkpoint, len(checkpoints))
	copy(out, checkpoints)
	sort.Slice(out, func(i, j int) bool { return out[i].At < out[j].At })
	for i := range out {
		if out[i].Jitter > 0 {
			out[i].At += time.Duration(e.rng.Int63n(int64(out[i].Jitter)))
		}
	}
	return out
}

// Current finds the publishing slot this invocation falls into, using
// only the configured checkpoints and the clock. It needs no remote
// data, so a "not yet" answer costs nothing.
func (e *Evaluator) Current(checkpoints []Checkpoint, now time.Time) Decision {
	if len(checkpoints) == 0 {
		return Decision{Reason: "no checkpoints configured"}
	}

	nowOfDay := sinceMidnight(now)
	amortized := e.Amortize(checkpoints)
	log.Printf("Amortized schedule: %v", amortized)

	// Latest amortized checkpoint at or before now.
	current := -1
	for i, cp := range amortized {
		if cp.At <= nowOfDay {
			current = i
		}
	}
	if current < 0 {
		return Decision{Reason: "no checkpoint reached yet"}
	}

	// A still-pending postponed post from the prior slot must not be
	// double-booked.
	previous := amortized[current]
	if current > 0 {
		previous = amortized[current-1]
	}
	if previous.Postpone > 0 && nowOfDay < previous.At+previous.Postpone+safetyMargin {
		return Decision{Reason: fmt.Sprintf(
			"previous checkpoint (%s) may still have a pending postponed post", formatOfDay(previous.At))}
	}

	return Decision{Act: true, Checkpoint: amortized[current]}
}

// AlreadySatisfied reports whether the wall already carries enough
// posts for the slots that have passed today, or whether the cooldown
// since the last post is still running. The expected count uses the
// configured (pre-amortization) checkpoint times.
func AlreadySatisfied(checkpoints []Checkpoint, now time.Time, postedToday []time.Time, cooldown time.Duration) (string, bool) {
	nowOfDay := sinceMidnight(now)

	expected := 0
	for _, cp := range checkpoints {
		if cp.At <= nowOfDay {
			expected++
		}
	}

	actual := 0
	var last time.Time
	for _, t := range postedToday {
		if t.Before(now) {
			actual++
			if t.After(last) {
				last = t
			}
		}
	}

	if actual >= expected {
		return fmt.Sprintf("wall already has %d posts for %d passed checkpoints", actual, expected), true
	}
	if !last.IsZero() && now.Sub(last) < cooldown {
		return fmt.Sprintf("cooldown %s since last post at %s not over yet",
			cooldown, last.Format("15:04")), true
	}
	return "", false
}

// Evaluate combines Current and AlreadySatisfied into one gate.
func (e *Evaluator) Evaluate(checkpoints []Checkpoint, now time.Time, postedToday []time.Time, cooldown time.Duration) Decision {
	d := e.Current(checkpoints, now)
	if !d.Act {
		return d
	}
	if reason, done := AlreadySatisfied(checkpoints, now, postedToday, cooldown); done {
		return Decision{Reason: reason}
	}
	return d
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

func formatOfDay(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
