// Package plies segments PR timelines into turns. A ply is a maximal run of
// consecutive events by the same actor; a new ply begins exactly when the
// acting identity changes. Engagement time is estimated from ply exchanges
// using a flat per-reply constant derived once per run, which separates
// active review effort from raw wall-clock PR lifetime.
package plies

import (
	"log/slog"
	"sort"
	"time"

	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// Session is the turn structure of one pull request.
type Session struct {
	PRNumber int            `json:"pr"`
	Plies    []plumbing.Ply `json:"plies"`

	// Exchanges counts ply transitions: every ply after the first.
	Exchanges int `json:"exchanges"`

	// AuthorOnly marks a PR whose events all came from a single actor.
	// Such PRs surface as zero-exchange sessions, never dropped.
	AuthorOnly bool `json:"author_only"`

	// WallClock is the raw first-to-last event span, idle time included.
	WallClock time.Duration `json:"wall_clock"`

	// Engagement is Exchanges times the global mean reply gap.
	Engagement time.Duration `json:"engagement"`
}

// Result holds every session of a run plus the reply-gap constant the
// engagement estimates are built on.
type Result struct {
	Sessions []Session

	// MeanReplyGap is the run-global average gap between consecutive
	// plies. Kept flat per run rather than per actor.
	MeanReplyGap time.Duration
}

// Extractor converts per-PR event streams into sessions.
type Extractor struct {
	Logger *slog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{Logger: logger}
}

// Extract segments the given events, which must be chronologically sorted
// within each PR, and returns sessions ordered by PR number.
func (e *Extractor) Extract(events []plumbing.Event) *Result {
	byPR := make(map[int][]plumbing.Event)

	for _, event := range events {
		byPR[event.PRNumber] = append(byPR[event.PRNumber], event)
	}

	numbers := make([]int, 0, len(byPR))
	for number := range byPR {
		numbers = append(numbers, number)
	}

	sort.Ints(numbers)

	result := &Result{Sessions: make([]Session, 0, len(numbers))}

	var (
		gapTotal time.Duration
		gapCount int
	)

	for _, number := range numbers {
		session := segment(number, byPR[number])

		for i := 1; i < len(session.Plies); i++ {
			gapTotal += session.Plies[i].Timestamp.Sub(session.Plies[i-1].Timestamp)
			gapCount++
		}

		result.Sessions = append(result.Sessions, session)
	}

	if gapCount > 0 {
		result.MeanReplyGap = gapTotal / time.Duration(gapCount)
	}

	for i := range result.Sessions {
		session := &result.Sessions[i]
		session.Engagement = time.Duration(session.Exchanges) * result.MeanReplyGap
	}

	return result
}

// segment folds one PR's events into plies. Sequence numbers start at 0 and
// reset per PR.
func segment(number int, events []plumbing.Event) Session {
	session := Session{PRNumber: number}
	actors := make(map[string]bool)

	for _, event := range events {
		actors[event.Actor] = true

		last := len(session.Plies) - 1
		if last >= 0 && session.Plies[last].Actor == event.Actor {
			continue
		}

		session.Plies = append(session.Plies, plumbing.Ply{
			PRNumber:  number,
			Actor:     event.Actor,
			Sequence:  last + 1,
			Timestamp: event.Timestamp,
		})
	}

	if len(session.Plies) > 0 {
		session.Exchanges = len(session.Plies) - 1
	}

	session.AuthorOnly = len(actors) == 1

	if len(events) > 0 {
		session.WallClock = events[len(events)-1].Timestamp.Sub(events[0].Timestamp)
	}

	return session
}
