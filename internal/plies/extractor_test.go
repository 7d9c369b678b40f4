package plies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func event(pr int, actor string, offset time.Duration) plumbing.Event {
	return plumbing.Event{
		PRNumber:  pr,
		Actor:     actor,
		Timestamp: base.Add(offset),
		Kind:      plumbing.EventComment,
	}
}

func TestPlySegmentation(t *testing.T) {
	t.Parallel()

	events := []plumbing.Event{
		event(1, "author", 0),
		event(1, "reviewer", time.Hour),
		event(1, "reviewer", 2*time.Hour),
		event(1, "author", 3*time.Hour),
	}

	result := NewExtractor(nil).Extract(events)
	require.Len(t, result.Sessions, 1)

	session := result.Sessions[0]
	require.Len(t, session.Plies, 3)

	assert.Equal(t, "author", session.Plies[0].Actor)
	assert.Equal(t, "reviewer", session.Plies[1].Actor)
	assert.Equal(t, "author", session.Plies[2].Actor)

	for i, ply := range session.Plies {
		assert.Equal(t, i, ply.Sequence)
		assert.Equal(t, 1, ply.PRNumber)
	}

	assert.Equal(t, 2, session.Exchanges)
	assert.False(t, session.AuthorOnly)
	assert.Equal(t, 3*time.Hour, session.WallClock)
}

func TestEngagementUsesGlobalMeanGap(t *testing.T) {
	t.Parallel()

	events := []plumbing.Event{
		// PR 1: gaps of 1h and 3h.
		event(1, "author", 0),
		event(1, "reviewer", time.Hour),
		event(1, "author", 4*time.Hour),
		// PR 2: one gap of 2h.
		event(2, "author", 0),
		event(2, "reviewer", 2*time.Hour),
	}

	result := NewExtractor(nil).Extract(events)
	assert.Equal(t, 2*time.Hour, result.MeanReplyGap)

	require.Len(t, result.Sessions, 2)
	assert.Equal(t, 4*time.Hour, result.Sessions[0].Engagement)
	assert.Equal(t, 2*time.Hour, result.Sessions[1].Engagement)
}

func TestAuthorOnlyPRSurfaces(t *testing.T) {
	t.Parallel()

	events := []plumbing.Event{
		event(7, "author", 0),
		event(7, "author", time.Hour),
	}

	result := NewExtractor(nil).Extract(events)
	require.Len(t, result.Sessions, 1)

	session := result.Sessions[0]
	assert.True(t, session.AuthorOnly)
	assert.Equal(t, 0, session.Exchanges)
	require.Len(t, session.Plies, 1)
	assert.Equal(t, time.Duration(0), session.Engagement)
}

func TestSequencesResetPerPR(t *testing.T) {
	t.Parallel()

	events := []plumbing.Event{
		event(1, "a", 0),
		event(1, "b", time.Minute),
		event(2, "a", 0),
		event(2, "b", time.Minute),
		event(2, "a", 2*time.Minute),
	}

	result := NewExtractor(nil).Extract(events)
	require.Len(t, result.Sessions, 2)

	assert.Equal(t, []int{0, 1}, sequences(result.Sessions[0]))
	assert.Equal(t, []int{0, 1, 2}, sequences(result.Sessions[1]))
}

func sequences(session Session) []int {
	out := make([]int, len(session.Plies))
	for i, ply := range session.Plies {
		out[i] = ply.Sequence
	}

	return out
}

func TestNoEvents(t *testing.T) {
	t.Parallel()

	result := NewExtractor(nil).Extract(nil)
	assert.Empty(t, result.Sessions)
	assert.Equal(t, time.Duration(0), result.MeanReplyGap)
}
