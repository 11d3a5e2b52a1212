package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
)

func TestManagerCreate(t *testing.T) {
	m := NewManager(newHarness().deps)

	page, err := m.Create("")
	require.NoError(t, err)
	assert.Len(t, page.ID, 4)
	assert.NotNil(t, page.Prediction)
	assert.NotNil(t, page.History)
	assert.False(t, page.CreatedAt.IsZero())

	named, err := m.Create("Tab-1")
	require.NoError(t, err)
	assert.Equal(t, "tab-1", named.ID)

	_, err = m.Create("tab-1")
	assert.ErrorIs(t, err, ErrPageAlreadyExists)

	_, err = m.Create("bad id!")
	assert.ErrorIs(t, err, ErrInvalidPageID)

	assert.Equal(t, 2, m.Count())
}

func TestManagerGetIsCaseInsensitive(t *testing.T) {
	m := NewManager(newHarness().deps)
	created, err := m.Create("abcd")
	require.NoError(t, err)

	got, err := m.Get("ABCD")
	require.NoError(t, err)
	assert.Same(t, created, got)

	_, err = m.Get("nope")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestManagerGetOrCreate(t *testing.T) {
	m := NewManager(newHarness().deps)

	first, err := m.GetOrCreate("cli")
	require.NoError(t, err)
	second, err := m.GetOrCreate("cli")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Count())
}

func TestManagerDeleteReleasesViews(t *testing.T) {
	h := newHarness()
	m := NewManager(h.deps)
	page, err := m.Create("p1")
	require.NoError(t, err)
	require.NoError(t, page.History.Open(HistoryOpenOptions{}))

	assert.Equal(t, 1, h.router.Subscribers(protocol.LabelPredictionResult))
	assert.Equal(t, 1, h.router.Subscribers(protocol.LabelHeaders))

	require.NoError(t, m.Delete("P1"))
	assert.Zero(t, h.router.Subscribers(protocol.LabelPredictionResult))
	assert.Zero(t, h.router.Subscribers(protocol.LabelHeaders))
	assert.ErrorIs(t, m.Delete("p1"), ErrPageNotFound)
	assert.Zero(t, m.Count())
}

func TestManagerList(t *testing.T) {
	h := newHarness()
	m := NewManager(h.deps)
	_, err := m.Create("first")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := m.Create("second")
	require.NoError(t, err)
	require.NoError(t, second.History.Open(HistoryOpenOptions{}))
	require.NoError(t, second.Prediction.Issue(PredictionQuery{Team: "MIN", Season1: 2023, Opponent: "BUF", Season2: 2023}))

	infos := m.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "first", infos[0].ID)
	assert.False(t, infos[0].HistoryOpen)
	assert.Equal(t, "second", infos[1].ID)
	assert.True(t, infos[1].HistoryOpen)
	assert.True(t, infos[1].Predicting)
}

func TestManagerCleanupExpired(t *testing.T) {
	m := NewManager(newHarness().deps)
	_, err := m.Create("old")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = m.Create("new")
	require.NoError(t, err)

	removed := m.CleanupExpired(10 * time.Millisecond)
	assert.Equal(t, 1, removed)
	_, err = m.Get("old")
	assert.ErrorIs(t, err, ErrPageNotFound)
	_, err = m.Get("new")
	assert.NoError(t, err)
}

func TestManagerChangeHook(t *testing.T) {
	h := newHarness()
	m := NewManager(h.deps)

	type event struct {
		page, view string
		snapshot   any
	}
	var mu sync.Mutex
	var events []event
	m.OnChange(func(pageID, view string, snapshot any) {
		mu.Lock()
		events = append(events, event{pageID, view, snapshot})
		mu.Unlock()
	})

	page, err := m.Create("hooked")
	require.NoError(t, err)
	require.NoError(t, page.Prediction.Issue(PredictionQuery{Team: "MIN", Season1: 2023, Opponent: "BUF", Season2: 2023}))
	h.router.Dispatch(protocol.PredictionResult{RequestID: "req-1", WinPct: 0.73})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "hooked", e.page)
		assert.Equal(t, ViewPrediction, e.view)
	}
	last, ok := events[1].snapshot.(PredictionSnapshot)
	require.True(t, ok)
	require.NotNil(t, last.Outcome)
	assert.Equal(t, 73, last.Outcome.Team1Wins)
}

func TestManagerClose(t *testing.T) {
	h := newHarness()
	m := NewManager(h.deps)
	for _, id := range []string{"a1", "b2", "c3"} {
		_, err := m.Create(id)
		require.NoError(t, err)
	}

	m.Close()
	assert.Zero(t, m.Count())
	assert.Zero(t, h.router.Subscribers(protocol.LabelPredictionResult))
}
