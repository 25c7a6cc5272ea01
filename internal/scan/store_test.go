package scan

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raine/survival-bro/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimers collects scheduled functions so tests decide when they fire.
type manualTimers struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.pending = append(m.pending, f)
}

func (m *manualTimers) FireAll() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func (m *manualTimers) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// sequentialIDs returns ids "id-1", "id-2", ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore() (*Store, *manualTimers) {
	timers := &manualTimers{}
	store := NewStore(
		WithIDGenerator(sequentialIDs()),
		WithAfterFunc(timers.AfterFunc),
	)
	return store, timers
}

func report(level llm.RiskLevel) *llm.AnalysisResult {
	return &llm.AnalysisResult{
		RiskLevel:    level,
		RiskSpots:    []string{"spot"},
		Scripts:      []string{"script"},
		Excuses:      []string{"excuse"},
		Summary:      "summary",
		ActionNeeded: llm.ActionNone,
	}
}

func itemIDs(items []ScannedItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// assertStatusInvariant checks that result presence matches status for every item.
func assertStatusInvariant(t *testing.T, store *Store) {
	t.Helper()
	for _, it := range store.Items() {
		switch it.Status {
		case StatusAnalyzed:
			assert.NotNil(t, it.Result, "analyzed item %s has no result", it.ID)
			assert.Empty(t, it.Failure)
		case StatusPending:
			assert.Nil(t, it.Result, "pending item %s has a result", it.ID)
		case StatusFailed:
			assert.Nil(t, it.Result, "failed item %s has a result", it.ID)
			assert.NotEmpty(t, it.Failure)
		default:
			t.Errorf("item %s has unknown status %q", it.ID, it.Status)
		}
	}
}

func TestStore_AddIsMostRecentFirst(t *testing.T) {
	store, _ := newTestStore()

	a := store.Add("data:image/jpeg;base64,AA==")
	b := store.Add("data:image/jpeg;base64,AQ==")
	c := store.Add("data:image/jpeg;base64,Ag==")

	assert.Equal(t, []string{c.ID, b.ID, a.ID}, itemIDs(store.Items()))
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, 3, store.ScannedCount())
	assert.Equal(t, 0, store.ThreatCount())
	assertStatusInvariant(t, store)
}

func TestStore_DefaultIDsAreUnique(t *testing.T) {
	store := NewStore()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		item := store.Add("x")
		assert.False(t, seen[item.ID], "duplicate id %s", item.ID)
		assert.Len(t, item.ID, 36)
		seen[item.ID] = true
	}
}

func TestStore_NotificationOnlyForThreats(t *testing.T) {
	tests := []struct {
		name             string
		level            llm.RiskLevel
		wantNotification bool
	}{
		{name: "low", level: llm.RiskLow, wantNotification: false},
		{name: "medium", level: llm.RiskMedium, wantNotification: false},
		{name: "high", level: llm.RiskHigh, wantNotification: true},
		{name: "critical", level: llm.RiskCritical, wantNotification: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, timers := newTestStore()
			item := store.Add("x")

			store.OnAnalysisSucceeded(item.ID, report(tt.level))

			got, ok := store.Item(item.ID)
			require.True(t, ok)
			assert.Equal(t, StatusAnalyzed, got.Status)
			assert.Equal(t, tt.level, got.Result.RiskLevel)

			notifications := store.Notifications()
			if tt.wantNotification {
				require.Len(t, notifications, 1)
				assert.Equal(t, item.ID, notifications[0].TargetItemID)
				assert.Equal(t, "兄弟，有嘢搞", notifications[0].Message)
				assert.Equal(t, 1, timers.Count())
				assert.Equal(t, []time.Duration{5 * time.Second}, timers.delays)
				assert.Equal(t, 1, store.ThreatCount())
			} else {
				assert.Empty(t, notifications)
				assert.Equal(t, 0, timers.Count())
				assert.Equal(t, 0, store.ThreatCount())
			}
			assertStatusInvariant(t, store)
		})
	}
}

func TestStore_FailureCreatesNoNotification(t *testing.T) {
	store, timers := newTestStore()
	item := store.Add("x")

	store.OnAnalysisFailed(item.ID, &llm.ConfigurationError{Setting: "GEMINI_API_KEY", Reason: "is not set"})

	got, _ := store.Item(item.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, llm.KindConfiguration, got.Failure)
	assert.Nil(t, got.Result)
	assert.Empty(t, store.Notifications())
	assert.Equal(t, 0, timers.Count())
	assertStatusInvariant(t, store)
}

func TestStore_UnknownIDIsNoOp(t *testing.T) {
	store, timers := newTestStore()
	kept := store.Add("x")
	before := store.Items()

	var events []Event
	store.Subscribe(func(ev Event) { events = append(events, ev) })

	assert.NotPanics(t, func() {
		store.OnAnalysisSucceeded("missing", report(llm.RiskCritical))
		store.OnAnalysisFailed("missing", errors.New("boom"))
		store.Delete("missing")
		store.DismissExpiredNotification("missing")
	})

	assert.Equal(t, before, store.Items())
	assert.Empty(t, store.Notifications())
	assert.Equal(t, 0, timers.Count())
	assert.Empty(t, events)
	got, _ := store.Item(kept.ID)
	assert.Equal(t, StatusPending, got.Status)
}

func TestStore_OutcomeAppliesOnlyOnce(t *testing.T) {
	store, _ := newTestStore()
	item := store.Add("x")

	store.OnAnalysisSucceeded(item.ID, report(llm.RiskCritical))
	store.OnAnalysisFailed(item.ID, errors.New("late failure"))
	store.OnAnalysisSucceeded(item.ID, report(llm.RiskHigh))

	got, _ := store.Item(item.ID)
	assert.Equal(t, StatusAnalyzed, got.Status)
	assert.Equal(t, llm.RiskCritical, got.Result.RiskLevel)
	assert.Len(t, store.Notifications(), 1)
}

func TestStore_DeleteClearsSelection(t *testing.T) {
	store, _ := newTestStore()
	a := store.Add("a")
	b := store.Add("b")

	store.Select(a.ID)
	selected, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, a.ID, selected.ID)

	store.Delete(b.ID)
	_, ok = store.Selected()
	assert.True(t, ok, "deleting another item keeps the selection")

	store.Delete(a.ID)
	_, ok = store.Selected()
	assert.False(t, ok)
	assert.Equal(t, 0, store.ScannedCount())
}

func TestStore_SelectAcceptsAnyID(t *testing.T) {
	store, _ := newTestStore()
	store.Select("does-not-exist")
	_, ok := store.Selected()
	assert.False(t, ok)
}

func TestStore_NotificationExpiry(t *testing.T) {
	store, timers := newTestStore()
	item := store.Add("x")
	store.OnAnalysisSucceeded(item.ID, report(llm.RiskHigh))
	require.Len(t, store.Notifications(), 1)
	notificationID := store.Notifications()[0].ID

	// Clicking selects the target and leaves the timer running.
	n, ok := store.OpenNotification(notificationID)
	require.True(t, ok)
	assert.Equal(t, item.ID, n.TargetItemID)
	selected, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, item.ID, selected.ID)

	timers.FireAll()
	assert.Empty(t, store.Notifications())

	// Expiry is idempotent.
	assert.NotPanics(t, func() { store.DismissExpiredNotification(notificationID) })
	_, ok = store.OpenNotification(notificationID)
	assert.False(t, ok)
}

func TestStore_ThreatCountTracksDeletes(t *testing.T) {
	store, _ := newTestStore()
	high := store.Add("h")
	crit := store.Add("c")
	low := store.Add("l")
	store.OnAnalysisSucceeded(high.ID, report(llm.RiskHigh))
	store.OnAnalysisSucceeded(crit.ID, report(llm.RiskCritical))
	store.OnAnalysisSucceeded(low.ID, report(llm.RiskLow))
	assert.Equal(t, 2, store.ThreatCount())

	store.Delete(crit.ID)
	assert.Equal(t, 1, store.ThreatCount())
	assert.Equal(t, 2, store.ScannedCount())
}

func TestStore_EventsAreEmittedAfterMutation(t *testing.T) {
	store, timers := newTestStore()

	var events []Event
	store.Subscribe(func(ev Event) {
		// The mutation is already visible to subscribers.
		if ev.Type == EventItemAnalyzed {
			got, ok := store.Item(ev.Item.ID)
			assert.True(t, ok)
			assert.Equal(t, StatusAnalyzed, got.Status)
		}
		events = append(events, ev)
	})

	item := store.Add("x")
	store.OnAnalysisSucceeded(item.ID, report(llm.RiskCritical))
	timers.FireAll()
	store.Delete(item.ID)

	var types []EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{
		EventItemAdded,
		EventItemAnalyzed,
		EventNotificationCreated,
		EventNotificationExpired,
		EventItemDeleted,
	}, types)
	assert.Equal(t, item.ID, events[2].Notification.TargetItemID)
}

func TestStore_ReadersKeepTheirSnapshot(t *testing.T) {
	store, _ := newTestStore()
	item := store.Add("x")
	snapshot := store.Items()

	store.OnAnalysisSucceeded(item.ID, report(llm.RiskLow))

	assert.Equal(t, StatusPending, snapshot[0].Status)
	got, _ := store.Item(item.ID)
	assert.Equal(t, StatusAnalyzed, got.Status)
}
