package scan

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raine/survival-bro/internal/llm"
	"github.com/rs/zerolog/log"
)

// Store owns the scanned items and notifications of one session.
//
// Every mutation swaps in a new slice under the write lock, so a slice handed
// out by a reader is never modified afterwards. Subscribers are called after
// the lock is released, from the goroutine that made the change.
type Store struct {
	mu            sync.RWMutex
	items         []ScannedItem // most recent first
	notifications []Notification
	selectedID    string
	listeners     []func(Event)

	newID     func() string
	now       func() time.Time
	afterFunc func(time.Duration, func())
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithAfterFunc replaces the timer used for notification expiry.
func WithAfterFunc(afterFunc func(time.Duration, func())) Option {
	return func(s *Store) { s.afterFunc = afterFunc }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		newID: uuid.NewString,
		now:   time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to receive every subsequent Event.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) emit(ev Event) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// indexOf returns the position of id in items, or -1. Caller holds the lock.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(it ScannedItem) bool { return it.ID == id })
}

// Add inserts a new pending item at the front and returns it.
func (s *Store) Add(imageData string) ScannedItem {
	s.mu.Lock()
	item := ScannedItem{
		ID:        s.newID(),
		ImageData: imageData,
		CreatedAt: s.now(),
		Status:    StatusPending,
	}
	next := make([]ScannedItem, 0, len(s.items)+1)
	next = append(next, item)
	next = append(next, s.items...)
	s.items = next
	s.mu.Unlock()

	s.emit(Event{Type: EventItemAdded, Item: item})
	return item
}

// OnAnalysisSucceeded attaches result to a pending item and raises an alert
// for HIGH and CRITICAL results. Unknown ids and items that are no longer
// pending are ignored.
func (s *Store) OnAnalysisSucceeded(id string, result *llm.AnalysisResult) {
	if result == nil {
		s.OnAnalysisFailed(id, errors.New("analyzer returned no result"))
		return
	}

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		log.Info().Str("itemID", id).Msg("item deleted during analysis, discarding result")
		return
	}
	if status := s.items[idx].Status; status != StatusPending {
		s.mu.Unlock()
		log.Warn().Str("itemID", id).Str("status", string(status)).Msg("item already resolved, discarding result")
		return
	}

	next := slices.Clone(s.items)
	item := next[idx]
	item.Status = StatusAnalyzed
	item.Result = result
	next[idx] = item
	s.items = next

	var notification *Notification
	if result.RiskLevel.IsThreat() {
		n := Notification{
			ID:           s.newID(),
			Message:      NotificationMessage,
			TargetItemID: id,
			CreatedAt:    s.now(),
		}
		notifications := make([]Notification, 0, len(s.notifications)+1)
		notifications = append(notifications, s.notifications...)
		s.notifications = append(notifications, n)
		notification = &n
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventItemAnalyzed, Item: item})

	if notification != nil {
		log.Info().
			Str("itemID", id).
			Str("notificationID", notification.ID).
			Str("riskLevel", string(result.RiskLevel)).
			Msg("threat detected")
		s.emit(Event{Type: EventNotificationCreated, Item: item, Notification: *notification})

		notificationID := notification.ID
		s.afterFunc(NotificationTTL, func() {
			s.DismissExpiredNotification(notificationID)
		})
	}
}

// OnAnalysisFailed marks a pending item as failed and logs err. Unknown ids
// and items that are no longer pending are ignored.
func (s *Store) OnAnalysisFailed(id string, err error) {
	kind := llm.ErrorKind(err)

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		log.Info().Str("itemID", id).Err(err).Msg("item deleted during analysis, discarding failure")
		return
	}
	if s.items[idx].Status != StatusPending {
		s.mu.Unlock()
		return
	}

	next := slices.Clone(s.items)
	item := next[idx]
	item.Status = StatusFailed
	item.Failure = kind
	next[idx] = item
	s.items = next
	s.mu.Unlock()

	event := log.Error().Err(err).Str("itemID", id).Str("kind", kind)
	var formatErr *llm.ResponseFormatError
	if errors.As(err, &formatErr) {
		event = event.Str("raw", formatErr.Raw)
	}
	event.Msg("analysis failed")

	s.emit(Event{Type: EventItemFailed, Item: item})
}

// Select sets the item shown in the detail view. Any id is accepted.
func (s *Store) Select(id string) {
	s.mu.Lock()
	s.selectedID = id
	var item ScannedItem
	if idx := s.indexOf(id); idx >= 0 {
		item = s.items[idx]
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventItemSelected, Item: item})
}

// Selected returns the selected item. ok is false when nothing is selected or
// the selected id does not exist.
func (s *Store) Selected() (ScannedItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedID == "" {
		return ScannedItem{}, false
	}
	idx := s.indexOf(s.selectedID)
	if idx < 0 {
		return ScannedItem{}, false
	}
	return s.items[idx], true
}

// Delete removes an item and clears the selection if it pointed at it. An
// analysis still running for the item is left alone; its outcome is dropped.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	item := s.items[idx]
	next := make([]ScannedItem, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)
	s.items = next
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.mu.Unlock()

	log.Info().Str("itemID", id).Str("status", string(item.Status)).Msg("item deleted")
	s.emit(Event{Type: EventItemDeleted, Item: item})
}

// DismissExpiredNotification removes a notification. Safe to call more than once.
func (s *Store) DismissExpiredNotification(id string) {
	s.mu.Lock()
	idx := slices.IndexFunc(s.notifications, func(n Notification) bool { return n.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	n := s.notifications[idx]
	next := make([]Notification, 0, len(s.notifications)-1)
	next = append(next, s.notifications[:idx]...)
	next = append(next, s.notifications[idx+1:]...)
	s.notifications = next
	s.mu.Unlock()

	s.emit(Event{Type: EventNotificationExpired, Notification: n})
}

// OpenNotification selects the item a notification points at. The
// notification itself is left to expire. Returns false for an unknown id.
func (s *Store) OpenNotification(id string) (Notification, bool) {
	s.mu.RLock()
	idx := slices.IndexFunc(s.notifications, func(n Notification) bool { return n.ID == id })
	var n Notification
	if idx >= 0 {
		n = s.notifications[idx]
	}
	s.mu.RUnlock()

	if idx < 0 {
		return Notification{}, false
	}
	s.Select(n.TargetItemID)
	return n, true
}

// Items returns all items, most recent first.
func (s *Store) Items() []ScannedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Item returns one item by id.
func (s *Store) Item(id string) (ScannedItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return ScannedItem{}, false
	}
	return s.items[idx], true
}

// Notifications returns the active notifications, oldest first.
func (s *Store) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.notifications)
}

// ScannedCount returns the number of items in the session.
func (s *Store) ScannedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// ThreatCount returns the number of items analyzed as HIGH or CRITICAL.
func (s *Store) ThreatCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, it := range s.items {
		if it.IsThreat() {
			count++
		}
	}
	return count
}
