package scan

import (
	"time"

	"github.com/raine/survival-bro/internal/llm"
)

// Status is the analysis lifecycle state of a ScannedItem.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAnalyzed Status = "analyzed"
	StatusFailed   Status = "failed"
)

// ScannedItem is one uploaded photo and its analysis outcome.
//
// Result is set only when Status is StatusAnalyzed and Failure only when it is
// StatusFailed. Items are values; the Store replaces them instead of mutating,
// and Result must be treated as read-only.
type ScannedItem struct {
	ID        string
	ImageData string // data URL
	CreatedAt time.Time
	Status    Status
	Result    *llm.AnalysisResult
	Failure   string // one of the llm.Kind* values
}

// IsThreat reports whether the item was analyzed as HIGH or CRITICAL.
func (i ScannedItem) IsThreat() bool {
	return i.Status == StatusAnalyzed && i.Result != nil && i.Result.RiskLevel.IsThreat()
}

const (
	// NotificationMessage is shown for every high-risk alert.
	NotificationMessage = "兄弟，有嘢搞"
	// NotificationTTL is how long an alert stays before it expires.
	NotificationTTL = 5 * time.Second
)

// Notification is a transient alert pointing at one analyzed item.
type Notification struct {
	ID           string
	Message      string
	TargetItemID string
	CreatedAt    time.Time
}

// EventType identifies a Store mutation.
type EventType string

const (
	EventItemAdded           EventType = "item_added"
	EventItemAnalyzed        EventType = "item_analyzed"
	EventItemFailed          EventType = "item_failed"
	EventItemDeleted         EventType = "item_deleted"
	EventItemSelected        EventType = "item_selected"
	EventNotificationCreated EventType = "notification_created"
	EventNotificationExpired EventType = "notification_expired"
)

// Event is delivered to subscribers after a mutation has been applied.
type Event struct {
	Type         EventType
	Item         ScannedItem
	Notification Notification
}
