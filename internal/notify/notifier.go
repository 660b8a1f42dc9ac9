package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tcgmx/storefront-core/internal/domain"
)

// EventKind names the notifications the core raises for external listeners
type EventKind string

const (
	EventCartChanged      EventKind = "cart-changed"
	EventCartChangeFailed EventKind = "cart-change-failed"
	EventFiltersApplied   EventKind = "filters-applied"
)

// Severity classifies user-visible notices
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is the stable payload shape delivered to listeners
type Event struct {
	ID                uuid.UUID    `json:"id"`
	Kind              EventKind    `json:"kind"`
	At                time.Time    `json:"at"`
	Cart              *domain.Cart `json:"cart,omitempty"`
	Message           string       `json:"message,omitempty"`
	Cause             string       `json:"cause,omitempty"`
	ShownCount        int          `json:"shown_count,omitempty"`
	ActiveFilterCount int          `json:"active_filter_count,omitempty"`
}

// Listener receives published events. Listeners run synchronously on the
// publishing goroutine, matching the single-threaded event model of the page.
type Listener func(Event)

// Notice is one user-visible message. It disappears from ActiveNotices once
// its dismiss interval elapses; nothing needs to delete it explicitly.
type Notice struct {
	ID        uuid.UUID `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier fans events out to subscribed listeners and keeps the short-lived
// notice list the UI surfaces as toasts
type Notifier struct {
	mu           sync.Mutex
	listeners    map[EventKind][]Listener
	notices      []Notice
	dismissAfter time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewNotifier creates a notifier whose notices auto-dismiss after the given
// interval (0 falls back to 4 seconds, matching the storefront toasts)
func NewNotifier(dismissAfter time.Duration, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dismissAfter <= 0 {
		dismissAfter = 4 * time.Second
	}
	return &Notifier{
		listeners:    make(map[EventKind][]Listener),
		dismissAfter: dismissAfter,
		logger:       logger,
		now:          time.Now,
	}
}

// Subscribe registers a listener for one event kind
func (n *Notifier) Subscribe(kind EventKind, listener Listener) {
	n.mu.Lock()
	n.listeners[kind] = append(n.listeners[kind], listener)
	n.mu.Unlock()
}

// Publish stamps the event with an ID and timestamp and delivers it to every
// listener registered for its kind
func (n *Notifier) Publish(event Event) Event {
	event.ID = uuid.New()
	event.At = n.now()

	n.mu.Lock()
	targets := make([]Listener, len(n.listeners[event.Kind]))
	copy(targets, n.listeners[event.Kind])
	n.mu.Unlock()

	n.logger.Debug("Event published",
		zap.String("kind", string(event.Kind)),
		zap.String("event_id", event.ID.String()),
	)
	for _, listener := range targets {
		listener(event)
	}
	return event
}

// Notify records a user-visible notice and returns it
func (n *Notifier) Notify(severity Severity, message string) Notice {
	now := n.now()
	notice := Notice{
		ID:        uuid.New(),
		Severity:  severity,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(n.dismissAfter),
	}

	n.mu.Lock()
	n.pruneLocked(now)
	n.notices = append(n.notices, notice)
	n.mu.Unlock()

	n.logger.Info("Notice raised",
		zap.String("severity", string(severity)),
		zap.String("message", message),
	)
	return notice
}

// ActiveNotices returns the notices that have not yet auto-dismissed
func (n *Notifier) ActiveNotices() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pruneLocked(n.now())

	active := make([]Notice, len(n.notices))
	copy(active, n.notices)
	return active
}

func (n *Notifier) pruneLocked(now time.Time) {
	kept := n.notices[:0]
	for _, notice := range n.notices {
		if notice.ExpiresAt.After(now) {
			kept = append(kept, notice)
		}
	}
	n.notices = kept
}
