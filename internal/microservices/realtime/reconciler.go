package realtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"guestpulse/internal/microservices/http-api/models"
)

// ConnectionState describes how a Reconciler is currently kept up to date.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "CONNECTING"
	StateLive         ConnectionState = "LIVE"
	StatePolling      ConnectionState = "POLLING"
	StateDisconnected ConnectionState = "DISCONNECTED"
)

// SnapshotSource is the authoritative read path used for the baseline load
// and for polling, normally backed by the notification service.
type SnapshotSource interface {
	List(ctx context.Context, userID string, includeRead bool) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// Snapshot is a consistent view of a reconciler's state at one point in time.
type Snapshot struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
	State         ConnectionState       `json:"connection_state"`
	// Degraded is set after repeated refresh failures so the UI can show an
	// "unable to refresh" hint without blocking anything else.
	Degraded bool `json:"degraded"`
}

// Options tunes the reconciler's timing behavior.
type Options struct {
	// PollInterval is the cadence of full refreshes while the transport is
	// unavailable, and the delay between resubscribe attempts.
	PollInterval time.Duration
	// SnapshotTimeout bounds a single List/UnreadCount round trip.
	SnapshotTimeout time.Duration
	// DegradedAfter is the number of consecutive refresh failures before the
	// snapshot is flagged degraded.
	DegradedAfter int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.PollInterval <= 0 {
		out.PollInterval = 30 * time.Second
	}
	if out.SnapshotTimeout <= 0 {
		out.SnapshotTimeout = 5 * time.Second
	}
	if out.DegradedAfter <= 0 {
		out.DegradedAfter = 3
	}
	return out
}

// Reconciler keeps one client session's notification list and unread counter
// consistent across duplicated, reordered and missed real-time events. One
// instance is constructed per connected session and torn down at disconnect;
// there is no process-wide shared state.
type Reconciler struct {
	userID    string
	role      string
	source    SnapshotSource
	transport Transport
	logger    *slog.Logger
	opts      Options

	mu             sync.Mutex
	notifications  []models.Notification // sorted: created_at desc, id desc
	deleted        map[string]struct{}   // tombstones so stale events cannot resurrect a removed row
	unread         int64
	state          ConnectionState
	baselineLoaded bool
	refreshFails   int
	degraded       bool

	updates   chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

func NewReconciler(userID, role string, source SnapshotSource, transport Transport, logger *slog.Logger, opts Options) *Reconciler {
	return &Reconciler{
		userID:    userID,
		role:      role,
		source:    source,
		transport: transport,
		logger:    logger.With("user_id", userID),
		opts:      opts.withDefaults(),
		state:     StateConnecting,
		deleted:   make(map[string]struct{}),
		updates:   make(chan Snapshot, 1),
		done:      make(chan struct{}),
	}
}

// channels returns the subscriptions this session needs: its own user channel,
// the global channel, and the role channel for admins.
func (r *Reconciler) channels() []string {
	chs := []string{UserChannel(r.userID), GlobalChannel}
	if r.role == models.RoleAdmin {
		chs = append(chs, RoleChannel(r.role))
	}
	return chs
}

// Run drives the reconciler until ctx is cancelled or Close is called. It
// loads the baseline snapshot first (no event is trusted before that), then
// alternates between a live subscription and polling fallback. Every
// transition back to live is preceded by one full refresh: events missed
// during a gap are not individually recoverable.
func (r *Reconciler) Run(ctx context.Context) {
	defer r.setState(StateDisconnected)

	for !r.Refresh(ctx) {
		if !r.sleep(ctx) {
			return
		}
	}

	for {
		sub, err := r.transport.Subscribe(ctx, r.channels()...)
		if err != nil {
			r.logger.Warn("subscribe failed, falling back to polling", "error", err)
			r.setState(StatePolling)
			if !r.sleep(ctx) {
				return
			}
			r.Refresh(ctx)
			continue
		}

		// Close the gap between the last snapshot and the moment the
		// subscription went live. The session is not Live until this refresh
		// succeeds: events missed during the gap are not individually
		// recoverable, so going Live on pre-gap state would pin it forever.
		for !r.Refresh(ctx) {
			r.setState(StatePolling)
			if !r.sleep(ctx) {
				sub.Close()
				return
			}
		}
		r.setState(StateLive)

		alive := r.consume(ctx, sub)
		sub.Close()
		if !alive {
			return
		}
		r.setState(StatePolling)
	}
}

// consume applies events from a live subscription. It returns false when the
// reconciler should stop entirely, true when the subscription was lost and a
// reconnect should be attempted.
func (r *Reconciler) consume(ctx context.Context, sub Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-r.done:
			return false
		case msg, ok := <-sub.Events():
			if !ok {
				r.logger.Warn("subscription lost")
				return true
			}
			event, err := DecodeEvent(msg.Payload)
			if err != nil {
				r.logger.Warn("dropping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			r.Apply(event)
		}
	}
}

// sleep waits one poll interval. It returns false if the reconciler was
// stopped while waiting.
func (r *Reconciler) sleep(ctx context.Context) bool {
	timer := time.NewTimer(r.opts.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-r.done:
		return false
	case <-timer.C:
		return true
	}
}

// Refresh replaces local state with a fresh authoritative snapshot from the
// source. It reports whether the snapshot succeeded.
func (r *Reconciler) Refresh(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, r.opts.SnapshotTimeout)
	defer cancel()

	notifications, err := r.source.List(cctx, r.userID, true)
	var unread int64
	if err == nil {
		unread, err = r.source.UnreadCount(cctx, r.userID)
	}

	r.mu.Lock()
	if err != nil {
		r.refreshFails++
		r.degraded = r.refreshFails >= r.opts.DegradedAfter
		snap := r.snapshotLocked()
		r.mu.Unlock()
		r.logger.Warn("snapshot refresh failed", "consecutive_failures", r.refreshFails, "error", err)
		r.pushUpdate(snap)
		return false
	}
	r.notifications = notifications
	r.unread = unread
	r.baselineLoaded = true
	r.refreshFails = 0
	r.degraded = false
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.pushUpdate(snap)
	return true
}

// Apply merges one real-time event into local state. Every branch is
// idempotent with respect to replay: the transport may deliver an event more
// than once and in any order relative to other channels.
func (r *Reconciler) Apply(event Event) {
	r.mu.Lock()
	if !r.baselineLoaded {
		// Events racing the baseline load are covered by the snapshot itself.
		r.mu.Unlock()
		return
	}

	changed := false
	switch event.Kind {
	case EventNewNotification:
		if event.Notification == nil {
			break
		}
		if _, gone := r.deleted[event.Notification.ID]; gone {
			break // stale event for a locally deleted row
		}
		if r.indexOfLocked(event.Notification.ID) >= 0 {
			break // duplicate delivery
		}
		r.insertLocked(*event.Notification)
		if !event.Notification.Read {
			r.unread++
		}
		changed = true

	case EventNotificationRead:
		i := r.indexOfLocked(event.NotificationID)
		if i < 0 || r.notifications[i].Read {
			break // unknown or already read, both no-ops
		}
		r.notifications[i].Read = true
		if r.unread > 0 {
			r.unread--
		}
		changed = true

	case EventMarkAllRead:
		// Authoritative, not incremental.
		for i := range r.notifications {
			r.notifications[i].Read = true
		}
		r.unread = 0
		changed = true

	case EventNotificationDeleted:
		r.deleted[event.NotificationID] = struct{}{}
		i := r.indexOfLocked(event.NotificationID)
		if i < 0 {
			break
		}
		wasUnread := !r.notifications[i].Read
		r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
		if wasUnread && r.unread > 0 {
			r.unread--
		}
		changed = true

	default:
		r.logger.Warn("dropping event of unknown kind", "kind", event.Kind)
	}

	var snap Snapshot
	if changed {
		snap = r.snapshotLocked()
	}
	r.mu.Unlock()

	if changed {
		r.pushUpdate(snap)
	}
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Updates delivers a snapshot after every state change. The channel coalesces:
// if the consumer lags, intermediate snapshots are replaced by newer ones.
func (r *Reconciler) Updates() <-chan Snapshot {
	return r.updates
}

// Close stops the reconciler. Safe to call more than once.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

func (r *Reconciler) setState(state ConnectionState) {
	r.mu.Lock()
	if r.state == state {
		r.mu.Unlock()
		return
	}
	r.state = state
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.pushUpdate(snap)
}

func (r *Reconciler) snapshotLocked() Snapshot {
	notifications := make([]models.Notification, len(r.notifications))
	copy(notifications, r.notifications)
	return Snapshot{
		Notifications: notifications,
		UnreadCount:   r.unread,
		State:         r.state,
		Degraded:      r.degraded,
	}
}

func (r *Reconciler) pushUpdate(snap Snapshot) {
	for {
		select {
		case r.updates <- snap:
			return
		default:
			// drop the stale snapshot, the latest one wins
			select {
			case <-r.updates:
			default:
			}
		}
	}
}

func (r *Reconciler) indexOfLocked(id string) int {
	for i := range r.notifications {
		if r.notifications[i].ID == id {
			return i
		}
	}
	return -1
}

// orderedBefore reports whether a sorts before b: newest first, id descending
// on equal timestamps so the order is deterministic.
func orderedBefore(a, b models.Notification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (r *Reconciler) insertLocked(n models.Notification) {
	i := sort.Search(len(r.notifications), func(i int) bool {
		return orderedBefore(n, r.notifications[i])
	})
	r.notifications = append(r.notifications, models.Notification{})
	copy(r.notifications[i+1:], r.notifications[i:])
	r.notifications[i] = n
}
