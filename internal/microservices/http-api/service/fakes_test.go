package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"guestpulse/internal/microservices/http-api/models"
	"guestpulse/internal/microservices/realtime"
)

// fakeNotificationRepo is an in-memory NotificationRepository. It mirrors the
// store semantics the gorm implementation relies on: row-scoped updates,
// ownership baked into the WHERE clause, deterministic ordering.
type fakeNotificationRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Notification
	seq  int

	failCreateFor map[string]bool // recipient ids whose inserts fail
	err           error           // global store failure
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		rows:          make(map[string]*models.Notification),
		failCreateFor: make(map[string]bool),
	}
}

var fakeRepoBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func (f *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.failCreateFor[n.RecipientID] {
		return errors.New("insert failed")
	}
	f.seq++
	if n.ID == "" {
		n.ID = fmt.Sprintf("gen-%04d", f.seq)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = fakeRepoBase.Add(time.Duration(f.seq) * time.Second)
	}
	row := *n
	f.rows[n.ID] = &row
	return nil
}

func (f *fakeNotificationRepo) ListByRecipient(ctx context.Context, userID string, includeRead bool) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Notification
	for _, row := range f.rows {
		if row.RecipientID != userID {
			continue
		}
		if !includeRead && row.Read {
			continue
		}
		out = append(out, *row)
	}
	// created_at desc, id desc
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			a, b := out[i], out[j]
			after := b.CreatedAt.After(a.CreatedAt) || (b.CreatedAt.Equal(a.CreatedAt) && b.ID > a.ID)
			if after {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var count int64
	for _, row := range f.rows {
		if row.RecipientID == userID && !row.Read {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	row, ok := f.rows[notificationID]
	if !ok || row.RecipientID != userID {
		return false, nil
	}
	row.Read = true
	return true, nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var affected int64
	for _, row := range f.rows {
		if row.RecipientID == userID && !row.Read {
			row.Read = true
			affected++
		}
	}
	return affected, nil
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, userID, notificationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	row, ok := f.rows[notificationID]
	if !ok || row.RecipientID != userID {
		return false, nil
	}
	delete(f.rows, notificationID)
	return true, nil
}

// fakeUserRepo backs role membership resolution.
type fakeUserRepo struct {
	usersByRole map[string][]string
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error { return nil }

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, errors.New("not found")
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, errors.New("not found")
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("not found")
}

func (f *fakeUserRepo) GetIDsByRole(ctx context.Context, role string) ([]string, error) {
	return f.usersByRole[role], nil
}

func (f *fakeUserRepo) GetAllIDs(ctx context.Context) ([]string, error) {
	var all []string
	for _, ids := range f.usersByRole {
		all = append(all, ids...)
	}
	return all, nil
}

// recordingTransport captures router publishes.
type recordingTransport struct {
	mu        sync.Mutex
	published []realtime.Message
	err       error
}

func (t *recordingTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.published = append(t.published, realtime.Message{Channel: channel, Payload: payload})
	return nil
}

func (t *recordingTransport) Subscribe(ctx context.Context, channels ...string) (realtime.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (t *recordingTransport) events() []realtime.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]realtime.Event, 0, len(t.published))
	for _, msg := range t.published {
		event, err := realtime.DecodeEvent(msg.Payload)
		if err != nil {
			continue
		}
		out = append(out, event)
	}
	return out
}

func (t *recordingTransport) channels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.published))
	for i, msg := range t.published {
		out[i] = msg.Channel
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
