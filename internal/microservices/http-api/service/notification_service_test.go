package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestpulse/internal/microservices/http-api/models"
	"guestpulse/internal/microservices/realtime"
)

func newTestNotificationService(repo *fakeNotificationRepo, users *fakeUserRepo, transport *recordingTransport) NotificationService {
	if users == nil {
		users = &fakeUserRepo{}
	}
	router := realtime.NewRouter(transport, discardLogger())
	return NewNotificationService(repo, users, router, nil, discardLogger())
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	repo := newFakeNotificationRepo()
	transport := &recordingTransport{}
	svc := newTestNotificationService(repo, nil, transport)
	ctx := context.Background()

	tests := []struct {
		name      string
		recipient string
		input     CreateNotificationInput
	}{
		{"empty recipient", "", CreateNotificationInput{Type: models.TypeInfo}},
		{"unknown type", "u1", CreateNotificationInput{Type: "SOMETHING_ELSE"}},
		{"missing type", "u1", CreateNotificationInput{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.recipient, tt.input)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	// nothing persisted, nothing published
	count, err := repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, transport.events())
}

func TestCreate_PersistsThenPublishes(t *testing.T) {
	repo := newFakeNotificationRepo()
	transport := &recordingTransport{}
	svc := newTestNotificationService(repo, nil, transport)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", CreateNotificationInput{
		Title:       "New review",
		Message:     "A guest left a review",
		Type:        models.TypeNewReview,
		RelatedID:   "rev-42",
		RelatedType: "review",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID, "id is assigned by the store")
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.Read)

	channels := transport.channels()
	require.Len(t, channels, 1)
	assert.Equal(t, realtime.UserChannel("u1"), channels[0])

	events := transport.events()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventNewNotification, events[0].Kind)
	assert.Equal(t, created.ID, events[0].Notification.ID)
}

func TestCreate_StoreFailureIsHard(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.err = errors.New("connection refused")
	transport := &recordingTransport{}
	svc := newTestNotificationService(repo, nil, transport)

	_, err := svc.Create(context.Background(), "u1", CreateNotificationInput{Type: models.TypeInfo})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, transport.events(), "no publish without a persisted row")
}

func TestCreate_PublishFailureIsSoft(t *testing.T) {
	repo := newFakeNotificationRepo()
	transport := &recordingTransport{err: errors.New("broker down")}
	svc := newTestNotificationService(repo, nil, transport)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", CreateNotificationInput{Type: models.TypeInfo})
	require.NoError(t, err, "fan-out is an optimization, persistence already succeeded")

	// the row is there for the polling path
	list, err := svc.List(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestBroadcastToRole_FansOutPerMember(t *testing.T) {
	repo := newFakeNotificationRepo()
	users := &fakeUserRepo{usersByRole: map[string][]string{
		models.RoleAdmin: {"a1", "a2", "a3"},
	}}
	transport := &recordingTransport{}
	svc := newTestNotificationService(repo, users, transport)
	ctx := context.Background()

	created, err := svc.BroadcastToRole(ctx, models.RoleAdmin, CreateNotificationInput{
		Title:   "T",
		Message: "M",
		Type:    models.TypeInfo,
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	seenIDs := make(map[string]bool)
	seenRecipients := make(map[string]bool)
	for _, n := range created {
		assert.Equal(t, "T", n.Title)
		assert.Equal(t, "M", n.Message)
		assert.Equal(t, models.TypeInfo, n.Type)
		seenIDs[n.ID] = true
		seenRecipients[n.RecipientID] = true
	}
	assert.Len(t, seenIDs, 3, "each row gets a distinct id")
	assert.Equal(t, map[string]bool{"a1": true, "a2": true, "a3": true}, seenRecipients)

	// one publish per recipient channel
	channels := transport.channels()
	require.Len(t, channels, 3)
	assert.ElementsMatch(t, []string{
		realtime.UserChannel("a1"),
		realtime.UserChannel("a2"),
		realtime.UserChannel("a3"),
	}, channels)
}

func TestBroadcastToRole_SkipsFailedMembers(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.failCreateFor["a2"] = true
	users := &fakeUserRepo{usersByRole: map[string][]string{
		models.RoleAdmin: {"a1", "a2", "a3"},
	}}
	transport := &recordingTransport{}
	svc := newTestNotificationService(repo, users, transport)

	created, err := svc.BroadcastToRole(context.Background(), models.RoleAdmin, CreateNotificationInput{Type: models.TypeWarning})
	require.NoError(t, err, "a broadcast is a best-effort multicast")
	require.Len(t, created, 2)

	channels := transport.channels()
	assert.ElementsMatch(t, []string{
		realtime.UserChannel("a1"),
		realtime.UserChannel("a3"),
	}, channels)
}

func TestBroadcastToAll_FansOutToEveryUser(t *testing.T) {
	repo := newFakeNotificationRepo()
	users := &fakeUserRepo{usersByRole: map[string][]string{
		models.RoleAdmin: {"a1"},
		models.RoleUser:  {"u1", "u2"},
	}}
	transport := &recordingTransport{}
	svc := newTestNotificationService(repo, users, transport)

	created, err := svc.BroadcastToAll(context.Background(), CreateNotificationInput{
		Title:   "T",
		Message: "M",
		Type:    models.TypeInfo,
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	seenRecipients := make(map[string]bool)
	for _, n := range created {
		seenRecipients[n.RecipientID] = true
	}
	assert.Equal(t, map[string]bool{"a1": true, "u1": true, "u2": true}, seenRecipients)

	assert.ElementsMatch(t, []string{
		realtime.UserChannel("a1"),
		realtime.UserChannel("u1"),
		realtime.UserChannel("u2"),
	}, transport.channels())
}

func TestBroadcastToAll_RejectsInvalidType(t *testing.T) {
	svc := newTestNotificationService(newFakeNotificationRepo(), nil, &recordingTransport{})

	_, err := svc.BroadcastToAll(context.Background(), CreateNotificationInput{Type: "NOPE"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBroadcastToRole_RejectsInvalidInput(t *testing.T) {
	svc := newTestNotificationService(newFakeNotificationRepo(), nil, &recordingTransport{})
	ctx := context.Background()

	_, err := svc.BroadcastToRole(ctx, "", CreateNotificationInput{Type: models.TypeInfo})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.BroadcastToRole(ctx, models.RoleAdmin, CreateNotificationInput{Type: "NOPE"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestList_OrderedNewestFirst(t *testing.T) {
	repo := newFakeNotificationRepo()
	transport := &recordingTransport{}
	svc := newTestNotificationService(repo, nil, transport)
	ctx := context.Background()

	// insertion order deliberately scrambled relative to timestamps: the
	// fake assigns increasing created_at, so first created is oldest
	first, err := svc.Create(ctx, "u1", CreateNotificationInput{Title: "oldest", Type: models.TypeInfo})
	require.NoError(t, err)
	second, err := svc.Create(ctx, "u1", CreateNotificationInput{Title: "middle", Type: models.TypeInfo})
	require.NoError(t, err)
	third, err := svc.Create(ctx, "u1", CreateNotificationInput{Title: "newest", Type: models.TypeInfo})
	require.NoError(t, err)

	list, err := svc.List(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, first.ID, list[2].ID)
}

// unreadCount(u) must equal the number of unread rows in list(u) after any
// sequence of operations.
func assertUnreadInvariant(t *testing.T, svc NotificationService, userID string) {
	t.Helper()
	ctx := context.Background()
	list, err := svc.List(ctx, userID, true)
	require.NoError(t, err)
	count, err := svc.UnreadCount(ctx, userID)
	require.NoError(t, err)

	var unread int64
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	assert.Equal(t, unread, count, "unread count must match the list")
}

func TestUnreadCountInvariant_AcrossOperations(t *testing.T) {
	repo := newFakeNotificationRepo()
	transport := &recordingTransport{}
	svc := newTestNotificationService(repo, nil, transport)
	readState := NewReadStateService(repo, realtime.NewRouter(transport, discardLogger()))
	ctx := context.Background()

	assertUnreadInvariant(t, svc, "u1")

	n1, err := svc.Create(ctx, "u1", CreateNotificationInput{Type: models.TypeInfo})
	require.NoError(t, err)
	assertUnreadInvariant(t, svc, "u1")

	n2, err := svc.Create(ctx, "u1", CreateNotificationInput{Type: models.TypeWarning})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", CreateNotificationInput{Type: models.TypeError})
	require.NoError(t, err)
	assertUnreadInvariant(t, svc, "u1")

	require.NoError(t, readState.MarkRead(ctx, "u1", n1.ID))
	assertUnreadInvariant(t, svc, "u1")

	require.NoError(t, readState.Delete(ctx, "u1", n2.ID))
	assertUnreadInvariant(t, svc, "u1")

	_, err = readState.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assertUnreadInvariant(t, svc, "u1")

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
