package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []*notification.Scheduled
	policies []notification.DisplayPolicy
	failFor  map[int64]error
}

func (f *fakeSender) Send(_ context.Context, n *notification.Scheduled, policy notification.DisplayPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[n.Recipient]; err != nil {
		return err
	}
	f.sent = append(f.sent, n)
	f.policies = append(f.policies, policy)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestManager(clock calendar.Clock) (*Manager, *MemoryRepository) {
	logger, _ := test.NewNullLogger()
	repo := NewMemoryRepository()
	m := NewManager(repo, clock, logrus.NewEntry(logger))
	n := 0
	m.newID = func() string { n++; return fmt.Sprintf("n%d", n) }
	return m, repo
}

func request(kind notification.Kind, at time.Time) notification.Request {
	return notification.Request{Kind: kind, Title: "t", Body: "b", TriggerAt: at, Payload: notification.Payload{Type: kind, FriendID: "f1"}}
}

func TestOutboxScheduleAndCancelIsolatedPerRecipient(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC)}
	m, repo := newTestManager(clock)
	at := time.Date(2024, 6, 16, 9, 5, 0, 0, time.UTC)

	alice := m.ForRecipient(1)
	bob := m.ForRecipient(2)
	id, err := alice.Schedule(ctx, request(notification.KindCatchUp, at))
	require.NoError(t, err)
	assert.Equal(t, "n1", id)
	_, err = bob.Schedule(ctx, request(notification.KindCatchUp, at))
	require.NoError(t, err)

	require.NoError(t, alice.CancelAllScheduled(ctx))

	got, err := repo.GetByID(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.ScheduledCancelled, got.Status)
	got, _ = repo.GetByID(ctx, "n2")
	assert.Equal(t, notification.ScheduledPending, got.Status)
}

func TestOutboxRegistersPolicyAndChannel(t *testing.T) {
	m, _ := newTestManager(calendar.FixedClock(time.Now()))
	out := m.ForRecipient(1)

	_, ok := m.Policy(1)
	assert.False(t, ok)

	policy := notification.DisplayPolicy{ShowBanner: true, ShowList: true, PlaySound: true}
	out.SetNotificationHandler(policy)
	out.SetNotificationHandler(policy)
	got, ok := m.Policy(1)
	require.True(t, ok)
	assert.Equal(t, policy, got)

	prov, ok := out.(notification.ChannelProvisioner)
	require.True(t, ok)
	cfg := notification.ChannelConfig{Name: "Default", Importance: notification.ImportanceMax}
	require.NoError(t, prov.SetNotificationChannel(context.Background(), "default", cfg))
	gotCfg, ok := m.Channel(1, "default")
	require.True(t, ok)
	assert.Equal(t, cfg, gotCfg)
}

func TestOpenNotifiesListenersUntilRemoved(t *testing.T) {
	ctx := context.Background()
	opened := time.Date(2024, 6, 16, 9, 30, 0, 0, time.UTC)
	m, _ := newTestManager(calendar.FixedClock(opened))
	out := m.ForRecipient(1)

	id, err := out.Schedule(ctx, request(notification.KindCatchUp, opened))
	require.NoError(t, err)

	var got []notification.Response
	sub := out.AddResponseListener(func(r notification.Response) { got = append(got, r) })

	_, err = m.Open(ctx, 1, id)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].NotificationID)
	assert.Equal(t, "f1", got[0].Payload.FriendID)
	assert.Equal(t, opened, got[0].OpenedAt)

	_, err = m.Open(ctx, 2, id)
	assert.ErrorIs(t, err, ErrNotRecipient)

	sub.Remove()
	sub.Remove()
	_, err = m.Open(ctx, 1, id)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = m.Open(ctx, 1, "missing")
	assert.ErrorIs(t, err, notification.ErrScheduledNotFound)
}

func TestDispatchDueSendsOnlyDueNotifications(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC)}
	m, repo := newTestManager(clock)
	sender := &fakeSender{failFor: map[int64]error{2: errors.New("bot was blocked by the user")}}
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(repo, m, sender, clock, 0, 10, logrus.NewEntry(logger))

	var delivered []string
	d.OnDelivered(func(_ context.Context, n *notification.Scheduled) error {
		delivered = append(delivered, n.ID)
		return nil
	})

	quiet := notification.DisplayPolicy{ShowBanner: true}
	m.ForRecipient(1).SetNotificationHandler(quiet)

	_, err := m.ForRecipient(1).Schedule(ctx, request(notification.KindCatchUp, time.Date(2024, 6, 16, 9, 10, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = m.ForRecipient(2).Schedule(ctx, request(notification.KindBirthday, time.Date(2024, 6, 16, 9, 20, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = m.ForRecipient(1).Schedule(ctx, request(notification.KindCatchUp, time.Date(2024, 6, 17, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	sent, failed, err := d.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent+failed)

	clock.set(time.Date(2024, 6, 16, 9, 30, 0, 0, time.UTC))
	sent, failed, err = d.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"n1"}, delivered)
	require.Len(t, sender.policies, 1)
	assert.Equal(t, quiet, sender.policies[0])

	n1, _ := repo.GetByID(ctx, "n1")
	assert.Equal(t, notification.ScheduledDelivered, n1.Status)
	assert.True(t, n1.DeliveredAt.Valid)
	n2, _ := repo.GetByID(ctx, "n2")
	assert.Equal(t, notification.ScheduledFailed, n2.Status)
	assert.Equal(t, "bot was blocked by the user", n2.LastError.String)

	// Nothing is sent twice.
	sent, failed, err = d.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent+failed)
}

func TestDispatchDueStopsOnCancelledContext(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 6, 16, 10, 0, 0, 0, time.UTC)}
	m, repo := newTestManager(clock)
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(repo, m, &fakeSender{}, clock, 0.001, 10, logrus.NewEntry(logger))

	for i := 0; i < 2; i++ {
		_, err := m.ForRecipient(1).Schedule(context.Background(), request(notification.KindCatchUp, clock.Now().Add(-time.Minute)))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sent, _, err := d.DispatchDue(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, sent)
}

// replanningRepository cancels and re-queues a recipient's reminders right
// after the first batch is listed, like a planning pass racing the dispatcher.
type replanningRepository struct {
	*MemoryRepository
	manager   *Manager
	recipient int64
	at        time.Time
	replanned bool
}

func (r *replanningRepository) ListDue(ctx context.Context, before time.Time, limit int) ([]*notification.Scheduled, error) {
	due, err := r.MemoryRepository.ListDue(ctx, before, limit)
	if err != nil || r.replanned {
		return due, err
	}
	r.replanned = true
	out := r.manager.ForRecipient(r.recipient)
	if err := out.CancelAllScheduled(ctx); err != nil {
		return nil, err
	}
	if _, err := out.Schedule(ctx, request(notification.KindCatchUp, r.at)); err != nil {
		return nil, err
	}
	return due, nil
}

func TestDispatchDueSkipsNotificationsCancelledAfterListing(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, 6, 16, 9, 30, 0, 0, time.UTC)}
	m, repo := newTestManager(clock)
	sender := &fakeSender{}
	logger, _ := test.NewNullLogger()

	_, err := m.ForRecipient(1).Schedule(ctx, request(notification.KindCatchUp, clock.Now().Add(-time.Minute)))
	require.NoError(t, err)

	racing := &replanningRepository{MemoryRepository: repo, manager: m, recipient: 1, at: clock.Now().Add(-time.Minute)}
	d := NewDispatcher(racing, m, sender, clock, 0, 10, logrus.NewEntry(logger))

	sent, failed, err := d.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, failed)
	assert.Empty(t, sender.sent)

	n1, err := repo.GetByID(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.ScheduledCancelled, n1.Status)
	assert.False(t, n1.DeliveredAt.Valid)

	// The replacement goes out on the next tick, exactly once.
	sent, _, err = d.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "n2", sender.sent[0].ID)
}

func TestMemoryRepositoryClaim(t *testing.T) {
	ctx := context.Background()
	m, repo := newTestManager(calendar.FixedClock(time.Date(2024, 6, 16, 9, 0, 0, 0, time.UTC)))
	id, err := m.ForRecipient(1).Schedule(ctx, request(notification.KindBirthday, time.Date(2024, 6, 16, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	ok, err := repo.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	// A claimed notification is out of reach of cancellation.
	cancelled, err := repo.CancelPending(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, cancelled)
	got, _ := repo.GetByID(ctx, id)
	assert.Equal(t, notification.ScheduledSending, got.Status)

	_, err = repo.Claim(ctx, "missing")
	assert.ErrorIs(t, err, notification.ErrScheduledNotFound)
}

func TestDispatchDueLogsUnreachableRecipientQuietly(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, 6, 16, 9, 30, 0, 0, time.UTC)}
	m, repo := newTestManager(clock)
	blocked := fmt.Errorf("%w: bot was blocked by the user", notification.ErrRecipientUnreachable)
	sender := &fakeSender{failFor: map[int64]error{1: blocked, 2: errors.New("timeout")}}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	d := NewDispatcher(repo, m, sender, clock, 0, 10, logrus.NewEntry(logger))

	_, err := m.ForRecipient(1).Schedule(ctx, request(notification.KindCatchUp, clock.Now().Add(-2*time.Minute)))
	require.NoError(t, err)
	_, err = m.ForRecipient(2).Schedule(ctx, request(notification.KindCatchUp, clock.Now().Add(-time.Minute)))
	require.NoError(t, err)

	_, failed, err := d.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, failed)

	levels := map[int64]logrus.Level{}
	for _, e := range hook.AllEntries() {
		if r, ok := e.Data["recipient"].(int64); ok {
			levels[r] = e.Level
		}
	}
	assert.Equal(t, logrus.InfoLevel, levels[1])
	assert.Equal(t, logrus.WarnLevel, levels[2])

	n1, _ := repo.GetByID(ctx, "n1")
	assert.Equal(t, notification.ScheduledFailed, n1.Status)
}
