package app

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"friend_reminder_bot/internal/domain/account"
	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/friend"
	"friend_reminder_bot/internal/domain/notification"
	"friend_reminder_bot/internal/infra/delivery"
	"friend_reminder_bot/internal/infra/kvstore"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plannerFixture struct {
	now      time.Time
	stores   *kvstore.Factory
	accounts account.Repository
	outbox   *delivery.MemoryRepository
	manager  *delivery.Manager
	planner  *Planner
}

func newPlannerFixture(t *testing.T) *plannerFixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)

	fx := &plannerFixture{now: june15}
	clock := calendar.ClockFunc(func() time.Time { return fx.now })
	fx.stores = kvstore.NewFactory(kvstore.NewMemoryKV(), clock)
	fx.accounts = fx.stores.Accounts()
	fx.outbox = delivery.NewMemoryRepository()
	fx.manager = delivery.NewManager(fx.outbox, clock, log)
	fx.planner = NewPlanner(fx.accounts, fx.stores, fx.manager, notification.NewCalendar(clock, func(int) int { return 0 }), log)
	return fx
}

func (fx *plannerFixture) account(t *testing.T, telegramID int64, active bool) *account.Account {
	t.Helper()
	a := &account.Account{TelegramID: telegramID, FirstName: "Owner", IsActive: active}
	require.NoError(t, fx.accounts.Create(context.Background(), a))
	return a
}

func (fx *plannerFixture) addFriend(t *testing.T, accountID int64, nf friend.NewFriend) *friend.Friend {
	t.Helper()
	f, err := fx.stores.Friends(accountID).Add(context.Background(), nf)
	require.NoError(t, err)
	return f
}

func (fx *plannerFixture) pending(t *testing.T) []*notification.Scheduled {
	t.Helper()
	due, err := fx.outbox.ListDue(context.Background(), fx.now.AddDate(1, 0, 0), 100)
	require.NoError(t, err)
	return due
}

func (fx *plannerFixture) deliver(t *testing.T, n *notification.Scheduled) {
	t.Helper()
	n.DeliveredAt = sql.NullTime{Time: n.TriggerAt, Valid: true}
	require.NoError(t, fx.outbox.MarkDelivered(context.Background(), n.ID, n.TriggerAt))
	require.NoError(t, fx.planner.RecordDelivered(context.Background(), n))
}

func TestPlanAccountQueuesTomorrowsReminders(t *testing.T) {
	ctx := context.Background()
	fx := newPlannerFixture(t)
	a := fx.account(t, 42, true)
	john := fx.addFriend(t, a.ID, friend.NewFriend{Name: "John", Birthday: ptr("2024-06-16")})
	jane := fx.addFriend(t, a.ID, friend.NewFriend{Name: "Jane Doe", FrequencyDays: ptr(7), LastContactAt: ptr("2024-06-08")})

	result, err := fx.planner.PlanAccount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []string{john.ID}, result.BirthdayFriendIDs)
	assert.Equal(t, []string{jane.ID}, result.CatchUpFriendIDs)

	policy, ok := fx.manager.Policy(42)
	require.True(t, ok)
	assert.Equal(t, DefaultDisplayPolicy, policy)
	_, ok = fx.manager.Channel(42, DefaultChannelID)
	assert.True(t, ok)

	pending := fx.pending(t)
	require.Len(t, pending, 2)
	for _, n := range pending {
		assert.Equal(t, int64(42), n.Recipient)
		assert.Equal(t, time.Date(2024, time.June, 16, 9, 0, 0, 0, time.UTC), n.TriggerAt)
	}

	// A second pass replaces the queue instead of adding to it.
	_, err = fx.planner.PlanAccount(ctx, a)
	require.NoError(t, err)
	assert.Len(t, fx.pending(t), 2)
}

func TestRecordDeliveredBlocksRepeatReminders(t *testing.T) {
	ctx := context.Background()
	fx := newPlannerFixture(t)
	a := fx.account(t, 42, true)
	fx.addFriend(t, a.ID, friend.NewFriend{Name: "John", Birthday: ptr("06-16")})
	jane := fx.addFriend(t, a.ID, friend.NewFriend{Name: "Jane", FrequencyDays: ptr(7), LastContactAt: ptr("2024-06-08")})

	_, err := fx.planner.PlanAccount(ctx, a)
	require.NoError(t, err)
	for _, n := range fx.pending(t) {
		fx.deliver(t, n)
	}

	state, err := fx.stores.NotificationState(a.ID).Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.LastBirthdayNotificationDate)
	assert.Equal(t, "2024-06-16", *state.LastBirthdayNotificationDate)
	assert.Equal(t, "2024-06-16", state.LastCatchUpNotificationDates[jane.ID])

	// Re-planning the same evening does not queue the delivered reminders again.
	result, err := fx.planner.PlanAccount(ctx, a)
	require.NoError(t, err)
	assert.False(t, result.BirthdayScheduled)
	assert.Empty(t, result.CatchUpFriendIDs)
	assert.Empty(t, fx.pending(t))

	// Seven days after the reminder Jane is due again.
	fx.now = june15.AddDate(0, 0, 7)
	result, err = fx.planner.PlanAccount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []string{jane.ID}, result.CatchUpFriendIDs)
}

func TestPlanAllSkipsInactiveAccounts(t *testing.T) {
	ctx := context.Background()
	fx := newPlannerFixture(t)
	active := fx.account(t, 1, true)
	inactive := fx.account(t, 2, false)
	fx.addFriend(t, active.ID, friend.NewFriend{Name: "A", Birthday: ptr("06-16")})
	fx.addFriend(t, inactive.ID, friend.NewFriend{Name: "B", Birthday: ptr("06-16")})

	require.NoError(t, fx.planner.PlanAll(ctx))
	pending := fx.pending(t)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].Recipient)
}

func TestPlanAllWithoutAccounts(t *testing.T) {
	fx := newPlannerFixture(t)
	assert.NoError(t, fx.planner.PlanAll(context.Background()))
}

func TestPlannerForwardsResponsesUntilUnwatched(t *testing.T) {
	ctx := context.Background()
	fx := newPlannerFixture(t)
	a := fx.account(t, 42, true)
	john := fx.addFriend(t, a.ID, friend.NewFriend{Name: "John", Birthday: ptr("06-16")})

	var (
		mu        sync.Mutex
		responses []notification.Response
		owners    []int64
	)
	fx.planner.OnResponse(func(owner *account.Account, resp notification.Response) {
		mu.Lock()
		defer mu.Unlock()
		responses = append(responses, resp)
		owners = append(owners, owner.ID)
	})

	_, err := fx.planner.PlanAccount(ctx, a)
	require.NoError(t, err)
	// Planning twice must not register a second listener.
	_, err = fx.planner.PlanAccount(ctx, a)
	require.NoError(t, err)

	pending := fx.pending(t)
	require.Len(t, pending, 1)
	_, err = fx.manager.Open(ctx, 42, pending[0].ID)
	require.NoError(t, err)

	require.Len(t, responses, 1)
	assert.Equal(t, []int64{a.ID}, owners)
	assert.Equal(t, notification.KindBirthday, responses[0].Kind)
	assert.Equal(t, []string{john.ID}, responses[0].Payload.FriendIDs)

	_, err = fx.manager.Open(ctx, 7, pending[0].ID)
	assert.ErrorIs(t, err, delivery.ErrNotRecipient)

	require.NoError(t, fx.planner.Unwatch(ctx, a))
	assert.Empty(t, fx.pending(t))
	_, err = fx.manager.Open(ctx, 42, pending[0].ID)
	require.NoError(t, err)
	assert.Len(t, responses, 1)
}

func TestRecordDeliveredUnknownRecipient(t *testing.T) {
	fx := newPlannerFixture(t)
	err := fx.planner.RecordDelivered(context.Background(), &notification.Scheduled{ID: "x", Recipient: 99, Kind: notification.KindBirthday})
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestWatchAllAfterRestartKeepsMorningReminders(t *testing.T) {
	ctx := context.Background()
	fx := newPlannerFixture(t)
	fx.now = time.Date(2024, time.June, 15, 20, 0, 0, 0, time.UTC)
	a := fx.account(t, 42, true)
	john := fx.addFriend(t, a.ID, friend.NewFriend{Name: "John", Birthday: ptr("2024-06-16")})

	_, err := fx.planner.PlanAccount(ctx, a)
	require.NoError(t, err)
	require.Len(t, fx.pending(t), 1)

	// The process restarts shortly after midnight with the same storage.
	fx.now = time.Date(2024, time.June, 16, 0, 30, 0, 0, time.UTC)
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)
	clock := calendar.ClockFunc(func() time.Time { return fx.now })
	manager := delivery.NewManager(fx.outbox, clock, log)
	restarted := NewPlanner(fx.accounts, fx.stores, manager, notification.NewCalendar(clock, func(int) int { return 0 }), log)

	var responses []notification.Response
	restarted.OnResponse(func(_ *account.Account, resp notification.Response) {
		responses = append(responses, resp)
	})
	require.NoError(t, restarted.WatchAll(ctx))

	pending := fx.pending(t)
	require.Len(t, pending, 1)
	assert.Equal(t, time.Date(2024, time.June, 16, 9, 0, 0, 0, time.UTC), pending[0].TriggerAt)
	assert.Equal(t, []string{john.ID}, pending[0].Payload.FriendIDs)

	_, ok := manager.Policy(42)
	assert.True(t, ok)

	_, err = manager.Open(ctx, 42, pending[0].ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, notification.KindBirthday, responses[0].Kind)
}
