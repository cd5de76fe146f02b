package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"friend_reminder_bot/internal/domain/account"
	"friend_reminder_bot/internal/domain/notification"
	"friend_reminder_bot/internal/domain/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var accountRowColumns = []string{"id", "telegram_id", "first_name", "last_name", "device_token", "is_active", "created_at", "updated_at"}

func TestAccountCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresAccountRepository(db)
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs(int64(42), "Ann", sql.NullString{}, sql.NullString{}, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, created, created))

	a := &account.Account{TelegramID: 42, FirstName: "Ann", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, created, a.CreatedAt)
}

func TestAccountCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_telegram_id_key"})

	err := repo.Create(context.Background(), &account.Account{TelegramID: 42, FirstName: "Ann", IsActive: true})
	assert.ErrorIs(t, err, account.ErrDuplicateTelegramID)
}

func TestAccountGetByTelegramID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresAccountRepository(db)
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE telegram_id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(accountRowColumns).AddRow(1, 42, "Ann", "Lee", nil, true, ts, ts))
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE telegram_id = $1")).
		WithArgs(int64(43)).
		WillReturnError(sql.ErrNoRows)

	a, err := repo.GetByTelegramID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Ann", a.FirstName)
	assert.Equal(t, sql.NullString{String: "Lee", Valid: true}, a.LastName)
	assert.False(t, a.DeviceToken.Valid)

	_, err = repo.GetByTelegramID(context.Background(), 43)
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestAccountListActive(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresAccountRepository(db)
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow(1, 42, "Ann", nil, "tok", true, ts, ts).
			AddRow(2, 43, "Bob", nil, nil, true, ts, ts))

	accounts, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "tok", accounts[0].DeviceToken.String)
	assert.Equal(t, int64(43), accounts[1].TelegramID)
}

func TestAccountUpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE accounts")).WillReturnError(sql.ErrNoRows)
	err := repo.Update(context.Background(), &account.Account{ID: 9})
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestScheduledCreateEncodesPayload(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresScheduledRepository(db)
	trigger := time.Date(2024, 6, 16, 9, 12, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO scheduled_notifications")).
		WithArgs("n1", int64(42), notification.KindBirthday, "It's John's birthday 🎉", "Send wishes, make their day!",
			[]byte(`{"type":"birthday","friendIds":["f1"]}`), trigger, notification.ScheduledPending).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(trigger))

	n := &notification.Scheduled{
		ID:        "n1",
		Recipient: 42,
		Kind:      notification.KindBirthday,
		Title:     "It's John's birthday 🎉",
		Body:      "Send wishes, make their day!",
		Payload:   notification.Payload{Type: notification.KindBirthday, FriendIDs: []string{"f1"}},
		TriggerAt: trigger,
	}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.Equal(t, notification.ScheduledPending, n.Status)
}

func TestScheduledListDueDecodesRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresScheduledRepository(db)
	now := time.Date(2024, 6, 16, 9, 30, 0, 0, time.UTC)

	cols := []string{"id", "recipient", "kind", "title", "body", "payload", "trigger_at", "status", "attempts", "last_error", "delivered_at", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND trigger_at <= $2")).
		WithArgs(notification.ScheduledPending, now, 50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("n2", 42, "catchup", "Catch'up with Jane", "You last checked in 7 days ago",
				[]byte(`{"type":"catchup","friendId":"f2"}`), now.Add(-time.Minute), "PENDING", 0, nil, nil, now))

	due, err := repo.ListDue(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, notification.KindCatchUp, due[0].Kind)
	assert.Equal(t, "f2", due[0].Payload.FriendID)
	assert.False(t, due[0].DeliveredAt.Valid)
}

func TestScheduledCancelAndMark(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresScheduledRepository(db)
	at := time.Date(2024, 6, 16, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE scheduled_notifications SET status = $1")).
		WithArgs(notification.ScheduledCancelled, int64(42), notification.ScheduledPending).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, delivered_at = $2")).
		WithArgs(notification.ScheduledDelivered, at, "n1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, last_error = $2")).
		WithArgs(notification.ScheduledFailed, "blocked", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	cancelled, err := repo.CancelPending(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cancelled)

	require.NoError(t, repo.MarkDelivered(context.Background(), "n1", at))
	assert.ErrorIs(t, repo.MarkFailed(context.Background(), "missing", "blocked"), notification.ErrScheduledNotFound)
}

func TestScheduledClaimOnlyPending(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresScheduledRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $2 AND status = $3")).
		WithArgs(notification.ScheduledSending, "n1", notification.ScheduledPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $2 AND status = $3")).
		WithArgs(notification.ScheduledSending, "n2", notification.ScheduledPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Claim(context.Background(), "n1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(context.Background(), "n2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresKVStore(t *testing.T) {
	db, mock := newMock(t)
	kv := NewPostgresKVStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_store")).
		WithArgs("account:1:friends-storage", []byte(`{"friends":[]}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store")).
		WithArgs("account:1:friends-storage").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"friends":[]}`)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store")).
		WithArgs("account:2:friends-storage").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv_store")).
		WithArgs("account:1:friends-storage").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, kv.Set(ctx, "account:1:friends-storage", []byte(`{"friends":[]}`)))
	v, err := kv.Get(ctx, "account:1:friends-storage")
	require.NoError(t, err)
	assert.JSONEq(t, `{"friends":[]}`, string(v))

	_, err = kv.Get(ctx, "account:2:friends-storage")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	require.NoError(t, kv.Delete(ctx, "account:1:friends-storage"))
}

func TestMigrateRunsInTransaction(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	for range schema {
		mock.ExpectExec(".+").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db))
}
