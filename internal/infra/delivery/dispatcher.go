package delivery

import (
	"context"
	"errors"
	"fmt"

	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultBatchSize = 100

// Sender pushes one notification to its recipient.
type Sender interface {
	Send(ctx context.Context, n *notification.Scheduled, policy notification.DisplayPolicy) error
}

// DeliveredHook runs after a notification was sent and marked delivered.
type DeliveredHook func(ctx context.Context, n *notification.Scheduled) error

// Dispatcher drains due notifications from the outbox.
type Dispatcher struct {
	repo      notification.ScheduledRepository
	manager   *Manager
	sender    Sender
	limiter   *rate.Limiter
	clock     calendar.Clock
	batchSize int
	logger    *logrus.Entry

	onDelivered []DeliveredHook
}

// NewDispatcher sends at most perSecond notifications per second.
func NewDispatcher(repo notification.ScheduledRepository, manager *Manager, sender Sender, clock calendar.Clock, perSecond float64, batchSize int, logger *logrus.Entry) *Dispatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Dispatcher{
		repo:      repo,
		manager:   manager,
		sender:    sender,
		limiter:   rate.NewLimiter(limit, 1),
		clock:     clock,
		batchSize: batchSize,
		logger:    logger,
	}
}

// OnDelivered registers a hook run for every delivered notification.
func (d *Dispatcher) OnDelivered(hook DeliveredHook) {
	d.onDelivered = append(d.onDelivered, hook)
}

// DispatchDue sends every pending notification whose trigger time has
// passed. Each one is claimed right before sending, so notifications
// cancelled while the batch is drained are skipped. A failed send marks that
// notification failed and moves on.
func (d *Dispatcher) DispatchDue(ctx context.Context) (sent, failed int, err error) {
	due, err := d.repo.ListDue(ctx, d.clock.Now(), d.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list due notifications: %w", err)
	}

	for _, n := range due {
		if err := d.limiter.Wait(ctx); err != nil {
			return sent, failed, err
		}

		log := d.logger.WithFields(logrus.Fields{
			"notification_id": n.ID,
			"recipient":       n.Recipient,
			"kind":            n.Kind,
		})

		// A planning pass may have cancelled n since the batch was listed.
		claimed, claimErr := d.repo.Claim(ctx, n.ID)
		if claimErr != nil {
			log.WithError(claimErr).Error("Failed to claim notification")
			continue
		}
		if !claimed {
			log.Debug("Notification is no longer pending, skipping")
			continue
		}

		policy, ok := d.manager.Policy(n.Recipient)
		if !ok {
			policy = notification.DisplayPolicy{ShowBanner: true, ShowList: true, PlaySound: true}
		}

		if sendErr := d.sender.Send(ctx, n, policy); sendErr != nil {
			if errors.Is(sendErr, notification.ErrRecipientUnreachable) {
				log.WithError(sendErr).Info("Recipient is unreachable, notification dropped")
			} else {
				log.WithError(sendErr).Warn("Send failed")
			}
			if markErr := d.repo.MarkFailed(ctx, n.ID, sendErr.Error()); markErr != nil {
				log.WithError(markErr).Error("Failed to mark notification failed")
			}
			failed++
			continue
		}

		at := d.clock.Now()
		if markErr := d.repo.MarkDelivered(ctx, n.ID, at); markErr != nil {
			log.WithError(markErr).Error("Failed to mark notification delivered")
		}
		n.Status = notification.ScheduledDelivered
		n.DeliveredAt.Time, n.DeliveredAt.Valid = at, true
		sent++

		for _, hook := range d.onDelivered {
			if hookErr := hook(ctx, n); hookErr != nil {
				log.WithError(hookErr).Error("Delivered hook failed")
			}
		}
	}
	return sent, failed, nil
}
