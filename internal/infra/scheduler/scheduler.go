package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	planTimeout     = 10 * time.Minute
	dispatchTimeout = 1 * time.Minute
)

// Planner re-plans every active account's reminders.
type Planner interface {
	PlanAll(ctx context.Context) error
}

// Dispatcher hands due reminders to the delivery channel.
type Dispatcher interface {
	DispatchDue(ctx context.Context) (sent, failed int, err error)
}

type ReminderScheduler struct {
	cronEngine   *cron.Cron
	planner      Planner
	dispatcher   Dispatcher
	logger       *logrus.Entry
	planSpec     string
	dispatchSpec string

	// Only one dispatch pass runs at a time; a tick that finds one in
	// progress is skipped.
	dispatching sync.Mutex
}

func NewReminderScheduler(
	planner Planner,
	dispatcher Dispatcher,
	loc *time.Location,
	logger *logrus.Entry,
	planSpec string, // e.g. "0 20 * * *" (8 PM daily)
	dispatchSpec string, // e.g. "* * * * *" (every minute)
) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine:   cron.New(cron.WithLocation(loc)),
		planner:      planner,
		dispatcher:   dispatcher,
		logger:       logger,
		planSpec:     planSpec,
		dispatchSpec: dispatchSpec,
	}
}

// Start registers the jobs and starts the cron engine. It fails when a cron
// spec cannot be parsed.
func (s *ReminderScheduler) Start() error {
	s.logger.Info("Starting reminder scheduler...")

	if _, err := s.cronEngine.AddFunc(s.planSpec, s.runPlan); err != nil {
		return fmt.Errorf("could not add planning job %q: %w", s.planSpec, err)
	}
	if _, err := s.cronEngine.AddFunc(s.dispatchSpec, s.runDispatch); err != nil {
		return fmt.Errorf("could not add dispatch job %q: %w", s.dispatchSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"plan_spec":     s.planSpec,
		"dispatch_spec": s.dispatchSpec,
	}).Info("Reminder scheduler started with jobs.")
	return nil
}

func (s *ReminderScheduler) runPlan() {
	s.logger.Info("Cron job triggered for planning tomorrow's reminders.")
	ctx, cancel := context.WithTimeout(context.Background(), planTimeout)
	defer cancel()

	started := time.Now()
	if err := s.planner.PlanAll(ctx); err != nil {
		s.logger.WithError(err).Error("Planning finished with errors")
		return
	}
	s.logger.WithField("took", time.Since(started).String()).Info("Planning finished")
}

func (s *ReminderScheduler) runDispatch() {
	if !s.dispatching.TryLock() {
		s.logger.Debug("Previous dispatch still running, skipping tick")
		return
	}
	defer s.dispatching.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	sent, failed, err := s.dispatcher.DispatchDue(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error during dispatch of due reminders")
		return
	}
	if sent > 0 || failed > 0 {
		s.logger.WithFields(logrus.Fields{"sent": sent, "failed": failed}).Info("Dispatched due reminders")
	}
}

// Stop stops the cron engine and waits for running jobs.
func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Reminder scheduler gracefully stopped.")
}
