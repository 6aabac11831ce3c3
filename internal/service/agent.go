package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/pkg/config"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
	"github.com/noah-isme/study-companion-api/pkg/jobs"
)

// Job types handled by the agent queue.
const (
	JobCalendarSync     = "calendar_sync"
	JobExamNotification = "exam_notification"
)

type agentSyncer interface {
	Sync(ctx context.Context, daysAhead int) (*models.SyncStats, error)
}

type agentReminder interface {
	CheckAndNotify(ctx context.Context, email string, daysAhead int) (*models.ReminderReport, error)
}

// Agent periodically mirrors the calendar and sends reminders. Triggers come
// from cron schedules; the work itself runs on a job queue with retries.
type Agent struct {
	syncer   agentSyncer
	reminder agentReminder
	metrics  *MetricsService
	cfg      config.AgentConfig
	logger   *zap.Logger
	now      func() time.Time

	queue *jobs.Queue

	mu                sync.Mutex
	running           bool
	cron              *cron.Cron
	syncEntry         cron.EntryID
	checkEntry        cron.EntryID
	startedAt         time.Time
	lastSync          time.Time
	lastCheck         time.Time
	notificationsSent int
	lastError         string
}

// NewAgent constructs a stopped agent.
func NewAgent(syncer agentSyncer, reminder agentReminder, metrics *MetricsService, cfg config.AgentConfig, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 5 * time.Minute
	}
	if cfg.CheckOffset < 0 {
		cfg.CheckOffset = 0
	}
	if cfg.CheckDays <= 0 {
		cfg.CheckDays = 7
	}
	if cfg.SyncDaysAhead <= 0 {
		cfg.SyncDaysAhead = 90
	}

	a := &Agent{
		syncer:   syncer,
		reminder: reminder,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}

	mux := jobs.NewMux()
	mux.Handle(JobCalendarSync, a.runSync)
	mux.Handle(JobExamNotification, a.runCheck)
	a.queue = jobs.NewQueue("agent", mux.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Coalesce:   true,
		Logger:     logger,
	})
	if err := metrics.TrackQueue("agent", func() int { return a.queue.Stats().Pending }); err != nil {
		logger.Warn("register agent queue gauge", zap.Error(err))
	}
	return a
}

// WithClock overrides the time source used for status timestamps and the
// first reminder check.
func (a *Agent) WithClock(now func() time.Time) *Agent {
	if now != nil {
		a.now = now
	}
	return a
}

// Start launches the queue and schedules, and enqueues an immediate sync.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return appErrors.ErrAgentRunning
	}
	if a.cfg.UserEmail == "" {
		return appErrors.Clone(appErrors.ErrValidation, "agent user email is not configured")
	}

	now := a.now()
	scheduler := cron.New()
	a.syncEntry = scheduler.Schedule(cron.Every(a.cfg.SyncInterval), cron.FuncJob(func() { a.enqueue(JobCalendarSync) }))
	a.checkEntry = scheduler.Schedule(offsetSchedule{first: now.Add(a.cfg.CheckOffset), every: a.cfg.SyncInterval}, cron.FuncJob(func() { a.enqueue(JobExamNotification) }))

	a.queue.Start(context.Background())
	scheduler.Start()
	a.cron = scheduler
	a.running = true
	a.startedAt = now
	a.lastError = ""

	a.enqueue(JobCalendarSync)
	a.logger.Info("agent started",
		zap.String("user_email", a.cfg.UserEmail),
		zap.Duration("sync_interval", a.cfg.SyncInterval),
		zap.Duration("check_offset", a.cfg.CheckOffset),
	)
	return nil
}

// Stop halts scheduling and drains the workers. Stopping a stopped agent is a no-op.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	scheduler := a.cron
	a.cron = nil
	a.running = false
	a.mu.Unlock()

	<-scheduler.Stop().Done()
	a.queue.Stop()
	a.logger.Info("agent stopped")
}

// Status reports the agent state.
func (a *Agent) Status() models.AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := models.AgentStatus{
		Running:           a.running,
		UserEmail:         a.cfg.UserEmail,
		NotificationsSent: a.notificationsSent,
		LastError:         a.lastError,
		StartedAt:         timePtr(a.startedAt),
		LastSync:          timePtr(a.lastSync),
		LastCheck:         timePtr(a.lastCheck),
		PendingJobs:       a.queue.Stats().Pending,
	}
	if a.running && a.cron != nil {
		status.NextSync = timePtr(a.cron.Entry(a.syncEntry).Next)
		status.NextCheck = timePtr(a.cron.Entry(a.checkEntry).Next)
	}
	return status
}

func (a *Agent) enqueue(jobType string) {
	job := jobs.Job{ID: uuid.NewString(), Type: jobType}
	if err := a.queue.Enqueue(job); err != nil {
		if errors.Is(err, jobs.ErrCoalesced) {
			a.logger.Debug("agent job already pending", zap.String("type", jobType))
			return
		}
		a.logger.Warn("enqueue agent job", zap.String("type", jobType), zap.Error(err))
	}
}

func (a *Agent) runSync(ctx context.Context, job jobs.Job) error {
	stats, err := a.syncer.Sync(ctx, a.cfg.SyncDaysAhead)
	a.metrics.RecordJob(JobCalendarSync, err)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.lastError = fmt.Sprintf("%s: %v", JobCalendarSync, err)
		return err
	}
	a.lastSync = a.now()
	a.logger.Debug("agent sync done", zap.String("job_id", job.ID), zap.Int("stored", stats.Stored))
	return nil
}

func (a *Agent) runCheck(ctx context.Context, job jobs.Job) error {
	report, err := a.reminder.CheckAndNotify(ctx, a.cfg.UserEmail, a.cfg.CheckDays)
	a.metrics.RecordJob(JobExamNotification, err)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.lastError = fmt.Sprintf("%s: %v", JobExamNotification, err)
		return err
	}
	a.lastCheck = a.now()
	a.notificationsSent += report.NotificationsSent()
	a.logger.Debug("agent check done", zap.String("job_id", job.ID), zap.Int("notifications", report.NotificationsSent()))
	return nil
}

// offsetSchedule fires at first and then every interval after it.
type offsetSchedule struct {
	first time.Time
	every time.Duration
}

func (s offsetSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	n := t.Sub(s.first)/s.every + 1
	return s.first.Add(n * s.every)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
