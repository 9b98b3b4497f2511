package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"assetdesk-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Directory is the read access the workers need to render and address a job.
type Directory interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
	GetAsset(ctx context.Context, id uint) (*model.Asset, error)
	GetSchedule(ctx context.Context, id uint) (*model.RecurringSchedule, error)
	GetTicket(ctx context.Context, id uint) (*model.Ticket, error)
	SubscriptionsForUser(ctx context.Context, userID uint) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Dispatcher accepts jobs without blocking. It reports false when the job
// was dropped.
type Dispatcher interface {
	Dispatch(job Job) bool
}

// DispatchAll offers every job to d and reports whether all were accepted.
// A dropped job does not stop the rest.
func DispatchAll(d Dispatcher, jobs []Job) bool {
	ok := true
	for _, j := range jobs {
		if !d.Dispatch(j) {
			ok = false
		}
	}
	return ok
}

// WorkerPool manages a pool of workers for sending notifications. Delivery
// is best effort: failures are logged and never reach the caller.
type WorkerPool struct {
	size    int
	jobs    chan Job
	dir     Directory
	webpush *webpush.Options
	sender  NotificationSender
	mailer  Mailer
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. webpushOptions or mailer may be
// nil to disable that channel.
func NewWorkerPool(size, queueSize int, dir Directory, webpushOptions *webpush.Options, mailer Mailer, log zerolog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, queueSize), // Buffered channel
		dir:     dir,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		mailer:  mailer,
		log:     log.With().Str("component", "notification").Logger(),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.log.Debug().Int("worker", id).Msg("worker started")
	for {
		select {
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.process(ctx, job)
		case <-ctx.Done():
			wp.log.Debug().Int("worker", id).Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues a job. It never blocks; a full queue or a closed pool
// drops the job.
func (wp *WorkerPool) Dispatch(job Job) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}
	select {
	case wp.jobs <- job:
		return true
	default:
		wp.log.Warn().Str("kind", string(job.Kind)).Uint("user_id", job.UserID).Msg("notification queue full; dropping job")
		return false
	}
}

// Close stops accepting jobs and waits until the workers have delivered the
// queued ones. The context passed to Start must stay live until Close returns.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobs)
	}
	wp.mu.Unlock()
	wp.wg.Wait()
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

func (wp *WorkerPool) process(ctx context.Context, job Job) {
	logger := wp.log.With().Str("kind", string(job.Kind)).Uint("user_id", job.UserID).Logger()

	user, err := wp.dir.GetUser(ctx, job.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("notification: recipient lookup failed")
		return
	}
	if user.IsDeleted || !user.IsActive {
		logger.Debug().Msg("notification: recipient inactive, skipping")
		return
	}

	msg := render(job, *user, wp.loadSubject(ctx, job, logger))

	if wp.mailer != nil && user.Email != "" {
		if err := wp.mailer.Send(ctx, user.Email, msg.Title, msg.Body); err != nil {
			logger.Warn().Err(err).Msg("notification: email failed (non-fatal)")
		}
	}
	if wp.webpush != nil {
		wp.push(ctx, user.ID, msg, logger)
	}
}

func (wp *WorkerPool) loadSubject(ctx context.Context, job Job, logger zerolog.Logger) subject {
	var subj subject
	var err error
	switch {
	case job.TicketID != 0:
		subj.ticket, err = wp.dir.GetTicket(ctx, job.TicketID)
	case job.ScheduleID != 0:
		subj.schedule, err = wp.dir.GetSchedule(ctx, job.ScheduleID)
	case job.AssetID != 0:
		subj.asset, err = wp.dir.GetAsset(ctx, job.AssetID)
	}
	if err != nil {
		// Render falls back to ids.
		logger.Debug().Err(err).Msg("notification: subject lookup failed")
	}
	return subj
}

func (wp *WorkerPool) push(ctx context.Context, userID uint, msg Message, logger zerolog.Logger) {
	subs, err := wp.dir.SubscriptionsForUser(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Msg("notification: fetching subscriptions failed")
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Warn().Err(err).Msg("notification: failed to marshal payload")
		return
	}
	for _, sub := range subs {
		wp.sendNotification(ctx, sub, payload, logger)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte, logger zerolog.Logger) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		logger.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("notification: push failed (non-fatal)")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		logger.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired; deleting")
		if err := wp.dir.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			logger.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
