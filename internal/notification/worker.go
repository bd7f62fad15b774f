package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"laundry-kiosk/internal/events"
	"laundry-kiosk/internal/metrics"
	"laundry-kiosk/internal/model"
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

// Job announces that a machine became free.
type Job struct {
	MachineID   string
	MachineName string
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log zerolog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.With().Str("component", "notification").Logger(),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// Listen dispatches a job for every machine the engine releases.
func (wp *WorkerPool) Listen(bus *events.Bus) {
	bus.Subscribe(func(e events.Event) {
		if e.Machine == nil {
			return
		}
		wp.Dispatch(Job{MachineID: e.Machine.ID, MachineName: e.Machine.Name})
	}, events.MachineReleased)
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug().Int("worker", id).Msg("worker started")
	for {
		select {
		case job := <-wp.jobs:
			wp.sendNotificationsForMachine(ctx, job)
		case <-ctx.Done():
			wp.log.Debug().Int("worker", id).Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues a job. It never blocks; when the queue is full the job is
// dropped.
func (wp *WorkerPool) Dispatch(job Job) {
	select {
	case wp.jobs <- job:
	default:
		wp.log.Warn().Str("machine", job.MachineID).Msg("notification queue full, dropping job")
	}
}

func (wp *WorkerPool) sendNotificationsForMachine(ctx context.Context, job Job) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_machines sm ON sm.endpoint = push_subscriptions.endpoint").
		Where("sm.machine_id = ?", job.MachineID).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error().Err(err).Str("machine", job.MachineID).Msg("failed to fetch subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	label := job.MachineName
	if label == "" {
		label = job.MachineID
	}
	wp.log.Info().Int("count", len(subscriptions)).Str("machine", job.MachineID).Msg("sending notifications")

	message := fmt.Sprintf("%s is now available!", label)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.IncPushSent("error")
		wp.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to send notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusGone {
		metrics.IncPushSent("sent")
		return
	}

	metrics.IncPushSent("gone")
	wp.log.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
	err = wp.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", sub.Endpoint).Delete(&model.SubscriptionMachine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
	if err != nil {
		wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
	}
}
