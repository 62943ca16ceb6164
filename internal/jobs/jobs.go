// Package jobs runs the calendar side effect of a booking as a retried asynq
// task keyed by the booking id.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"schedule-booking-api/internal/booking"
	"schedule-booking-api/internal/calendar"
	"schedule-booking-api/internal/model"
)

const (
	TypeCreateCalendarEvent = "calendar:create_event"
	QueueCalendar           = "calendar"

	maxRetry = 10
)

type calendarPayload struct {
	BookingID string `json:"booking_id"`
}

// NewCalendarTask builds the task for one booking. The booking id doubles as
// the task id, so enqueueing twice is a no-op.
func NewCalendarTask(bookingID string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(calendarPayload{BookingID: bookingID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeCreateCalendarEvent, b)
	opts := []asynq.Option{
		asynq.TaskID(bookingID),
		asynq.Queue(QueueCalendar),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(30 * time.Second),
		asynq.Retention(24 * time.Hour),
	}
	return task, opts, nil
}

// TaskQueue is satisfied by *asynq.Client.
type TaskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer is an outbox sink that turns booking.created events into calendar tasks.
type Enqueuer struct {
	queue TaskQueue
	log   *zap.Logger
}

func NewEnqueuer(q TaskQueue, log *zap.Logger) *Enqueuer {
	return &Enqueuer{queue: q, log: log}
}

func (e *Enqueuer) Name() string { return "asynq" }

func (e *Enqueuer) Publish(ctx context.Context, evt model.OutboxEvent) error {
	if evt.EventType != booking.EventBookingCreated {
		return nil
	}
	task, opts, err := NewCalendarTask(evt.AggregateID)
	if err != nil {
		return err
	}
	info, err := e.queue.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		e.log.Debug("calendar task already queued", zap.String("booking_id", evt.AggregateID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue calendar task: %w", err)
	}
	e.log.Info("calendar task queued", zap.String("booking_id", evt.AggregateID), zap.String("task_id", info.ID))
	return nil
}

type EventCreator interface {
	CreateEvent(ctx context.Context, bookingID string) error
}

type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	cal EventCreator
	log *zap.Logger
}

func NewWorker(redis asynq.RedisConnOpt, cal EventCreator, concurrency int, log *zap.Logger) *Worker {
	w := &Worker{cal: cal, log: log}
	w.srv = asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueCalendar: 1},
		Logger:      log.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			limit, _ := asynq.GetMaxRetry(ctx)
			log.Warn("task failed",
				zap.String("type", task.Type()),
				zap.Int("retry", retried),
				zap.Int("max_retry", limit),
				zap.Error(err),
			)
		}),
	})
	w.mux = asynq.NewServeMux()
	w.mux.HandleFunc(TypeCreateCalendarEvent, w.handleCreateEvent)
	return w
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.log.Info("calendar worker started")
	<-ctx.Done()
	w.srv.Shutdown()
	w.log.Info("calendar worker stopped")
	return nil
}

func (w *Worker) handleCreateEvent(ctx context.Context, task *asynq.Task) error {
	var p calendarPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.BookingID == "" {
		return fmt.Errorf("bad payload: %w", asynq.SkipRetry)
	}
	err := w.cal.CreateEvent(ctx, p.BookingID)
	if err != nil && calendar.Permanent(err) {
		w.log.Error("calendar event dropped", zap.String("booking_id", p.BookingID), zap.Error(err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
