package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-api/internal/events"
	"github.com/spec-kit/marketplace-api/internal/service"
)

// ErrQueueFull is returned when the worker cannot accept more events.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned for events published after Stop.
var ErrStopped = errors.New("notification worker stopped")

type queuedEvent struct {
	ctx   context.Context
	event events.Event
}

// NotificationWorker moves event delivery off the request path. It satisfies
// events.Dispatcher so services publish to it directly.
type NotificationWorker struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	queue      chan queuedEvent
	done       chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// StartNotificationWorker registers notification handlers on dispatcher and starts the
// delivery loop.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher, logger *zap.Logger, buffer int) *NotificationWorker {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 64
	}

	w := &NotificationWorker{
		dispatcher: dispatcher,
		logger:     logger,
		queue:      make(chan queuedEvent, buffer),
		done:       make(chan struct{}),
	}
	go w.run()
	return w
}

// Publish enqueues the event. The request context's values are kept but its
// cancellation is not, since delivery outlives the request.
func (w *NotificationWorker) Publish(ctx context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		w.logger.Warn("dropping event", zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID))
		return ErrQueueFull
	}
}

// Subscribe registers a handler on the underlying dispatcher.
func (w *NotificationWorker) Subscribe(eventType events.EventType, handler events.EventHandler) {
	w.dispatcher.Subscribe(eventType, handler)
}

// Stop rejects new events and waits for queued ones to be delivered.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
}

func (w *NotificationWorker) run() {
	defer close(w.done)
	for item := range w.queue {
		if err := w.dispatcher.Publish(item.ctx, item.event); err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("event_type", string(item.event.Type)),
				zap.String("account_id", item.event.AccountID),
				zap.Error(err))
		}
	}
}

var _ events.Dispatcher = (*NotificationWorker)(nil)
