package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
)

const defaultNotificationQueueSize = 256

// NotificationService fans committed ticket events out to their recipients. Events are
// queued by the publisher and delivered by background workers; a full queue drops the
// event with a warning instead of blocking the request.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan events.Event
	wg     sync.WaitGroup
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
		queue:      make(chan events.Event, defaultNotificationQueueSize),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventTicketStatusChanged,
		events.EventTicketClosed,
		events.EventTicketAutoClosed,
		events.EventTicketReopened,
		events.EventTicketCommented,
	} {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

// Start launches delivery workers.
func (n *NotificationService) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			for event := range n.queue {
				n.deliver(context.Background(), event)
			}
		}()
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (n *NotificationService) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	n.wg.Wait()
}

// handle never fails or blocks the publisher.
func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	if n.notifier == nil || len(event.Recipients) == 0 {
		return nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.Warn("notification dropped after shutdown", zap.String("ticket_id", event.TicketID))
		return nil
	}
	select {
	case n.queue <- event:
	default:
		n.logger.Warn("notification queue full",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)))
	}
	return nil
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event) {
	for _, userID := range event.Recipients {
		if err := n.notifier.Notify(ctx, userID, event); err != nil {
			n.logger.Warn("notification delivery failed",
				zap.String("ticket_id", event.TicketID),
				zap.String("event_type", string(event.Type)),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
}
