package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  map[string][]events.EventType
	failU string
	// gate, when set, blocks every delivery until it is closed.
	gate chan struct{}
}

func (n *recordingNotifier) Notify(_ context.Context, userID string, event events.Event) error {
	if n.gate != nil {
		<-n.gate
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if userID == n.failU {
		return errors.New("channel unavailable")
	}
	if n.sent == nil {
		n.sent = map[string][]events.EventType{}
	}
	n.sent[userID] = append(n.sent[userID], event.Type)
	return nil
}

func (n *recordingNotifier) deliveries(userID string) []events.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[userID]
}

func TestNotificationServiceFansOutToRecipients(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	notifier := &recordingNotifier{failU: "u-down"}
	svc := NewNotificationService(dispatcher, notifier, zap.New(core))
	svc.RegisterHandlers()
	svc.Start(2)

	dispatcher.Publish(context.Background(), events.Event{
		Type:       events.EventTicketAutoClosed,
		TicketID:   "tkt-1",
		Recipients: []string{"u-rina", "u-down", "u-sari"},
	})
	svc.Close()

	assert.Equal(t, []events.EventType{events.EventTicketAutoClosed}, notifier.deliveries("u-rina"))
	assert.Equal(t, []events.EventType{events.EventTicketAutoClosed}, notifier.deliveries("u-sari"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "u-down", logs.All()[0].ContextMap()["user_id"])
}

func TestNotificationServiceDoesNotBlockPublisher(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	notifier := &recordingNotifier{gate: make(chan struct{})}
	svc := NewNotificationService(dispatcher, notifier, nil)
	svc.RegisterHandlers()
	svc.Start(1)

	published := make(chan struct{})
	go func() {
		dispatcher.Publish(context.Background(), events.Event{
			Type:       events.EventTicketCreated,
			TicketID:   "tkt-1",
			Recipients: []string{"u-sari"},
		})
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a stalled notifier")
	}
	assert.Empty(t, notifier.deliveries("u-sari"))

	close(notifier.gate)
	svc.Close()
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, notifier.deliveries("u-sari"))
}

func TestNotificationServiceDropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	notifier := &recordingNotifier{}
	svc := NewNotificationService(dispatcher, notifier, zap.New(core))
	svc.RegisterHandlers()

	// No workers yet, so the queue fills up.
	for i := 0; i < defaultNotificationQueueSize+1; i++ {
		dispatcher.Publish(context.Background(), events.Event{
			Type:       events.EventTicketCommented,
			TicketID:   "tkt-1",
			Recipients: []string{"u-sari"},
		})
	}
	require.Equal(t, 1, logs.FilterMessage("notification queue full").Len())

	svc.Start(1)
	svc.Close()
	svc.Close()
	assert.Len(t, notifier.deliveries("u-sari"), defaultNotificationQueueSize)

	dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCommented, Recipients: []string{"u-sari"}})
	assert.Equal(t, 1, logs.FilterMessage("notification dropped after shutdown").Len())
}

func TestNotificationServiceEndToEnd(t *testing.T) {
	f := newFixture(t)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	notifier := &recordingNotifier{}
	notifications := NewNotificationService(dispatcher, notifier, nil)
	notifications.RegisterHandlers()
	notifications.Start(1)
	svc := NewTicketService(TicketDependencies{Store: f.store, Dispatcher: dispatcher, Clock: f.clock})
	ticket := f.seedTicket(t, nil)

	_, err := svc.AssignSelf(context.Background(), staffIPSActor, ticket.ID)
	require.NoError(t, err)
	notifications.Close()

	assert.Equal(t, []events.EventType{events.EventTicketAssigned}, notifier.deliveries(requesterActor.UserID))
	assert.Empty(t, notifier.deliveries(staffIPSActor.UserID))
}
