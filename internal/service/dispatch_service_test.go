package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/realtime"
)

func scheduledMessage(id, sender, receiver string, at time.Time) *models.Message {
	return &models.Message{
		ID:          id,
		ChatID:      "c1",
		SenderID:    sender,
		ReceiverID:  receiver,
		Content:     id,
		MessageType: models.TextMessage,
		ScheduledAt: &at,
	}
}

func TestDispatchDueFlipsOnlyDueMessages(t *testing.T) {
	messages := newMockMessageRepository()
	notifier := newRecordingNotifier("bob")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_ = messages.Create(ctx, scheduledMessage("due", "alice", "bob", now.Add(-time.Second)))
	_ = messages.Create(ctx, scheduledMessage("future", "alice", "bob", now.Add(time.Hour)))

	d := NewDispatcher(messages, nil, nil, notifier, 10)
	report, err := d.DispatchDue(ctx, now, "")
	if err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if report.Direct != 1 {
		t.Fatalf("direct = %d, want 1", report.Direct)
	}
	if !messages.get("due").Dispatched || messages.get("future").Dispatched {
		t.Error("only the due message should be dispatched")
	}
	events := notifier.to("bob", realtime.EventNewMessage)
	if len(events) != 1 || events[0].(realtime.NewMessage).IsScheduled {
		t.Errorf("expected one dispatched new_message, got %+v", events)
	}

	if report, _ := d.DispatchDue(ctx, now, ""); report.Total() != 0 {
		t.Errorf("second pass dispatched %d", report.Total())
	}
}

func TestDispatchDueScopedToSender(t *testing.T) {
	messages := newMockMessageRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	_ = messages.Create(ctx, scheduledMessage("a", "alice", "bob", now.Add(-time.Minute)))
	_ = messages.Create(ctx, scheduledMessage("b", "bob", "alice", now.Add(-time.Minute)))

	d := NewDispatcher(messages, nil, nil, newRecordingNotifier(), 10)
	report, err := d.DispatchDue(ctx, now, "alice")
	if err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if report.Direct != 1 || messages.get("b").Dispatched {
		t.Errorf("scoped pass touched another sender: %+v", report)
	}
}

func TestDispatchDueConcurrentExactlyOnce(t *testing.T) {
	messages := newMockMessageRepository()
	notifier := newRecordingNotifier("bob")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for _, id := range []string{"m1", "m2", "m3", "m4"} {
		_ = messages.Create(ctx, scheduledMessage(id, "alice", "bob", now.Add(-time.Minute)))
	}

	d := NewDispatcher(messages, nil, nil, notifier, 10)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := d.DispatchDue(ctx, now, "")
			if err != nil {
				t.Errorf("DispatchDue: %v", err)
				return
			}
			mu.Lock()
			total += report.Total()
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 4 {
		t.Errorf("dispatched %d in total, want 4", total)
	}
	if got := len(notifier.to("bob", realtime.EventNewMessage)); got != 4 {
		t.Errorf("new_message events = %d, want 4", got)
	}
}

func TestDispatchDueStoreError(t *testing.T) {
	messages := newMockMessageRepository()
	messages.failDue = errStoreDown
	d := NewDispatcher(messages, nil, nil, newRecordingNotifier(), 10)

	if _, err := d.DispatchDue(context.Background(), time.Now(), ""); !errors.Is(err, errStoreDown) {
		t.Fatalf("err = %v, want %v", err, errStoreDown)
	}
}
