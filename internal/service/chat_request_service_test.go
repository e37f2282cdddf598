package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/realtime"
)

type requestFixture struct {
	svc      *ChatRequestService
	requests *mockChatRequestRepository
	chats    *mockChatRepository
	notifier *recordingNotifier
}

func newRequestFixture() *requestFixture {
	f := &requestFixture{
		chats:    newMockChatRepository(),
		notifier: newRecordingNotifier(),
	}
	f.requests = newMockChatRequestRepository(f.chats)
	users := newMockUserRepository("alice", "bob")
	chatSvc := NewChatService(f.chats, newMockMessageRepository(), users, f.notifier, nil)
	f.svc = NewChatRequestService(f.requests, f.chats, users, chatSvc, f.notifier)
	return f
}

func TestChatRequestLifecycle(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	req, err := f.svc.Create(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Sender == nil || req.Sender.ID != "alice" {
		t.Errorf("response sender = %+v", req.Sender)
	}
	if got := len(f.notifier.to("bob", realtime.EventChatRequest)); got != 1 {
		t.Fatalf("chat_request to bob = %d, want 1", got)
	}

	if _, err := f.svc.Accept(ctx, "alice", req.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("sender accepting: err = %v, want forbidden", err)
	}

	chat, err := f.svc.Accept(ctx, "bob", req.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !chat.HasParticipant("alice") || !chat.HasParticipant("bob") {
		t.Errorf("unexpected chat %+v", chat)
	}
	events := f.notifier.to("alice", realtime.EventChatRequestAccepted)
	if len(events) != 1 {
		t.Fatalf("chat_request_accepted to alice = %d, want 1", len(events))
	}
	if ev := events[0].(realtime.ChatRequestAccepted); ev.Chat.ID != chat.ID {
		t.Errorf("event chat = %s, want %s", ev.Chat.ID, chat.ID)
	}

	if _, err := f.svc.Accept(ctx, "bob", req.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("second accept: err = %v, want conflict", err)
	}
}

func TestChatRequestCreateRejections(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "alice", "alice"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("self request: err = %v", err)
	}
	if _, err := f.svc.Create(ctx, "alice", "zed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown receiver: err = %v", err)
	}

	if _, err := f.svc.Create(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(ctx, "bob", "alice"); !errors.Is(err, ErrConflict) {
		t.Errorf("reverse duplicate: err = %v, want conflict", err)
	}
}

func TestChatRequestRefusedWhileChatVisible(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()
	f.chats.add("c1", "alice", "bob")

	if _, err := f.svc.Create(ctx, "alice", "bob"); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	_ = f.chats.Hide(ctx, "c1", "alice")
	if _, err := f.svc.Create(ctx, "alice", "bob"); err != nil {
		t.Fatalf("request after hiding chat: %v", err)
	}
}

func TestChatRequestRejectThenRequestAgain(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	req, _ := f.svc.Create(ctx, "alice", "bob")
	if err := f.svc.Reject(ctx, "bob", req.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := f.svc.Create(ctx, "alice", "bob"); err != nil {
		t.Fatalf("request after rejection: %v", err)
	}
	list, err := f.svc.List(ctx, "bob")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Status != models.RequestPending {
		t.Errorf("resolved request should have been purged, got %+v", list)
	}
}

func TestChatRequestConcurrentAcceptOnce(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()
	req, _ := f.svc.Create(ctx, "alice", "bob")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Accept(ctx, "bob", req.ID); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("accepts succeeded %d times, want 1", won)
	}
	if got := len(f.notifier.to("alice", realtime.EventChatRequestAccepted)); got != 1 {
		t.Errorf("chat_request_accepted = %d, want 1", got)
	}
}

func TestChatRequestCrossedCreatesLeaveOnePending(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, from, to)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("Create(%s, %s): %v", from, to, err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != 7 {
		t.Fatalf("succeeded = %d, conflicts = %d; want 1 and 7", succeeded, conflicts)
	}
	list, _ := f.svc.List(ctx, "alice")
	if len(list) != 1 {
		t.Errorf("pending requests = %d, want 1", len(list))
	}
}

func TestChatRequestAcceptFailureKeepsRequestPending(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()
	req, err := f.svc.Create(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	f.requests.chatErr = errors.New("database unavailable")
	if _, err := f.svc.Accept(ctx, "bob", req.ID); err == nil {
		t.Fatal("Accept should fail while the chat cannot be written")
	}
	stored, _ := f.requests.FindByID(ctx, req.ID)
	if stored.Status != models.RequestPending {
		t.Fatalf("status after failed accept = %s, want pending", stored.Status)
	}
	if len(f.notifier.to("alice", realtime.EventChatRequestAccepted)) != 0 {
		t.Error("no acceptance may be announced for a failed accept")
	}

	f.requests.chatErr = nil
	chat, err := f.svc.Accept(ctx, "bob", req.ID)
	if err != nil {
		t.Fatalf("retry Accept: %v", err)
	}
	if !chat.HasParticipant("alice") || !chat.HasParticipant("bob") {
		t.Errorf("unexpected chat %+v", chat)
	}
}
