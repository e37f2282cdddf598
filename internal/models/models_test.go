package models

import (
	"testing"
	"time"
)

func TestMessageState(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		message  Message
		expected DeliveryState
	}{
		{"pending", Message{Dispatched: false}, StatePending},
		{"sent", Message{Dispatched: true}, StateSent},
		{"read", Message{Dispatched: true, ReadAt: &now}, StateRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.message.State(); got != tt.expected {
				t.Errorf("State() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestShouldDispatchNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name        string
		scheduledAt *time.Time
		expected    bool
	}{
		{"immediate", nil, true},
		{"past schedule", &past, true},
		{"exactly now", &now, true},
		{"future schedule", &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldDispatchNow(tt.scheduledAt, now); got != tt.expected {
				t.Errorf("ShouldDispatchNow() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMessageToResponse(t *testing.T) {
	readAt := time.Now()
	message := &Message{
		ID:          "m1",
		ChatID:      "c1",
		SenderID:    "alice",
		ReceiverID:  "bob",
		Content:     "hi",
		MessageType: TextMessage,
		Attachment:  Attachment{FileURL: "/f/1", FileSize: 10},
		Dispatched:  true,
		ReadAt:      &readAt,
	}

	response := message.ToResponse()

	if response.ID != "m1" || response.ChatID != "c1" {
		t.Errorf("ToResponse ids = %q/%q", response.ID, response.ChatID)
	}
	if !response.IsRead || response.Status != StateRead {
		t.Errorf("ToResponse IsRead = %v, Status = %q", response.IsRead, response.Status)
	}
	if response.IsScheduled {
		t.Errorf("ToResponse IsScheduled = true for dispatched message")
	}
	if response.FileURL != "/f/1" || response.FileSize != 10 {
		t.Errorf("ToResponse attachment = %+v", response.Attachment)
	}
}

func TestChatParticipants(t *testing.T) {
	a, b := OrderedPair("zed", "amy")
	if a != "amy" || b != "zed" {
		t.Fatalf("OrderedPair = %q, %q", a, b)
	}

	chat := &Chat{UserAID: a, UserBID: b}
	if !chat.HasParticipant("zed") || chat.HasParticipant("bob") {
		t.Errorf("HasParticipant mismatch")
	}
	if chat.Other("amy") != "zed" || chat.Other("zed") != "amy" {
		t.Errorf("Other mismatch")
	}
}

func TestGroupMuteActive(t *testing.T) {
	now := time.Now()
	var nilMute *GroupMute
	if nilMute.Active(now) {
		t.Errorf("nil mute should not be active")
	}
	if !(&GroupMute{Until: now.Add(time.Minute)}).Active(now) {
		t.Errorf("future mute should be active")
	}
	if (&GroupMute{Until: now.Add(-time.Minute)}).Active(now) {
		t.Errorf("expired mute should not be active")
	}
}

func TestChatRequestInvolves(t *testing.T) {
	r := &ChatRequest{SenderID: "alice", ReceiverID: "bob"}
	if !r.Involves("alice", "bob") || !r.Involves("bob", "alice") {
		t.Errorf("Involves should match both directions")
	}
	if r.Involves("alice", "carol") {
		t.Errorf("Involves matched an unrelated pair")
	}
}
