// Package reconcile is the client half of the poll contract. Push events give
// a fast, lossy view; the periodic poll is authoritative and replaces it.
package reconcile

import (
	"sort"
	"sync"
	"time"

	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/realtime"
)

// Diff summarizes what a Reconcile call changed.
type Diff struct {
	Added   int
	Removed int
	Updated int
}

func (d Diff) Empty() bool { return d.Added == 0 && d.Removed == 0 && d.Updated == 0 }

// Store holds one viewer's conversations keyed by message id.
type Store struct {
	viewerID string
	now      func() time.Time

	mu            sync.Mutex
	conversations map[string]map[string]models.MessageResponse
}

func NewStore(viewerID string) *Store {
	return &Store{
		viewerID:      viewerID,
		now:           func() time.Time { return time.Now().UTC() },
		conversations: make(map[string]map[string]models.MessageResponse),
	}
}

func (s *Store) conversation(id string) map[string]models.MessageResponse {
	conv, ok := s.conversations[id]
	if !ok {
		conv = make(map[string]models.MessageResponse)
		s.conversations[id] = conv
	}
	return conv
}

// Apply folds a push event into the store. It returns false for events that
// carry no conversation state or refer to messages the store has not seen.
func (s *Store) Apply(e realtime.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := e.(type) {
	case realtime.NewMessage:
		conv := s.conversation(ev.ChatID)
		if _, seen := conv[ev.ID]; seen {
			return false
		}
		conv[ev.ID] = ev.MessageResponse
		return true

	case realtime.MessageRead:
		for _, conv := range s.conversations {
			m, ok := conv[ev.MessageID]
			if !ok {
				continue
			}
			if m.ReadAt != nil {
				return false
			}
			at := ev.ReadAt
			conv[ev.MessageID] = markRead(m, at)
			return true
		}
		return false

	case realtime.MessagesRead:
		conv, ok := s.conversations[ev.ConversationID]
		if !ok {
			return false
		}
		// The event carries only a count, so every unread message this viewer
		// sent is taken as read now. The next poll fixes the timestamps.
		at := s.now()
		changed := false
		for id, m := range conv {
			if m.SenderID == s.viewerID && m.ReadAt == nil && !m.IsScheduled {
				conv[id] = markRead(m, at)
				changed = true
			}
		}
		return changed

	case realtime.MessageDeleted:
		conv, ok := s.conversations[ev.ChatID]
		if !ok {
			return false
		}
		if _, ok := conv[ev.MessageID]; !ok {
			return false
		}
		delete(conv, ev.MessageID)
		return true

	case realtime.ChatDeleted:
		if _, ok := s.conversations[ev.ChatID]; !ok {
			return false
		}
		delete(s.conversations, ev.ChatID)
		return true
	}
	return false
}

func markRead(m models.MessageResponse, at time.Time) models.MessageResponse {
	m.ReadAt = &at
	m.IsRead = true
	m.Status = models.StateRead
	return m
}

// Reconcile replaces the conversation with the polled snapshot. Messages the
// store learned from pushes but the poll does not contain are dropped.
func (s *Store) Reconcile(conversationID string, polled []models.MessageResponse) Diff {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.conversations[conversationID]
	next := make(map[string]models.MessageResponse, len(polled))
	var diff Diff
	for _, m := range polled {
		next[m.ID] = m
		prev, seen := old[m.ID]
		switch {
		case !seen:
			diff.Added++
		case !sameState(prev, m):
			diff.Updated++
		}
	}
	for id := range old {
		if _, ok := next[id]; !ok {
			diff.Removed++
		}
	}
	s.conversations[conversationID] = next
	return diff
}

func sameState(a, b models.MessageResponse) bool {
	if a.Status != b.Status || a.IsScheduled != b.IsScheduled || a.Content != b.Content {
		return false
	}
	if (a.ReadAt == nil) != (b.ReadAt == nil) {
		return false
	}
	return a.ReadAt == nil || a.ReadAt.Equal(*b.ReadAt)
}

// Messages returns the conversation ordered by creation time.
func (s *Store) Messages(conversationID string) []models.MessageResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.conversations[conversationID]
	out := make([]models.MessageResponse, 0, len(conv))
	for _, m := range conv {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Unread counts messages addressed to the viewer that are not read yet.
func (s *Store) Unread(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.conversations[conversationID] {
		if m.ReceiverID == s.viewerID && m.ReadAt == nil && !m.IsScheduled {
			n++
		}
	}
	return n
}
