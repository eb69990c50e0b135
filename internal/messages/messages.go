// Package messages owns conversations between a host/cleaner pair and the
// ordered messages within them, with per-role read state. Conversations are
// created out of band (seeded); only messages are appended at runtime.
package messages

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"freshnest/internal/domain"
	"freshnest/internal/fault"
	"freshnest/internal/log"
	"freshnest/internal/notify"
	"freshnest/internal/seed"
	"freshnest/internal/store"
)

type Store struct {
	mu            sync.Mutex
	conversations []domain.Conversation
	items         []domain.Message

	port   store.Store
	notify *notify.Store
	Now    func() time.Time
	Log    zerolog.Logger
}

// New loads persisted conversations and messages, seeding either collection
// that is absent or unreadable.
func New(ctx context.Context, port store.Store, n *notify.Store) *Store {
	s := &Store{
		port:   port,
		notify: n,
		Now:    time.Now,
		Log:    log.WithComponent("messages"),
	}
	if !port.Load(ctx, store.KeyConversations, &s.conversations) {
		s.conversations = seed.Conversations()
	}
	if !port.Load(ctx, store.KeyMessages, &s.items) {
		s.items = seed.Messages(s.now())
	}
	return s
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ConversationPreview joins a conversation with its most recent message and
// the unread count for one role.
type ConversationPreview struct {
	domain.Conversation
	LastMessage *domain.Message `json:"last_message,omitempty"`
	UnreadCount int             `json:"unread_count"`
}

// Send appends a message to a conversation. The sender's own read flag is
// set; the recipient's stays false. A new-message notification goes to the
// recipient role after the message is stored, never before.
func (s *Store) Send(ctx context.Context, conversationID string, sender domain.Role, text string) (domain.Message, error) {
	if !sender.Valid() {
		return domain.Message{}, fault.NewValidation("sender", "must be host or cleaner")
	}
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, fault.NewValidation("text", "is required")
	}
	s.mu.Lock()
	conv, ok := s.conversation(conversationID)
	if !ok {
		s.mu.Unlock()
		return domain.Message{}, &fault.NotFoundError{Kind: "conversation", ID: conversationID}
	}
	m := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
		SentAt:         s.now().UTC().Format(time.RFC3339),
		ReadByHost:     sender == domain.RoleHost,
		ReadByCleaner:  sender == domain.RoleCleaner,
	}
	s.items = append(s.items, m)
	persistErr := s.persist(ctx)
	s.mu.Unlock()

	fromName := conv.HostName
	if sender == domain.RoleCleaner {
		fromName = conv.CleanerName
	}
	if _, err := s.notify.Publish(ctx, notify.NewMessage{FromName: fromName, For: sender.Other()}); err != nil {
		s.Log.Warn().Err(err).Str("conversation_id", conversationID).Msg("new-message notification not recorded")
	}
	return m, persistErr
}

// Conversations returns every conversation involving the given role.
func (s *Store) Conversations() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]domain.Conversation, len(s.conversations))
	copy(res, s.conversations)
	return res
}

// ConversationByID returns a single conversation.
func (s *Store) ConversationByID(id string) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversation(id); ok {
		return conv, nil
	}
	return domain.Conversation{}, &fault.NotFoundError{Kind: "conversation", ID: id}
}

// ConversationMessages returns a conversation's messages, oldest first.
func (s *Store) ConversationMessages(conversationID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversation(conversationID); !ok {
		return nil, &fault.NotFoundError{Kind: "conversation", ID: conversationID}
	}
	var res []domain.Message
	for _, m := range s.items {
		if m.ConversationID == conversationID {
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SentAt < res[j].SentAt })
	return res, nil
}

// ConversationsWithPreview returns each conversation joined with its latest
// message and the unread count for role, ordered by most recent message
// descending. Conversations with no messages sort last.
func (s *Store) ConversationsWithPreview(role domain.Role) []ConversationPreview {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]ConversationPreview, 0, len(s.conversations))
	for _, conv := range s.conversations {
		p := ConversationPreview{Conversation: conv}
		for i := range s.items {
			m := s.items[i]
			if m.ConversationID != conv.ID {
				continue
			}
			if p.LastMessage == nil || m.SentAt > p.LastMessage.SentAt {
				last := m
				p.LastMessage = &last
			}
			if m.Sender == role.Other() && !m.ReadBy(role) {
				p.UnreadCount++
			}
		}
		res = append(res, p)
	}
	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i].LastMessage, res[j].LastMessage
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.SentAt > b.SentAt
		}
	})
	return res
}

// UnreadCount counts messages addressed to role and not yet read by it,
// across all conversations.
func (s *Store) UnreadCount(role domain.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread(role, "")
}

// UnreadCountIn is UnreadCount scoped to one conversation.
func (s *Store) UnreadCountIn(role domain.Role, conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread(role, conversationID)
}

// MarkConversationRead marks every message addressed to role within the
// conversation as read by it. Idempotent.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversation(conversationID); !ok {
		return &fault.NotFoundError{Kind: "conversation", ID: conversationID}
	}
	return s.markRead(ctx, role, conversationID)
}

// MarkAllRead marks every message addressed to role as read, across all
// conversations. Idempotent.
func (s *Store) MarkAllRead(ctx context.Context, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markRead(ctx, role, "")
}

// Reset restores the seed conversations and messages.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = seed.Conversations()
	s.items = seed.Messages(s.now())
	if err := s.port.Save(ctx, store.KeyConversations, s.conversations); err != nil {
		return err
	}
	return s.persist(ctx)
}

// conversation is called with the mutex held.
func (s *Store) conversation(id string) (domain.Conversation, bool) {
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

// unread is called with the mutex held. Empty conversationID means all.
func (s *Store) unread(role domain.Role, conversationID string) int {
	count := 0
	for _, m := range s.items {
		if conversationID != "" && m.ConversationID != conversationID {
			continue
		}
		if m.Sender == role.Other() && !m.ReadBy(role) {
			count++
		}
	}
	return count
}

// markRead is called with the mutex held. Empty conversationID means all.
func (s *Store) markRead(ctx context.Context, role domain.Role, conversationID string) error {
	changed := false
	for i := range s.items {
		m := &s.items[i]
		if conversationID != "" && m.ConversationID != conversationID {
			continue
		}
		if m.Sender != role.Other() || m.ReadBy(role) {
			continue
		}
		if role == domain.RoleHost {
			m.ReadByHost = true
		} else {
			m.ReadByCleaner = true
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return s.persist(ctx)
}

// persist is called with the mutex held.
func (s *Store) persist(ctx context.Context) error {
	if err := s.port.Save(ctx, store.KeyMessages, s.items); err != nil {
		s.Log.Warn().Err(err).Msg("message collection not persisted; in-memory state stands")
		return err
	}
	return nil
}
