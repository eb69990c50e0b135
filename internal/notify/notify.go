// Package notify owns the role-scoped notification feed. It is append-only:
// entries are produced by the lifecycle engine and the message store after a
// mutation has been applied, never speculatively before.
package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"freshnest/internal/domain"
	"freshnest/internal/fault"
	"freshnest/internal/log"
	"freshnest/internal/seed"
	"freshnest/internal/store"
)

type Store struct {
	mu      sync.Mutex
	items   []domain.Notification
	nextSeq int64

	port store.Store
	Now  func() time.Time
	Log  zerolog.Logger
}

// New loads the persisted feed, substituting the seed collection when the
// persisted one is absent or unreadable.
func New(ctx context.Context, port store.Store) *Store {
	s := &Store{
		port: port,
		Now:  time.Now,
		Log:  log.WithComponent("notify"),
	}
	if !port.Load(ctx, store.KeyNotifications, &s.items) {
		s.items = seed.Notifications(s.now())
	}
	for _, n := range s.items {
		if n.Seq >= s.nextSeq {
			s.nextSeq = n.Seq
		}
	}
	s.nextSeq++
	return s
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Publish validates the payload, renders it, and appends the resulting
// notification. A persistence failure is returned alongside the appended
// entry; the in-memory append stands.
func (s *Store) Publish(ctx context.Context, p Payload) (domain.Notification, error) {
	if err := p.validate(); err != nil {
		return domain.Notification{}, err
	}
	title, body := p.Render()
	return s.Add(ctx, p.Type(), p.Role(), title, body, p.RequestRef())
}

// Add appends a raw notification entry. Prefer Publish with a typed payload.
func (s *Store) Add(ctx context.Context, typ domain.NotificationType, forRole domain.Role, title, body, requestRef string) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := domain.Notification{
		ID:         uuid.New().String(),
		Seq:        s.nextSeq,
		Type:       typ,
		Title:      title,
		Body:       body,
		ForRole:    forRole,
		Read:       false,
		RequestRef: requestRef,
		CreatedAt:  s.now().UTC().Format(time.RFC3339),
	}
	s.nextSeq++
	s.items = append(s.items, n)
	return n, s.persist(ctx)
}

// ListFor returns all notifications for a role, newest first.
func (s *Store) ListFor(role domain.Role) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Notification
	for _, n := range s.items {
		if n.ForRole == role {
			res = append(res, n)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Seq > res[j].Seq })
	return res
}

// After returns notifications with a sequence number greater than cursor,
// oldest first. Webhook delivery walks the feed with it.
func (s *Store) After(cursor int64) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Notification
	for _, n := range s.items {
		if n.Seq > cursor {
			res = append(res, n)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Seq < res[j].Seq })
	return res
}

// LatestSeq returns the highest sequence number currently in the feed.
func (s *Store) LatestSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq - 1
}

// UnreadCount counts unread notifications for a role.
func (s *Store) UnreadCount(role domain.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.ForRole == role && !n.Read {
			count++
		}
	}
	return count
}

// MarkRead marks one notification read. Idempotent on an already-read entry.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			if s.items[i].Read {
				return nil
			}
			s.items[i].Read = true
			return s.persist(ctx)
		}
	}
	return &fault.NotFoundError{Kind: "notification", ID: id}
}

// MarkAllRead marks every notification for a role read. Idempotent.
func (s *Store) MarkAllRead(ctx context.Context, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for i := range s.items {
		if s.items[i].ForRole == role && !s.items[i].Read {
			s.items[i].Read = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persist(ctx)
}

// Remove deletes a notification from the feed.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return s.persist(ctx)
		}
	}
	return &fault.NotFoundError{Kind: "notification", ID: id}
}

// Reset restores the seed feed.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = seed.Notifications(s.now())
	s.nextSeq = 1
	for _, n := range s.items {
		if n.Seq >= s.nextSeq {
			s.nextSeq = n.Seq + 1
		}
	}
	return s.persist(ctx)
}

// persist is called with the mutex held.
func (s *Store) persist(ctx context.Context) error {
	if err := s.port.Save(ctx, store.KeyNotifications, s.items); err != nil {
		s.Log.Warn().Err(err).Msg("notification feed not persisted; in-memory state stands")
		return err
	}
	return nil
}
