package messages_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"freshnest/internal/db"
	"freshnest/internal/domain"
	"freshnest/internal/fault"
	"freshnest/internal/messages"
	"freshnest/internal/migrate"
	"freshnest/internal/notify"
	"freshnest/internal/store"
)

type testEnv struct {
	Messages *messages.Store
	Notify   *notify.Store
	Ctx      context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	port := store.New(conn)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	clock := func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	feed := notify.New(ctx, port)
	feed.Now = clock
	m := messages.New(ctx, port, feed)
	m.Now = clock
	// Reseed so the fixture timestamps come from the test clock rather
	// than the wall clock the first load used.
	if err := feed.Reset(ctx); err != nil {
		t.Fatalf("reset feed: %v", err)
	}
	if err := m.Reset(ctx); err != nil {
		t.Fatalf("reset messages: %v", err)
	}
	return testEnv{Messages: m, Notify: feed, Ctx: ctx}
}

func TestSendSetsReadFlags(t *testing.T) {
	env := newTestEnv(t)

	m, err := env.Messages.Send(env.Ctx, "conv-1", domain.RoleHost, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !m.ReadByHost || m.ReadByCleaner {
		t.Fatalf("sender read, recipient unread expected: %+v", m)
	}
	if m.SentAt == "" {
		t.Fatal("sent_at not stamped")
	}

	if env.Messages.UnreadCountIn(domain.RoleHost, "conv-1") != 0 {
		t.Fatal("sender must have no unread from their own message")
	}

	if err := env.Messages.MarkConversationRead(env.Ctx, "conv-1", domain.RoleCleaner); err != nil {
		t.Fatalf("mark conversation read: %v", err)
	}
	msgs, _ := env.Messages.ConversationMessages("conv-1")
	for _, got := range msgs {
		if got.ID == m.ID && !got.ReadByCleaner {
			t.Fatal("message still unread by cleaner after mark")
		}
	}
}

func TestSendValidation(t *testing.T) {
	env := newTestEnv(t)

	var nfe *fault.NotFoundError
	if _, err := env.Messages.Send(env.Ctx, "conv-nope", domain.RoleHost, "hello"); !errors.As(err, &nfe) {
		t.Fatalf("unknown conversation: expected not found, got %v", err)
	}
	var ve *fault.ValidationError
	if _, err := env.Messages.Send(env.Ctx, "conv-1", domain.RoleHost, "   "); !errors.As(err, &ve) {
		t.Fatalf("blank text: expected validation error, got %v", err)
	}
	if _, err := env.Messages.Send(env.Ctx, "conv-1", domain.Role("ghost"), "hi"); !errors.As(err, &ve) {
		t.Fatalf("bad role: expected validation error, got %v", err)
	}
}

func TestSendNotifiesRecipient(t *testing.T) {
	env := newTestEnv(t)
	before := env.Notify.UnreadCount(domain.RoleCleaner)

	if _, err := env.Messages.Send(env.Ctx, "conv-1", domain.RoleHost, "are you free Friday?"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := env.Notify.UnreadCount(domain.RoleCleaner); got != before+1 {
		t.Fatalf("recipient notification count: got %d want %d", got, before+1)
	}
	items := env.Notify.ListFor(domain.RoleCleaner)
	if len(items) == 0 || items[0].Type != domain.NotifNewMessage {
		t.Fatalf("newest cleaner notification should be a new-message event: %+v", items)
	}
}

func TestConversationsWithPreview(t *testing.T) {
	env := newTestEnv(t)

	// A fresh message pushes conv-1 to the front.
	if _, err := env.Messages.Send(env.Ctx, "conv-1", domain.RoleHost, "newest"); err != nil {
		t.Fatalf("send: %v", err)
	}
	previews := env.Messages.ConversationsWithPreview(domain.RoleCleaner)
	if len(previews) < 2 {
		t.Fatalf("expected both seed conversations, got %d", len(previews))
	}
	if previews[0].ID != "conv-1" || previews[0].LastMessage == nil || previews[0].LastMessage.Text != "newest" {
		t.Fatalf("conv-1 should lead with its last message: %+v", previews[0])
	}
	for i := 1; i < len(previews); i++ {
		a, b := previews[i-1].LastMessage, previews[i].LastMessage
		if a != nil && b != nil && b.SentAt > a.SentAt {
			t.Fatal("previews must order by most recent message descending")
		}
	}
	if previews[0].UnreadCount == 0 {
		t.Fatal("cleaner should have unread messages in conv-1")
	}
}

func TestEmptyConversationSortsLast(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	port := store.New(conn)
	convs := []domain.Conversation{
		{ID: "busy", HostID: "h1", HostName: "H", CleanerID: "c1", CleanerName: "C", AssetName: "A"},
		{ID: "quiet", HostID: "h1", HostName: "H", CleanerID: "c2", CleanerName: "C2", AssetName: "B"},
	}
	msgs := []domain.Message{
		{ID: "m1", ConversationID: "busy", Sender: domain.RoleHost, Text: "hi", SentAt: "2024-01-01T00:00:00Z", ReadByHost: true},
	}
	if err := port.Save(ctx, store.KeyConversations, convs); err != nil {
		t.Fatalf("save conversations: %v", err)
	}
	if err := port.Save(ctx, store.KeyMessages, msgs); err != nil {
		t.Fatalf("save messages: %v", err)
	}

	m := messages.New(ctx, port, notify.New(ctx, port))
	previews := m.ConversationsWithPreview(domain.RoleCleaner)
	if len(previews) != 2 {
		t.Fatalf("expected 2 previews, got %d", len(previews))
	}
	if previews[0].ID != "busy" || previews[1].ID != "quiet" {
		t.Fatalf("empty conversation should sort last: %s then %s", previews[0].ID, previews[1].ID)
	}
	if previews[1].LastMessage != nil {
		t.Fatal("quiet conversation should have no last message")
	}
}

func TestMarkAllReadIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.Messages.Send(env.Ctx, "conv-1", domain.RoleHost, "one")
	env.Messages.Send(env.Ctx, "conv-1", domain.RoleHost, "two")

	if err := env.Messages.MarkAllRead(env.Ctx, domain.RoleCleaner); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	once := env.Messages.UnreadCount(domain.RoleCleaner)
	if err := env.Messages.MarkAllRead(env.Ctx, domain.RoleCleaner); err != nil {
		t.Fatalf("second mark all read: %v", err)
	}
	if got := env.Messages.UnreadCount(domain.RoleCleaner); got != once || got != 0 {
		t.Fatalf("unread after repeated mark-all: %d (first pass %d)", got, once)
	}
}

func TestUnreadCountScoping(t *testing.T) {
	env := newTestEnv(t)
	env.Messages.MarkAllRead(env.Ctx, domain.RoleCleaner)

	env.Messages.Send(env.Ctx, "conv-1", domain.RoleHost, "in one")
	env.Messages.Send(env.Ctx, "conv-2", domain.RoleHost, "in two")

	if got := env.Messages.UnreadCount(domain.RoleCleaner); got != 2 {
		t.Fatalf("total unread: got %d want 2", got)
	}
	if got := env.Messages.UnreadCountIn(domain.RoleCleaner, "conv-2"); got != 1 {
		t.Fatalf("scoped unread: got %d want 1", got)
	}
	if got := env.Messages.UnreadCount(domain.RoleHost); got != 0 {
		t.Fatalf("host unread from own messages: got %d want 0", got)
	}
}

func TestConversationMessagesOrdered(t *testing.T) {
	env := newTestEnv(t)
	env.Messages.Send(env.Ctx, "conv-1", domain.RoleHost, "a")
	env.Messages.Send(env.Ctx, "conv-1", domain.RoleCleaner, "b")

	msgs, err := env.Messages.ConversationMessages("conv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].SentAt < msgs[i-1].SentAt {
			t.Fatal("messages must be ordered oldest first")
		}
	}
	var nfe *fault.NotFoundError
	if _, err := env.Messages.ConversationMessages("conv-nope"); !errors.As(err, &nfe) {
		t.Fatalf("expected not found, got %v", err)
	}
}
