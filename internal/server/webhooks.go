package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"freshnest/internal/app"
	"freshnest/internal/config"
	"freshnest/internal/domain"
	"freshnest/internal/log"
	"freshnest/internal/notify"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
)

// webhookDispatcher tails the notification feed and posts new entries to
// each configured subscription. Every subscription keeps its own cursor into
// the feed's sequence numbers; a failed delivery stalls that subscription
// until the endpoint recovers, so nothing is skipped.
type webhookDispatcher struct {
	feed     *notify.Store
	webhooks []config.Webhook
	client   *http.Client
	logger   zerolog.Logger

	mu      sync.Mutex
	cursors map[int]int64
}

func startWebhookDispatcher(a *app.App) {
	if a.Config == nil || len(a.Config.Webhooks) == 0 {
		return
	}
	d := &webhookDispatcher{
		feed:     a.Notify,
		webhooks: a.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		logger:   log.WithComponent("webhooks"),
		cursors:  make(map[int]int64),
	}
	go d.run()
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll()
		<-ticker.C
	}
}

func (d *webhookDispatcher) dispatchAll() {
	for i, hook := range d.webhooks {
		if !hook.Enabled || strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(idx int, hook config.Webhook) {
	ctx := context.Background()
	filter := newRoleFilter(hook.Roles)
	for _, item := range d.feed.After(d.cursorFor(idx)) {
		if !filter.match(item.ForRole) {
			d.setCursor(idx, item.Seq)
			continue
		}
		if err := d.post(ctx, hook, item); err != nil {
			d.logger.Warn().Err(err).Str("url", hook.URL).Msg("webhook delivery failed")
			return
		}
		d.setCursor(idx, item.Seq)
	}
}

// cursorFor starts a new subscription at the current tail so old feed
// entries are not replayed on startup.
func (d *webhookDispatcher) cursorFor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur := d.feed.LatestSeq()
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

func (d *webhookDispatcher) post(ctx context.Context, hook config.Webhook, item domain.Notification) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Freshnest-Event", string(item.Type))
	req.Header.Set("X-Freshnest-Delivery", fmt.Sprintf("%d", item.Seq))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Freshnest-Secret", hook.Secret)
	}
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type roleFilter struct {
	all bool
	set map[domain.Role]struct{}
}

func newRoleFilter(roles []string) roleFilter {
	if len(roles) == 0 {
		return roleFilter{all: true}
	}
	set := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		role := domain.Role(strings.TrimSpace(r))
		if role.Valid() {
			set[role] = struct{}{}
		}
	}
	if len(set) == 0 {
		return roleFilter{all: true}
	}
	return roleFilter{set: set}
}

func (f roleFilter) match(role domain.Role) bool {
	if f.all {
		return true
	}
	_, ok := f.set[role]
	return ok
}
