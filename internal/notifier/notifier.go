// Package notifier delivers clips to subscribers over the transport
// adapter: video message, MarkdownV2 caption linking the creator page, and
// an inline follow/unfollow button. Sends are paced globally to respect
// Telegram rate limits.
package notifier

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "clipbot/internal/transport"
	logx "clipbot/pkg/logx"
	"clipbot/pkg/tgui"
)

const defaultCreatorPageURL = "https://www.redgifs.com/users/%s"

type Config struct {
	// SendEvery is the minimum spacing between two deliveries (default 500ms).
	SendEvery time.Duration
	// CreatorPageURL is a format string with one %s verb for the creator name.
	CreatorPageURL string
}

func (c Config) withDefaults() Config {
	if c.SendEvery <= 0 {
		c.SendEvery = 500 * time.Millisecond
	}
	if strings.TrimSpace(c.CreatorPageURL) == "" {
		c.CreatorPageURL = defaultCreatorPageURL
	}
	return c
}

type Service struct {
	adapter kit.Adapter
	log     logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log}
	s.Apply(cfg)
	return s
}

// Apply swaps pacing at runtime (config reload).
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Every(cfg.SendEvery), 1)
	s.mu.Unlock()
}

// Deliver sends one clip to one subscriber. It blocks on the global send
// limiter first, so callers get inter-delivery pacing for free.
func (s *Service) Deliver(ctx context.Context, chatID int64, mediaURL, creator string, following bool) error {
	s.mu.Lock()
	lim := s.limiter
	cfg := s.cfg
	s.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return err
	}

	page := fmt.Sprintf(cfg.CreatorPageURL, url.PathEscape(creator))
	caption := "Clip from " + tgui.MDLink(creator, page)

	_, err := s.adapter.SendVideo(ctx, kit.ChatTarget{ChatID: chatID}, mediaURL, caption, &kit.SendOptions{
		ParseMode:          "MarkdownV2",
		ReplyMarkupAdapter: tgui.FollowMarkup(creator, following),
	})
	if err != nil {
		return fmt.Errorf("send video: %w", err)
	}
	s.log.Debug("clip delivered", logx.Int64("chat_id", chatID), logx.String("creator", creator))
	return nil
}
