package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	kit "clipbot/internal/transport"
	logx "clipbot/pkg/logx"
)

type sentVideo struct {
	chatID  int64
	url     string
	caption string
	opt     *kit.SendOptions
}

type fakeAdapter struct {
	mu     sync.Mutex
	videos []sentVideo
	err    error
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, _ string, _ *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) SendVideo(_ context.Context, to kit.ChatTarget, videoURL, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.videos = append(f.videos, sentVideo{chatID: to.ChatID, url: videoURL, caption: caption, opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.videos)}, nil
}

func (f *fakeAdapter) EditMarkup(context.Context, kit.MessageRef, *kit.SendOptions) error { return nil }
func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error               { return nil }

func TestDeliverBuildsCaptionAndMarkup(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	s := New(Config{SendEvery: time.Millisecond}, ad, logx.Logger{})

	err := s.Deliver(context.Background(), 7, "https://cdn.example/a.mp4", "ann_x", true)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(ad.videos) != 1 {
		t.Fatalf("videos = %d, want 1", len(ad.videos))
	}
	v := ad.videos[0]
	if v.chatID != 7 || v.url != "https://cdn.example/a.mp4" {
		t.Fatalf("video = %+v", v)
	}
	// Creator name is MarkdownV2-escaped and linked to the creator page.
	if !strings.Contains(v.caption, `ann\_x`) {
		t.Fatalf("caption = %q, want escaped creator name", v.caption)
	}
	if !strings.Contains(v.caption, "https://www.redgifs.com/users/ann_x") {
		t.Fatalf("caption = %q, want creator page link", v.caption)
	}
	if v.opt == nil || v.opt.ParseMode != "MarkdownV2" {
		t.Fatalf("opt = %+v, want MarkdownV2", v.opt)
	}
	if v.opt.ReplyMarkupAdapter == nil {
		t.Fatal("want follow button markup")
	}
}

func TestDeliverPacesSends(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	s := New(Config{SendEvery: 40 * time.Millisecond}, ad, logx.Logger{})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := s.Deliver(ctx, 7, "https://cdn.example/a.mp4", "ann", false); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}
	// Burst of 1, then two waits of ~40ms each.
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Fatalf("3 sends took %v, want pacing of at least ~80ms", elapsed)
	}
}

func TestDeliverPropagatesSendError(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{err: errors.New("forbidden: bot was blocked")}
	s := New(Config{SendEvery: time.Millisecond}, ad, logx.Logger{})

	if err := s.Deliver(context.Background(), 7, "https://cdn.example/a.mp4", "ann", false); err == nil {
		t.Fatal("want send error")
	}
}

func TestDeliverHonorsContextCancel(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	s := New(Config{SendEvery: time.Hour}, ad, logx.Logger{})
	ctx := context.Background()

	// Consume the initial burst token, then cancel while waiting.
	if err := s.Deliver(ctx, 7, "https://cdn.example/a.mp4", "ann", false); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := s.Deliver(cctx, 7, "https://cdn.example/b.mp4", "ann", false); err == nil {
		t.Fatal("want context error while rate limited")
	}
	if len(ad.videos) != 1 {
		t.Fatalf("videos = %d, want 1", len(ad.videos))
	}
}
