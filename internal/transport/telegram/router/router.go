// Package router is the chat-facing front end: it turns incoming Telegram
// messages and inline-button callbacks into mode changes on the engine state.
package router

import (
	"context"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"

	"clipbot/internal/engine"
	kit "clipbot/internal/transport"
	logx "clipbot/pkg/logx"
	"clipbot/pkg/tgui"
)

type Router struct {
	adapter kit.Adapter
	states  *engine.StateStore
	follows *engine.Follows
	log     logx.Logger

	// pending marks chats that were asked for a creator name and whose next
	// text message is consumed as that answer.
	mu      sync.Mutex
	pending map[int64]struct{}
}

func New(adapter kit.Adapter, states *engine.StateStore, follows *engine.Follows, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		adapter: adapter,
		states:  states,
		follows: follows,
		log:     log,
		pending: map[int64]struct{}{},
	}
}

// Run consumes updates until ctx is canceled or the channel closes.
//
// Updates are handled sequentially: the pending-input handshake relies on
// "prompt, then next message is the answer" ordering per chat.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.handle(ctx, up)
		}
	}
}

func (r *Router) handle(ctx context.Context, up kit.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in update handler", logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
		}
	}()

	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.handleMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.handleCallback(ctx, up.Callback)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *kit.Message) {
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start" || text == "/help":
		r.clearPending(msg.ChatID)
		r.states.Clear(ctx, msg.ChatID)
		r.reply(ctx, chat, "Hi! Pick what you want me to send you.", tgui.ModeMenu())

	case text == tgui.BtnTrending:
		r.clearPending(msg.ChatID)
		r.states.Set(ctx, msg.ChatID, engine.State{Mode: engine.ModeTrending, Active: true})
		r.log.Info("mode selected", logx.Int64("chat_id", msg.ChatID), logx.String("mode", string(engine.ModeTrending)))
		r.reply(ctx, chat, "On it, sending trending clips.", tgui.StopMenu(false))

	case text == tgui.BtnForMe:
		r.clearPending(msg.ChatID)
		if r.follows.Len() == 0 {
			r.reply(ctx, chat, "You are not following anyone yet. Follow a creator from a clip's button first.", tgui.ModeMenu())
			return
		}
		r.states.Set(ctx, msg.ChatID, engine.State{Mode: engine.ModeFollows, Active: true})
		r.log.Info("mode selected", logx.Int64("chat_id", msg.ChatID), logx.String("mode", string(engine.ModeFollows)))
		r.reply(ctx, chat, "On it, sending clips from creators you follow.", tgui.StopMenu(true))

	case text == tgui.BtnByCreator:
		r.setPending(msg.ChatID)
		r.reply(ctx, chat, "Send me a creator name or a link to their profile.", nil)

	case text == tgui.BtnStop:
		r.clearPending(msg.ChatID)
		r.states.Clear(ctx, msg.ChatID)
		r.log.Info("subscriber stopped", logx.Int64("chat_id", msg.ChatID))
		r.reply(ctx, chat, "Stopped. Pick a mode whenever you want more.", tgui.ModeMenu())

	case text == tgui.BtnManage:
		names := r.follows.Names()
		if len(names) == 0 {
			r.reply(ctx, chat, "Nothing to manage, you are not following anyone.", r.currentMenu(msg.ChatID))
			return
		}
		r.reply(ctx, chat, "Tap a creator to unfollow.", tgui.ManageMenu(names))

	case text == tgui.BtnBack:
		r.reply(ctx, chat, "Back.", r.currentMenu(msg.ChatID))

	case strings.HasPrefix(text, tgui.UnfollowPrefix):
		name := strings.TrimSpace(strings.TrimPrefix(text, tgui.UnfollowPrefix))
		if name == "" {
			return
		}
		r.follows.Remove(ctx, name)
		r.log.Info("creator unfollowed", logx.Int64("chat_id", msg.ChatID), logx.String("creator", name))
		if rest := r.follows.Names(); len(rest) > 0 {
			r.reply(ctx, chat, "Unfollowed "+name+".", tgui.ManageMenu(rest))
		} else {
			r.reply(ctx, chat, "Unfollowed "+name+". That was the last one.", r.currentMenu(msg.ChatID))
		}

	default:
		if r.takePending(msg.ChatID) {
			r.handleCreatorInput(ctx, chat, msg.ChatID, text)
			return
		}
		r.reply(ctx, chat, "Pick a mode from the menu.", tgui.ModeMenu())
	}
}

func (r *Router) handleCreatorInput(ctx context.Context, chat kit.ChatTarget, chatID int64, text string) {
	name, ok := ParseCreatorInput(text)
	if !ok {
		r.setPending(chatID)
		r.reply(ctx, chat, "That does not look like a creator name. Try again.", nil)
		return
	}
	r.states.Set(ctx, chatID, engine.State{Mode: engine.ModeCreator, Active: true, Creator: name})
	r.log.Info("mode selected", logx.Int64("chat_id", chatID), logx.String("mode", string(engine.ModeCreator)), logx.String("creator", name))
	r.reply(ctx, chat, "On it, sending clips from "+name+".", tgui.StopMenu(false))
}

func (r *Router) handleCallback(ctx context.Context, cb *kit.Callback) {
	name, ok := tgui.ParseFollowCallback(cb.Data)
	if !ok {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	following := r.follows.Toggle(ctx, name)
	note := "Unfollowed " + name
	if following {
		note = "Following " + name
	}
	r.log.Info("follow toggled", logx.Int64("chat_id", cb.ChatID), logx.String("creator", name), logx.Bool("following", following))
	if err := r.adapter.AnswerCallback(ctx, cb.ID, note); err != nil {
		r.log.Warn("callback answer failed", logx.Err(err))
	}
	ref := kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
	if err := r.adapter.EditMarkup(ctx, ref, &kit.SendOptions{ReplyMarkupAdapter: tgui.FollowMarkup(name, following)}); err != nil {
		r.log.Warn("markup edit failed", logx.Err(err))
	}
}

// currentMenu picks the keyboard matching the subscriber's present state.
func (r *Router) currentMenu(chatID int64) any {
	st := r.states.Get(chatID)
	if !st.Active {
		return tgui.ModeMenu()
	}
	return tgui.StopMenu(st.Mode == engine.ModeFollows)
}

func (r *Router) reply(ctx context.Context, chat kit.ChatTarget, text string, markup any) {
	opt := &kit.SendOptions{DisablePreview: true}
	if markup != nil {
		opt.ReplyMarkupAdapter = markup
	}
	if _, err := r.adapter.SendText(ctx, chat, text, opt); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", chat.ChatID), logx.Err(err))
	}
}

func (r *Router) setPending(chatID int64) {
	r.mu.Lock()
	r.pending[chatID] = struct{}{}
	r.mu.Unlock()
}

func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	delete(r.pending, chatID)
	r.mu.Unlock()
}

// takePending consumes the pending-input mark, reporting whether it was set.
func (r *Router) takePending(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[chatID]; !ok {
		return false
	}
	delete(r.pending, chatID)
	return true
}

// ParseCreatorInput extracts a creator name from free-form input: a bare
// name, an @handle, or a profile URL. Names are lowercased.
func ParseCreatorInput(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if strings.Contains(text, "/") {
		if u, err := url.Parse(text); err == nil && u.Path != "" {
			text = u.Path
		}
		parts := strings.Split(text, "/")
		text = ""
		for i := len(parts) - 1; i >= 0; i-- {
			if p := strings.TrimSpace(parts[i]); p != "" {
				text = p
				break
			}
		}
	}
	text = strings.TrimPrefix(text, "@")
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" || strings.ContainsAny(text, " \t:?#&") {
		return "", false
	}
	return text, true
}
