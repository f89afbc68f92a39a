package tgui

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Reply keyboard labels. The router matches incoming text against these,
// so they double as the front-end "protocol".
const (
	BtnTrending  = "🎉 Trending"
	BtnForMe     = "💖 For me"
	BtnByCreator = "👤 By creator"
	BtnStop      = "⏹ Stop"
	BtnManage    = "✖️ Manage follows"
	BtnBack      = "🔙 Back"

	UnfollowPrefix = "✖️ Unfollow "
)

// FollowCallbackPrefix prefixes the inline follow-toggle callback data;
// the remainder is the creator name.
const FollowCallbackPrefix = "sub_"

// FollowCallbackData builds the callback payload for a creator's toggle button.
func FollowCallbackData(creator string) string {
	return FollowCallbackPrefix + creator
}

// ParseFollowCallback extracts the creator from follow-toggle callback data.
// telebot prefixes callback data with "\f" for attached buttons; both raw
// and prefixed forms are accepted.
func ParseFollowCallback(data string) (string, bool) {
	data = strings.TrimPrefix(strings.TrimSpace(data), "\f")
	if !strings.HasPrefix(data, FollowCallbackPrefix) {
		return "", false
	}
	creator := strings.TrimPrefix(data, FollowCallbackPrefix)
	if creator == "" {
		return "", false
	}
	return creator, true
}

// FollowMarkup returns the single inline follow/unfollow button shown
// under every delivered clip.
func FollowMarkup(creator string, following bool) *tele.ReplyMarkup {
	label := "❤️ Follow"
	if following {
		label = "💔 Unfollow"
	}
	m := &tele.ReplyMarkup{}
	// Empty unique keeps the callback data raw so the router can read the
	// creator name back out of it.
	btn := m.Data(label, "", FollowCallbackData(creator))
	m.Inline(m.Row(btn))
	return m
}

// ModeMenu is the idle-state reply keyboard.
func ModeMenu() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	m.Reply(
		m.Row(m.Text(BtnTrending), m.Text(BtnForMe)),
		m.Row(m.Text(BtnByCreator)),
	)
	return m
}

// StopMenu is shown while a mode is active. withManage adds the follow
// management entry (follows mode).
func StopMenu(withManage bool) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	if withManage {
		m.Reply(m.Row(m.Text(BtnStop), m.Text(BtnManage)))
	} else {
		m.Reply(m.Row(m.Text(BtnStop)))
	}
	return m
}

// ManageMenu lists one unfollow entry per followed creator.
func ManageMenu(creators []string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := make([]tele.Row, 0, len(creators)+1)
	for _, c := range creators {
		rows = append(rows, m.Row(m.Text(UnfollowPrefix+c)))
	}
	rows = append(rows, m.Row(m.Text(BtnBack)))
	m.Reply(rows...)
	return m
}
