// Package tgui provides small Telegram UI helpers:
//   - MarkdownV2 escaping for provider-derived text (creator names)
//   - Inline follow/unfollow markup and callback data helpers
//   - Reply keyboard builders for the mode menu
package tgui
