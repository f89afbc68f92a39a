package tgui

import "strings"

// MarkdownV2 special characters per the Bot API spec.
const mdV2Specials = `_*[]()~` + "`" + `>#+-=|{}.!`

// EscMD escapes text for Telegram ParseMode="MarkdownV2".
// Use for any provider-derived text (creator names) embedded in captions.
func EscMD(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(mdV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MDLink builds a MarkdownV2 link with escaped label text.
// The URL is used verbatim; pass only URLs you constructed yourself.
func MDLink(text, url string) string {
	return "[" + EscMD(text) + "](" + url + ")"
}
