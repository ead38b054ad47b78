package app

import (
	"strings"
	"unicode/utf8"

	"tools.zach/dev/cordpush/internal/config"
	"tools.zach/dev/cordpush/internal/discord"
	"tools.zach/dev/cordpush/internal/timer"
)

// Discord rejects presence strings outside [minTextLen, maxTextLen] runes.
const (
	minTextLen = 2
	maxTextLen = 128
)

// textPad fills single-character strings up to minTextLen. A zero-width
// space keeps the visible text unchanged.
const textPad = "\u200b"

// BuildActivity composes the SET_ACTIVITY payload for a publish. Empty form
// image fields fall back to def; empty text fields are omitted. The start
// timestamp is always set from r.
func BuildActivity(f Form, r timer.Result, def config.PresenceConfig) *discord.Activity {
	a := &discord.Activity{
		Details:    clampText(f.Details),
		State:      clampText(f.State),
		Timestamps: &discord.Timestamps{Start: r.StartEpoch},
	}

	assets := discord.Assets{
		LargeImage: firstNonBlank(f.LargeImage, def.LargeImage),
		LargeText:  clampText(firstNonBlank(f.LargeText, def.LargeText)),
		SmallImage: firstNonBlank(f.SmallImage, def.SmallImage),
		SmallText:  clampText(firstNonBlank(f.SmallText, def.SmallText)),
	}
	if assets != (discord.Assets{}) {
		a.Assets = &assets
	}

	for i, b := range def.Buttons {
		if i == config.MaxButtons {
			break
		}
		a.Buttons = append(a.Buttons, discord.Button{Label: b.Label, URL: b.URL})
	}
	return a
}

// clampText trims surrounding whitespace and fits s to Discord's length
// limits. Blank input yields "".
func clampText(s string) string {
	s = strings.TrimSpace(s)
	switch n := utf8.RuneCountInString(s); {
	case n == 0:
		return ""
	case n < minTextLen:
		return s + strings.Repeat(textPad, minTextLen-n)
	case n > maxTextLen:
		return string([]rune(s)[:maxTextLen])
	}
	return s
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
