// config.go defines the badge set read from assets/badges.json. Each badge
// becomes one PNG named after the Discord asset key it will be uploaded as.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"unicode/utf8"
)

// minAssetSize is the smallest square Discord accepts for Rich Presence art.
const minAssetSize = 512

// maxBadgeText bounds the characters drawn on a badge.
const maxBadgeText = 2

// assetKeyRe matches the lowercase keys the developer portal assigns.
var assetKeyRe = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// Style holds the visual styling of a badge.
type Style struct {
	// BgColor is the background color as #RGB or #RRGGBB.
	BgColor string `json:"bg_color,omitempty"`
	// FgColor is the text color as #RGB or #RRGGBB.
	FgColor string `json:"fg_color,omitempty"`
	// Size is the square image dimension in pixels.
	Size int `json:"size,omitempty"`
	// FontSize is the font size in points at 72 DPI.
	FontSize int `json:"font_size,omitempty"`
}

// merge applies non-zero fields from src onto s.
func (s *Style) merge(src Style) {
	if src.BgColor != "" {
		s.BgColor = src.BgColor
	}
	if src.FgColor != "" {
		s.FgColor = src.FgColor
	}
	if src.Size != 0 {
		s.Size = src.Size
	}
	if src.FontSize != 0 {
		s.FontSize = src.FontSize
	}
}

// Badge is one presence asset.
type Badge struct {
	// Text is drawn centered. Empty uses the key's first letter.
	Text string `json:"text,omitempty"`
	Style
}

// BadgeSet is the top-level structure of badges.json.
type BadgeSet struct {
	// Font is a local font file path relative to the repo root.
	Font string `json:"font,omitempty"`
	// FontFallback is a Google Fonts spec (e.g. "google:Inter:800") used when
	// Font is unset or missing.
	FontFallback string `json:"font_fallback,omitempty"`
	// Defaults is inherited by every badge.
	Defaults Style `json:"defaults"`
	// Badges maps asset keys to badges.
	Badges map[string]Badge `json:"badges"`
}

// Resolved returns the effective style and text for key.
func (b *BadgeSet) Resolved(key string) (Style, string) {
	style := b.Defaults
	badge := b.Badges[key]
	style.merge(badge.Style)
	text := badge.Text
	if text == "" {
		r, _ := utf8.DecodeRuneInString(key)
		text = string(r)
	}
	return style, text
}

// Validate checks every key and resolved style before anything is rendered.
func (b *BadgeSet) Validate() error {
	if len(b.Badges) == 0 {
		return fmt.Errorf("no badges defined")
	}
	for key := range b.Badges {
		if !assetKeyRe.MatchString(key) {
			return fmt.Errorf("badge %q: asset keys are 1-32 of a-z, 0-9, _ and -", key)
		}
		style, text := b.Resolved(key)
		if n := utf8.RuneCountInString(text); n > maxBadgeText {
			return fmt.Errorf("badge %q: text %q is %d characters, max %d", key, text, n, maxBadgeText)
		}
		if style.Size < minAssetSize {
			return fmt.Errorf("badge %q: size %d is below Discord's minimum of %d", key, style.Size, minAssetSize)
		}
		if style.FontSize <= 0 {
			return fmt.Errorf("badge %q: font_size must be positive", key)
		}
	}
	return nil
}

// LoadBadgeSet reads and validates a badges.json file.
func LoadBadgeSet(path string) (*BadgeSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var set BadgeSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}
