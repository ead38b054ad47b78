// render.go draws a badge: centered text on a solid square.

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// RenderBadge renders text centered on a style.Size square and returns PNG
// bytes. Letters are upper-cased.
func RenderBadge(style Style, text string, otFont *opentype.Font) ([]byte, error) {
	text = strings.ToUpper(text)
	if text == "" {
		return nil, fmt.Errorf("empty badge text")
	}

	bg, err := ParseHexColor(style.BgColor)
	if err != nil {
		return nil, fmt.Errorf("bg_color: %w", err)
	}
	fg, err := ParseHexColor(style.FgColor)
	if err != nil {
		return nil, fmt.Errorf("fg_color: %w", err)
	}

	face, err := opentype.NewFace(otFont, &opentype.FaceOptions{
		Size:    float64(style.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	// Center on the ink bounds, not the advance, so the glyphs sit visually
	// in the middle.
	bounds, _ := font.BoundString(face, text)
	w := (bounds.Max.X - bounds.Min.X).Ceil()
	h := (bounds.Max.Y - bounds.Min.Y).Ceil()
	if w > style.Size || h > style.Size {
		return nil, fmt.Errorf("text %q is %dx%d px, larger than the %d px badge; lower font_size", text, w, h, style.Size)
	}
	origin := fixed.P((style.Size-w)/2-bounds.Min.X.Floor(), (style.Size-h)/2-bounds.Min.Y.Floor())

	img := image.NewNRGBA(image.Rect(0, 0, style.Size, style.Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(fg), Face: face, Dot: origin}
	d.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
