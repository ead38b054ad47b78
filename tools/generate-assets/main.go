// generate-assets renders placeholder Rich Presence art for cordpush.
//
// It reads assets/badges.json and writes one square PNG per badge, named
// after the asset key to upload it as in the Discord developer portal
// (Rich Presence > Art Assets). Set presence.large_image or
// presence.small_image in config.toml to the same key.
//
// Usage:
//
//	cd tools/generate-assets && go run .
//	cd tools/generate-assets && go run . -badges ../../assets/badges.json -out ../../assets/discord
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/image/font/opentype"
)

func main() {
	badgesFile := flag.String("badges", "../../assets/badges.json", "Path to badges.json")
	outDir := flag.String("out", "../../assets/discord", "Output directory for {key}.png files")
	flag.Parse()

	if err := run(context.Background(), *badgesFile, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run renders every badge in badgesFile into outDir. Fonts resolve relative
// to the repo root, taken as the parent of the badges file's directory.
func run(ctx context.Context, badgesFile, outDir string) error {
	set, err := LoadBadgeSet(badgesFile)
	if err != nil {
		return fmt.Errorf("load badges: %w", err)
	}
	repoRoot, err := filepath.Abs(filepath.Join(filepath.Dir(badgesFile), ".."))
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}

	fontData, err := resolveFont(ctx, set, repoRoot, filepath.Join(repoRoot, "assets", "fonts", ".cache"))
	if err != nil {
		return err
	}
	otFont, err := opentype.Parse(fontData)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}

	n, err := renderAll(set, otFont, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("Done. Generated %d assets in %s.\n", n, outDir)
	return nil
}

// renderAll writes {key}.png for each badge in key order.
func renderAll(set *BadgeSet, otFont *opentype.Font, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	keys := make([]string, 0, len(set.Badges))
	for k := range set.Badges {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		style, text := set.Resolved(key)
		data, err := RenderBadge(style, text, otFont)
		if err != nil {
			return 0, fmt.Errorf("render %s: %w", key, err)
		}
		path := filepath.Join(outDir, key+".png")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return 0, fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("  %s.png (%s)\n", key, text)
	}
	return len(keys), nil
}
