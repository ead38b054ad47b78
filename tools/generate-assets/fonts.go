// fonts.go resolves the badge font: a local file first, then a Google Fonts
// download cached on disk. WOFF2 data is converted to SFNT for opentype.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tdewolff/font"
)

// fontURLRe extracts the font file URL from the Google Fonts CSS response,
// e.g. url(https://fonts.gstatic.com/s/inter/v18/xxx.woff2).
var fontURLRe = regexp.MustCompile(`url\((https://fonts\.gstatic\.com/[^)]+)\)`)

// cssEndpoint is the Google Fonts CSS API. Tests point it at a local server.
var cssEndpoint = "https://fonts.googleapis.com/css2"

func newHTTPClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 15 * time.Second
	c.Logger = nil
	return c
}

// ParseGoogleFontSpec splits "google:Family:Weight".
func ParseGoogleFontSpec(spec string) (family, weight string, ok bool) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] != "google" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// resolveFont loads set.Font relative to repoRoot, else downloads
// set.FontFallback into cacheDir.
func resolveFont(ctx context.Context, set *BadgeSet, repoRoot, cacheDir string) ([]byte, error) {
	if set.Font != "" {
		path := filepath.Join(repoRoot, set.Font)
		if data, err := os.ReadFile(path); err == nil {
			fmt.Printf("font: %s (local)\n", set.Font)
			return toSFNT(path, data)
		}
	}
	if set.FontFallback != "" {
		fmt.Printf("font: %s (Google Fonts)\n", set.FontFallback)
		return FetchGoogleFont(ctx, newHTTPClient(), set.FontFallback, cacheDir)
	}
	return nil, fmt.Errorf(`no font available: set "font" or "font_fallback" in badges.json`)
}

// FetchGoogleFont downloads spec from Google Fonts, caching the converted
// SFNT bytes in cacheDir.
func FetchGoogleFont(ctx context.Context, client *retryablehttp.Client, spec, cacheDir string) ([]byte, error) {
	family, weight, ok := ParseGoogleFontSpec(spec)
	if !ok {
		return nil, fmt.Errorf("invalid google font spec %q: expected google:FAMILY:WEIGHT", spec)
	}

	cacheFile := filepath.Join(cacheDir, fmt.Sprintf("%s-%s.ttf", strings.ReplaceAll(family, " ", "_"), weight))
	if data, err := os.ReadFile(cacheFile); err == nil {
		return data, nil
	}

	cssURL := fmt.Sprintf("%s?family=%s:wght@%s", cssEndpoint, url.QueryEscape(family), weight)
	css, err := get(ctx, client, cssURL, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("fetch font CSS: %w", err)
	}
	m := fontURLRe.FindSubmatch(css)
	if m == nil {
		return nil, fmt.Errorf("no font URL in Google Fonts CSS for %s wght@%s", family, weight)
	}
	fontURL := string(m[1])

	data, err := get(ctx, client, fontURL, 10<<20)
	if err != nil {
		return nil, fmt.Errorf("download font: %w", err)
	}
	data, err = toSFNT(fontURL, data)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cacheDir, 0o755); err == nil {
		if err := os.WriteFile(cacheFile, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to cache font: %v\n", err)
		}
	}
	return data, nil
}

// get fetches u and returns at most limit bytes of the body.
func get(ctx context.Context, client *retryablehttp.Client, u string, limit int64) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	// A modern user agent makes Google serve WOFF2, which toSFNT converts.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// toSFNT converts WOFF2 data, detected by extension or magic bytes, and
// returns anything else unchanged.
func toSFNT(name string, data []byte) ([]byte, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".woff2") && !strings.HasPrefix(string(data), "wOF2") {
		return data, nil
	}
	sfnt, err := font.ToSFNT(data)
	if err != nil {
		return nil, fmt.Errorf("convert woff2 to sfnt: %w", err)
	}
	return sfnt, nil
}
