// Package update checks for newer releases of cordpush via the release
// manifest published in the source repository.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"tools.zach/dev/cordpush/internal/paths"
)

// ErrNoSource is returned when no manifest URL could be determined.
var ErrNoSource = errors.New("no release source configured")

var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

// getHTTPClient returns the shared retryable HTTP client.
func getHTTPClient() *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.RetryWaitMax = 2 * time.Second
		httpClient.HTTPClient.Timeout = 5 * time.Second
		httpClient.Logger = nil
	})
	return httpClient
}

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Result describes one version check.
type Result struct {
	Current string `json:"current"`
	Latest  string `json:"latest"`
	// Newer is true when Latest is a later release than Current.
	Newer bool `json:"newer"`
}

// Checker fetches a release manifest. The zero value uses the repository's
// manifest and the shared client.
type Checker struct {
	// URL overrides the manifest location.
	URL string
	// Client overrides the HTTP client.
	Client *retryablehttp.Client
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Check compares current with the latest released version.
func (c *Checker) Check(ctx context.Context, current string) (Result, error) {
	res := Result{Current: current}
	url := c.URL
	if url == "" {
		url = RawURL(paths.ReleaseManifest)
	}
	if url == "" {
		return res, ErrNoSource
	}
	client := c.Client
	if client == nil {
		client = getHTTPClient()
	}

	latest, err := fetchLatest(ctx, client, url)
	if err != nil {
		return res, err
	}
	res.Latest = latest
	res.Newer = latest != "" && semverLess(current, latest)
	return res, nil
}

// Check runs a default [Checker]. Use it for the startup notice.
func Check(ctx context.Context, current string) (Result, error) {
	return (&Checker{}).Check(ctx, current)
}

// Notify runs [Check] and logs when a newer version exists. Failures are
// logged at debug level and otherwise ignored.
func Notify(ctx context.Context, log *slog.Logger, current string) {
	res, err := Check(ctx, current)
	if err != nil {
		log.Debug("version check failed", "error", err)
		return
	}
	if res.Newer {
		log.Info("new version available", "current", res.Current, "latest", res.Latest)
	}
}

// ///////////////////////////////////////////////
// Internal helpers
// ///////////////////////////////////////////////

// fetchLatest downloads the release manifest and returns the version stored
// under the "." key, which is the latest stable release.
func fetchLatest(ctx context.Context, client *retryablehttp.Client, url string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	return ParseManifest(body)
}

// ParseManifest returns the root version recorded in a release manifest:
// the value under the "." key. A manifest without one yields "".
func ParseManifest(data []byte) (string, error) {
	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", fmt.Errorf("parsing manifest: %w", err)
	}
	return manifest["."], nil
}

// semverLess returns true if a < b using numeric comparison of
// major.minor.patch. A pre-release sorts before the same release.
func semverLess(a, b string) bool {
	pa := parseSemver(a)
	pb := parseSemver(b)
	if pa == nil || pb == nil {
		return false
	}
	for i := range 3 {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return hasPreRelease(a) && !hasPreRelease(b)
}

func hasPreRelease(s string) bool {
	return strings.Contains(strings.TrimPrefix(s, "v"), "-")
}

// parseSemver splits "v1.2.3" or "0.1.0-dev" into [major, minor, patch].
// It returns nil for anything else.
func parseSemver(s string) []int {
	s = strings.TrimPrefix(s, "v")
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return nil
	}
	result := make([]int, 3)
	for i, p := range parts {
		if idx := strings.IndexAny(p, "-+"); idx >= 0 {
			p = p[:idx]
		}
		if p == "" {
			return nil
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return nil
			}
			n = n*10 + int(c-'0')
		}
		result[i] = n
	}
	return result
}
