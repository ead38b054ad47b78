package update

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"sync"
	"time"
)

// Set at build time via:
//
//	-X tools.zach/dev/cordpush/internal/update.ldOwner=...
//	-X tools.zach/dev/cordpush/internal/update.ldRepo=...
var (
	ldOwner string
	ldRepo  string
)

var (
	sourceOnce sync.Once
	owner      string
	repo       string
)

// githubRemoteRe extracts owner and repo from GitHub remote URLs.
// Matches both HTTPS (github.com/) and SSH (github.com:) formats.
var githubRemoteRe = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/.\s]+)`)

// resolveSource fills owner and repo once. Build-time ldflags win; otherwise
// the local git remote origin is consulted.
func resolveSource() {
	sourceOnce.Do(func() {
		if ldOwner != "" && ldRepo != "" {
			owner, repo = ldOwner, ldRepo
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
		if err != nil {
			slog.Debug("update: ldflags not set and git remote unavailable", "error", err)
			return
		}
		owner, repo = parseRemote(string(out))
	})
}

// parseRemote returns the owner and repo of a GitHub remote URL, or empty
// strings when url is not a GitHub remote.
func parseRemote(url string) (string, string) {
	m := githubRemoteRe.FindStringSubmatch(url)
	if len(m) != 3 {
		return "", ""
	}
	return m[1], m[2]
}

// RawURL returns the raw GitHub URL for a file on the main branch, or "" when
// the repository could not be determined.
func RawURL(path string) string {
	resolveSource()
	return rawURL(owner, repo, path)
}

func rawURL(owner, repo, path string) string {
	if owner == "" || repo == "" {
		return ""
	}
	return "https://raw.githubusercontent.com/" + owner + "/" + repo + "/main/" + path
}
