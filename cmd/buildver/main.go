// Command buildver prints the cordpush version string passed to
// -ldflags "-X main.version=...".
//
// Output depends on git state:
//
//	No tags, clean:     0.1.0-dev+05ffee5
//	No tags, dirty:     0.1.0-dev+05ffee5.dirty
//	On tag v0.1.0:      0.1.0
//	Dirty tag:          0.1.0-dirty
//	3 past v0.1.0:      0.1.0-dev.3+g1234567
//	Same but dirty:     0.1.0-dev.3+g1234567.dirty
//
// The untagged base comes from the release manifest, the same file the
// `cordpush version --check` command reads from the repository.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"tools.zach/dev/cordpush/internal/paths"
	"tools.zach/dev/cordpush/internal/update"
)

// fallbackBase is used when the manifest is missing or has no root entry.
const fallbackBase = "0.0.0"

func main() {
	fmt.Print(buildVersion(git, manifestBase(paths.ReleaseManifest)))
}

// gitRunner runs a git subcommand and returns trimmed stdout.
type gitRunner func(args ...string) (string, error)

func git(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	return strings.TrimSpace(string(out)), err
}

// buildVersion prefers `git describe` against v-prefixed tags and falls back
// to base plus the short commit hash.
func buildVersion(run gitRunner, base string) string {
	if desc, err := run("describe", "--tags", "--match", "v*", "--dirty"); err == nil && desc != "" {
		return formatTaggedVersion(desc)
	}

	hash, err := run("rev-parse", "--short=7", "HEAD")
	if err != nil || hash == "" {
		return base + "-dev"
	}
	meta := hash
	if status, err := run("status", "--porcelain"); err == nil && status != "" {
		meta += ".dirty"
	}
	return base + "-dev+" + meta
}

// formatTaggedVersion turns `git describe` output such as
// "v0.1.0-3-g1234567-dirty" into SemVer: the "v" goes, "<N>-g<hash>" becomes
// "-dev.<N>+g<hash>" and a dirty tree is marked in the build metadata.
func formatTaggedVersion(desc string) string {
	clean, dirty := strings.CutSuffix(desc, "-dirty")
	clean = strings.TrimPrefix(clean, "v")

	if rest, hash, ok := cutLast(clean, "-"); ok && strings.HasPrefix(hash, "g") {
		if tag, n, ok := cutLast(rest, "-"); ok && isDigits(n) {
			meta := hash
			if dirty {
				meta += ".dirty"
			}
			return fmt.Sprintf("%s-dev.%s+%s", tag, n, meta)
		}
	}

	if dirty {
		return clean + "-dirty"
	}
	return clean
}

// manifestBase reads the root version from the release manifest at path.
func manifestBase(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallbackBase
	}
	v, err := update.ParseManifest(data)
	if err != nil || v == "" {
		return fallbackBase
	}
	return v
}

func cutLast(s, sep string) (before, after string, ok bool) {
	i := strings.LastIndex(s, sep)
	if i <= 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
