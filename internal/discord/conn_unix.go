// conn_unix.go implements Discord IPC socket discovery for Unix-like systems
// (Linux, macOS, FreeBSD). It probes XDG_RUNTIME_DIR, TMPDIR, /tmp, Snap and
// Flatpak socket paths.

//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// ///////////////////////////////////////////////
// Connection
// ///////////////////////////////////////////////

// socketPaths lists every candidate IPC socket in probe order.
func socketPaths() []string {
	var paths []string

	// Socket name prefixes for Discord variants (stable, Canary, PTB).
	variants := []string{"discord-ipc", "discordcanary-ipc", "discordptb-ipc"}

	// Runtime directories, most specific first. macOS puts the socket in TMPDIR.
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := strings.TrimRight(os.Getenv(env), "/"); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	dirs = append(dirs, "/tmp")

	for _, dir := range dirs {
		for _, v := range variants {
			for i := range maxIPCSlots {
				paths = append(paths, fmt.Sprintf("%s/%s-%d", dir, v, i))
			}
		}
	}

	uid := strconv.Itoa(os.Getuid())
	for _, sd := range []string{"snap.discord", "snap.discord-canary", "snap.discord-ptb"} {
		for i := range maxIPCSlots {
			paths = append(paths, fmt.Sprintf("/run/user/%s/%s/discord-ipc-%d", uid, sd, i))
		}
	}

	for _, app := range []string{
		"com.discordapp.Discord",
		"com.discordapp.DiscordCanary",
		"com.discordapp.DiscordPTB",
	} {
		for i := range maxIPCSlots {
			paths = append(paths, fmt.Sprintf("/run/user/%s/app/%s/discord-ipc-%d", uid, app, i))
		}
	}

	return append(paths, wslSocketPaths()...)
}

// connectToDiscord tries each known IPC socket path and returns the first
// successful connection.
func connectToDiscord(timeout time.Duration) (net.Conn, error) {
	for _, path := range socketPaths() {
		if conn, err := dialPath(path, timeout); err == nil {
			return conn, nil
		}
	}

	if isWSL() {
		return nil, fmt.Errorf("%w: running under WSL, a socat + npiperelay.exe relay is required", ErrIPCNotAvailable)
	}
	return nil, ErrIPCNotAvailable
}

// dialPath connects to a single Unix socket.
func dialPath(path string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIPCNotAvailable, err)
	}
	return conn, nil
}
