// conn_windows.go implements Discord IPC socket discovery for Windows.
// It connects via named pipes (\\.\pipe\discord-ipc-N) using the go-winio
// library.

//go:build windows

package discord

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// ///////////////////////////////////////////////
// Connection
// ///////////////////////////////////////////////

// connectToDiscord tries each Discord named pipe slot and returns the first
// successful connection.
func connectToDiscord(timeout time.Duration) (net.Conn, error) {
	for i := range maxIPCSlots {
		if conn, err := dialPath(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), timeout); err == nil {
			return conn, nil
		}
	}
	return nil, ErrIPCNotAvailable
}

// dialPath connects to a single named pipe.
func dialPath(path string, timeout time.Duration) (net.Conn, error) {
	conn, err := winio.DialPipe(path, &timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIPCNotAvailable, err)
	}
	return conn, nil
}
