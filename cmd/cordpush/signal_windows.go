//go:build windows

package main

import (
	"os"
	"os/signal"
)

// signalChannel returns a buffered channel that receives os.Interrupt. The
// runtime maps CTRL_BREAK and console close to it; there is no SIGTERM.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch
}
