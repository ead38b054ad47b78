package app

import (
	"errors"
	"fmt"
)

// ErrBlankIdentity is returned by an explicit connect with an empty or
// whitespace-only identity. No I/O is attempted.
var ErrBlankIdentity = errors.New("identity is blank")

// ErrNotConnected is returned by actions that need a live connection when
// none could be established.
var ErrNotConnected = errors.New("not connected to discord")

// ConnectionError is a transport-level failure of a connect, update, clear
// or close operation.
type ConnectionError struct {
	// Op is the failed operation: "connect", "update", "clear" or "close".
	Op string
	// Identity is the application ID the operation ran under.
	Identity string
	// Err is the underlying transport error.
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s (identity %s): %v", e.Op, e.Identity, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
