package client

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConnected is returned by Send when no connection has been established.
var ErrNotConnected = errors.New("client is not connected")

// ErrAlreadyConnected is returned by Connect when the client has left the
// unconnected state. A client is single-use: once disconnected it must be
// replaced, not reconnected.
var ErrAlreadyConnected = errors.New("client already connected or disconnected")

// ConnectionError wraps a DNS or TCP failure during connect. The client is
// left unconnected and may retry with a new connect call.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransportFault is an unexpected I/O failure on an otherwise-live
// connection. Faults caused by the transport already being torn down are
// classified by cancellation state and never surface as TransportFault.
type TransportFault struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportFault) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportFault) Unwrap() error {
	return e.Err
}

// FloodBlockedError is returned by Send when the flood guard refuses a
// message. The message was not written; Wait hints when a retry may succeed.
type FloodBlockedError struct {
	Reason string
	Wait   time.Duration
}

func (e *FloodBlockedError) Error() string {
	return fmt.Sprintf("send blocked: %s (retry in %s)", e.Reason, e.Wait.Round(time.Second))
}
