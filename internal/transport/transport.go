// Package transport provides line-oriented connection wrappers for raw TCP
// and WebSocket endpoints behind a single interface.
package transport

// Transport abstracts the connection layer so the client can speak the same
// line protocol over raw TCP or WebSocket transparently.
type Transport interface {
	// ReadLine blocks until a complete line is received (without newline).
	// A blank line is a valid message. Returns io.EOF when the peer closes
	// the connection cleanly.
	ReadLine() (string, error)

	// WriteLine sends a line to the server.
	// For TCP, this appends a newline. For WebSocket, it sends as a message.
	WriteLine(message string) error

	// Close closes the connection. Safe to call more than once.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
