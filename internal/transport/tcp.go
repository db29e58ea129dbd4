package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
)

// TCPTransport wraps a raw TCP connection for telnet-style line communication.
type TCPTransport struct {
	conn    net.Conn
	scanner *bufio.Scanner
	writer  *bufio.Writer
}

// DialTCP opens a TCP connection to address and wraps it in a TCPTransport.
// The context governs DNS resolution and the TCP handshake.
func DialTCP(ctx context.Context, address string) (*TCPTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewTCPTransport(conn), nil
}

// NewTCPTransport wraps an already-established connection, such as the
// stream handed back by a successful proxy handshake.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{
		conn:    conn,
		scanner: bufio.NewScanner(conn),
		writer:  bufio.NewWriter(conn),
	}
}

// ReadLine reads a line from the connection (blocking).
// Returns the line without the trailing newline, io.EOF on a clean close.
func (t *TCPTransport) ReadLine() (string, error) {
	if t.scanner.Scan() {
		// Servers speaking telnet-style protocols terminate with \r\n.
		return strings.TrimSuffix(t.scanner.Text(), "\r"), nil
	}
	if err := t.scanner.Err(); err != nil {
		return "", err
	}
	// Scanner finished without error means the peer closed the connection
	return "", io.EOF
}

// WriteLine writes a message followed by a newline to the server.
func (t *TCPTransport) WriteLine(message string) error {
	if _, err := t.writer.WriteString(message + "\n"); err != nil {
		return err
	}
	return t.writer.Flush()
}

// Close closes the underlying connection.
func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (t *TCPTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
