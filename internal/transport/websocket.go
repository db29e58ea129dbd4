package transport

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketTransport wraps a WebSocket connection for servers that expose
// their line protocol over WebSocket text messages.
type WebSocketTransport struct {
	conn    *websocket.Conn
	readBuf []string   // Buffer for lines when a message contains multiple lines
	mu      sync.Mutex // Protects readBuf
}

// DialWebSocket connects to the given ws:// or wss:// URL.
func DialWebSocket(ctx context.Context, url string) (*WebSocketTransport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return NewWebSocketTransport(conn), nil
}

// NewWebSocketTransport wraps an established WebSocket connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{
		conn:    conn,
		readBuf: make([]string, 0),
	}
}

// ReadLine reads a line from the WebSocket connection (blocking).
// If a message contains multiple lines, they are buffered and returned one at
// a time. Blank lines are delivered as messages, matching the TCP transport;
// only a trailing newline terminates the final line rather than opening an
// empty one. A normal close from the peer is reported as io.EOF.
func (t *WebSocketTransport) ReadLine() (string, error) {
	for {
		t.mu.Lock()
		if len(t.readBuf) > 0 {
			line := t.readBuf[0]
			t.readBuf = t.readBuf[1:]
			t.mu.Unlock()
			return line, nil
		}
		t.mu.Unlock()

		_, message, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}

		// Split by newlines in case the server batches lines in one message
		lines := strings.Split(string(message), "\n")
		if lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		for i, line := range lines {
			lines[i] = strings.TrimSuffix(line, "\r")
		}

		if len(lines) == 0 {
			// Empty message, read the next one
			continue
		}

		t.mu.Lock()
		if len(lines) > 1 {
			t.readBuf = append(t.readBuf, lines[1:]...)
		}
		t.mu.Unlock()

		return lines[0], nil
	}
}

// WriteLine writes a message to the server as a self-contained text message.
func (t *WebSocketTransport) WriteLine(message string) error {
	return t.conn.WriteMessage(websocket.TextMessage, []byte(message))
}

// Close closes the WebSocket connection.
func (t *WebSocketTransport) Close() error {
	return t.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (t *WebSocketTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
