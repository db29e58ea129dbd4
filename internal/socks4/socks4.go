// Package socks4 implements the client side of the SOCKS4 CONNECT handshake.
//
// SOCKS4 is a single round trip: the client sends a fixed-format request
// (version, command, port, IPv4 address, user-id) and the proxy replies with
// an 8-byte status response before relaying traffic.
package socks4

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	version    = 0x04
	cmdConnect = 0x01

	// Reply status codes, second byte of the 8-byte response.
	StatusGranted        = 0x5A
	StatusRejected       = 0x5B
	StatusIdentdRequired = 0x5C
	StatusIdentdMismatch = 0x5D

	replyLen = 8
)

// ErrorKind classifies a non-success handshake status.
type ErrorKind int

const (
	// KindRejected means the proxy refused the request (0x5B).
	KindRejected ErrorKind = iota
	// KindIdentdUnreachable means the proxy could not reach the client's identd (0x5C).
	KindIdentdUnreachable
	// KindIdentdMismatch means identd reported a different user-id (0x5D).
	KindIdentdMismatch
	// KindUnknown covers any status code outside the defined set.
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindIdentdUnreachable:
		return "identd unreachable"
	case KindIdentdMismatch:
		return "identd mismatch"
	default:
		return "unknown"
	}
}

// Error is a non-success SOCKS4 handshake result.
type Error struct {
	Status byte
	Kind   ErrorKind
}

func (e *Error) Error() string {
	return fmt.Sprintf("socks4: request %s (status 0x%02X)", e.Kind, e.Status)
}

// statusError maps a status code to its Error, or nil for success.
func statusError(status byte) *Error {
	switch status {
	case StatusGranted:
		return nil
	case StatusRejected:
		return &Error{Status: status, Kind: KindRejected}
	case StatusIdentdRequired:
		return &Error{Status: status, Kind: KindIdentdUnreachable}
	case StatusIdentdMismatch:
		return &Error{Status: status, Kind: KindIdentdMismatch}
	default:
		return &Error{Status: status, Kind: KindUnknown}
	}
}

// Request is a SOCKS4 CONNECT request.
type Request struct {
	IP   net.IP // destination, must be IPv4
	Port int    // destination port, 1-65535
	User string // user-id field, may be empty
}

// Encode serializes the request into its wire format:
// version(1), command(1), port(2 big-endian), IPv4(4), user-id(N), NUL(1).
func (r *Request) Encode() ([]byte, error) {
	ip4 := r.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("socks4: %s is not an IPv4 address", r.IP)
	}
	if r.Port < 1 || r.Port > 65535 {
		return nil, fmt.Errorf("socks4: port %d out of range", r.Port)
	}

	buf := make([]byte, 0, 9+len(r.User))
	buf = append(buf, version, cmdConnect)
	buf = binary.BigEndian.AppendUint16(buf, uint16(r.Port))
	buf = append(buf, ip4...)
	buf = append(buf, r.User...)
	buf = append(buf, 0x00)
	return buf, nil
}

// Resolve looks up host and returns its first IPv4 address.
// SOCKS4 carries IPv4 addresses only, so other records are skipped.
func Resolve(ctx context.Context, host string) (net.IP, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("socks4: resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("socks4: no IPv4 address for %s", host)
}

// Dial connects to the proxy at proxyAddr and performs a CONNECT handshake
// for host:port. On success the returned connection is the relay to the
// destination. On any failure the proxy connection is closed.
func Dial(ctx context.Context, proxyAddr, user, host string, port int) (net.Conn, error) {
	ip, err := Resolve(ctx, host)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("socks4: dial proxy %s: %w", proxyAddr, err)
	}

	if err := handshake(ctx, conn, &Request{IP: ip, Port: port, User: user}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// handshake writes the request and reads the 8-byte reply over conn.
// Cancelling ctx interrupts a blocked write or read.
func handshake(ctx context.Context, conn net.Conn, req *Request) error {
	payload, err := req.Encode()
	if err != nil {
		return err
	}

	// Interrupt pending I/O if the context is cancelled mid-handshake.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Now())
		case <-watchDone:
		}
	}()

	if _, err := conn.Write(payload); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("socks4: write request: %w", err)
	}

	reply := make([]byte, replyLen)
	if _, err := io.ReadFull(conn, reply); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("socks4: read reply: %w", err)
	}

	if serr := statusError(reply[1]); serr != nil {
		return serr
	}
	return nil
}
