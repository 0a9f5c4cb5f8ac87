// FILE: transport_tls.go
// Package main – TLS transport (spec §4.A).
//
// Go already has the capability §4.A wants: a non-blocking contract where
// read/write return bytes-copied-so-far instead of blocking forever. This
// is expressed idiomatically via crypto/tls + per-call SetReadDeadline /
// SetWriteDeadline rather than a hand-rolled socket reactor — grounded on
// the absence of any raw-socket code anywhere in the teacher (it only ever
// touches TLS through net/http's Transport).
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// TLSConn wraps a *tls.Conn with the §4.A read/write/shutdown contract.
type TLSConn struct {
	conn *tls.Conn
}

// DialTLS performs DNS, TCP connect, and TLS handshake with SNI set from
// host. The deadline bounds the whole connect+handshake sequence.
func DialTLS(ctx context.Context, host string, port int) (*TLSConn, error) {
	d := &net.Dialer{}
	raw, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("tls dial: %w", err)
	}
	tlsConn := tls.Client(raw, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if dl, ok := ctx.Deadline(); ok {
		_ = tlsConn.SetDeadline(dl)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = tlsConn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	_ = tlsConn.SetDeadline(time.Time{})
	return &TLSConn{conn: tlsConn}, nil
}

// Read returns bytes copied into buf. A zero-byte, nil-error result under a
// short read deadline stands in for "would block" per spec §4.A. Peer
// half-close is surfaced as ErrPeerClosed, distinguished from a timeout.
func (c *TLSConn) Read(buf []byte, deadline time.Time) (int, error) {
	_ = c.conn.SetReadDeadline(deadline)
	n, err := c.conn.Read(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return n, nil // would-block, not an error
		}
		if errors.Is(err, io.EOF) {
			return n, ErrPeerClosed
		}
		return n, fmt.Errorf("tls read: %w", err)
	}
	return n, nil
}

// Write returns bytes actually written.
func (c *TLSConn) Write(buf []byte, deadline time.Time) (int, error) {
	_ = c.conn.SetWriteDeadline(deadline)
	n, err := c.conn.Write(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return n, nil
		}
		return n, fmt.Errorf("tls write: %w", err)
	}
	return n, nil
}

// Close attempts the polite two-step close (send close_notify, then close
// the socket) once, then releases the descriptor unconditionally. A failed
// close_notify is not retried.
func (c *TLSConn) Close() error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(500 * time.Millisecond))
	_ = c.conn.CloseWrite()
	return c.conn.Close()
}
