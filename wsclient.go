// FILE: wsclient.go
// Package main – WebSocket client (spec §4.C).
//
// gorilla/websocket performs framing, masking, and the opening handshake
// (grounded on the maystocks-maystocks Alpaca reference, the only real
// WebSocket-over-Alpaca code anywhere in the example pack). The
// non-blocking "recv returns at most one message per call, or immediately
// with none available" contract is expressed idiomatically: a background
// reader goroutine feeds a buffered channel, and Recv does a non-blocking
// channel receive.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WSMessage is one fully-received text/binary frame, or a control
// notification.
type WSMessage struct {
	Data    []byte
	IsClose bool
}

// WSClient wraps a *websocket.Conn with a non-blocking Recv.
type WSClient struct {
	conn          *websocket.Conn
	incoming      chan WSMessage
	errs          chan error
	signalOnCtrl  bool
}

// DialWS opens url (wss://...) and starts the background reader.
func DialWS(ctx context.Context, url string, signalOnControl bool) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial %s: %w", url, err)
	}
	c := &WSClient{
		conn:         conn,
		incoming:     make(chan WSMessage, 64),
		errs:         make(chan error, 1),
		signalOnCtrl: signalOnControl,
	}
	conn.SetPingHandler(func(payload string) error {
		// respond immediately with pong echoing the payload, per §4.C.
		err := conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
		if c.signalOnCtrl {
			select {
			case c.incoming <- WSMessage{}:
			default:
			}
		}
		return err
	})
	go c.readLoop()
	return c, nil
}

func (c *WSClient) readLoop() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case c.errs <- err:
			default:
			}
			close(c.incoming)
			return
		}
		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			c.incoming <- WSMessage{Data: data}
		case websocket.CloseMessage:
			c.incoming <- WSMessage{IsClose: true}
		}
	}
}

// Recv returns (msg, true, nil) if a complete message was available, or
// (zero, false, nil) if none was available right now. A closed connection
// surfaces as (zero, false, ErrPeerClosed) or the protocol error observed.
func (c *WSClient) Recv() (WSMessage, bool, error) {
	select {
	case m, ok := <-c.incoming:
		if !ok {
			select {
			case err := <-c.errs:
				if websocket.IsUnexpectedCloseError(err) {
					return WSMessage{}, false, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
				}
				return WSMessage{}, false, ErrPeerClosed
			default:
				return WSMessage{}, false, ErrPeerClosed
			}
		}
		return m, true, nil
	default:
		return WSMessage{}, false, nil
	}
}

// Send writes a text frame, looping until delivered or the deadline
// expires (gorilla/websocket's WriteMessage blocks internally, so this is
// a single call with a write deadline rather than a manual loop).
func (c *WSClient) Send(payload []byte, deadline time.Time) error {
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrTimedOut, err)
	}
	return nil
}

func (c *WSClient) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
