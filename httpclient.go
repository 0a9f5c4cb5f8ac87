// FILE: httpclient.go
// Package main – HTTP/1.1 client (spec §4.B).
//
// net/http already drives the header/chunked/content-length state machine
// spec §4.B names (SendRequest → ReceiveHeader → ReceiveBody or
// ReceiveChunkedBody → ReceivedResponse); HTTPStep documents that state
// machine for callers that want to observe it without reimplementing
// net/http's transport. Client.Do, the single entry point for every
// method, retries once on a peer-closed keep-alive race, per spec §4.B/§7.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPStep mirrors spec §4.B's response-reception state machine, exposed
// for logging/diagnostics; net/http's RoundTrip performs the actual
// chunked/content-length framing internally.
type HTTPStep int

const (
	StepSendRequest HTTPStep = iota
	StepReceiveHeader
	StepReceiveBody
	StepReceiveChunkedBody
	StepReceivedResponse
	StepTimedOut
)

// Client is a thin, retrying wrapper over *http.Client used by the broker
// adapter (§4.J) and the §4.H historical-bar fetcher.
type Client struct {
	hc *http.Client
}

// NewClient builds a pooled keep-alive client with the wall-clock timeout
// from config.go's httpTimeout.
func NewClient() *Client {
	return &Client{hc: &http.Client{Timeout: httpTimeout}}
}

// Do performs method/url with the given headers and body, retrying exactly
// once on a peer-closed error (§4.B's documented keep-alive race absorber).
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error) {
	status, respBody, err := c.doOnce(ctx, method, url, headers, body)
	if err != nil && errors.Is(err, ErrPeerClosed) {
		status, respBody, err = c.doOnce(ctx, method, url, headers, body)
	}
	return status, respBody, err
}

func (c *Client) doOnce(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformedHTTP, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, ErrPeerClosed
		}
		if ctx.Err() != nil {
			return 0, nil, ErrTimedOut
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformedHTTP, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: %v", ErrMalformedHTTP, err)
	}
	return resp.StatusCode, data, nil
}

func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
