// FILE: errors.go
// Package main – Error taxonomy shared across components (see spec §7).
//
// Each kind is a distinguishable sentinel or lightweight struct so callers
// can use errors.Is/errors.As instead of string matching.
package main

import (
	"errors"
	"fmt"
)

// Transport-level kinds (4.A/4.B/4.C).
var (
	ErrPeerClosed       = errors.New("peer closed connection")
	ErrMalformedHTTP    = errors.New("malformed http response")
	ErrTimedOut         = errors.New("operation timed out")
	ErrProtocolViolation = errors.New("websocket protocol violation")
)

// Parsing kinds (4.D/4.E).
var (
	ErrMalformedJSON  = errors.New("malformed json")
	ErrNumberFormat   = errors.New("number format")
	ErrNumberOverflow = errors.New("number overflow")
)

// Model/scaler load-time kinds (4.F/4.G).
var (
	ErrBadWeights     = errors.New("bad weights artifact")
	ErrMissingFeature = errors.New("missing scaler feature")
)

// PrecheckFailure is raised by §4.H's calendar/account/asset gating.
type PrecheckFailure struct {
	Stage  string
	Reason string
}

func (e *PrecheckFailure) Error() string {
	return fmt.Sprintf("precheck failed at %s: %s", e.Stage, e.Reason)
}

// BrokerRejected is raised by §4.J when a status is outside the accepted set
// and is not one of the documented race-condition messages.
type BrokerRejected struct {
	Code int
	Msg  string
}

func (e *BrokerRejected) Error() string {
	return fmt.Sprintf("broker rejected (status %d): %s", e.Code, e.Msg)
}

// FeedError is raised when a {"T":"error"} frame is received on a data
// stream.
type FeedError struct {
	Code int
	Msg  string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed error %d: %s", e.Code, e.Msg)
}

// errNonFiniteQPL marks a failed QPL parameter derivation (non-finite
// intermediate or a denominator that would divide by zero); spec §4.H
// treats this as "mark the symbol is_outlier=true", not a process-fatal
// error.
var errNonFiniteQPL = errors.New("non-finite qpl intermediate")
