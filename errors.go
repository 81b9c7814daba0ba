// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in spec.md §7. Errors returned from
// deeper in the stack are typically wrapped with %w around one of
// these so callers can errors.Is against them.
var (
	// ErrNegotiationFailed is returned when no common algorithm exists
	// for a required KEXINIT slot.
	ErrNegotiationFailed = errors.New("ssh: no common algorithm")

	// ErrHostKeyNotVerifiable is returned when no registered
	// HostKeyVerifier accepts the server's host key.
	ErrHostKeyNotVerifiable = errors.New("ssh: host key not verifiable")

	// ErrTimeout is the taxonomy entry for an expired wait, mapped to
	// DisconnectByApplication by disconnectReasonFor. The state and event
	// waits in this package take no deadline and never return it.
	ErrTimeout = errors.New("ssh: timeout")

	// ErrTransportStopped is returned to callers blocked on transport
	// state when the transport shuts down without reaching an error
	// state (e.g. a clean local Close).
	ErrTransportStopped = errors.New("ssh: transport stopped")
)

// disconnectReasonFor maps an error from the taxonomy to the
// DISCONNECT reason code sent to the peer, spec.md §7. IO/transport
// errors that aren't otherwise classified produce no outbound
// DISCONNECT — the caller should just close the socket.
func disconnectReasonFor(err error) (reason uint32, sendDisconnect bool) {
	switch {
	case errors.Is(err, ErrBufferUnderflow), errors.Is(err, ErrStringTooLong), errors.Is(err, ErrProtocol):
		return DisconnectProtocolError, true
	case errors.Is(err, ErrMAC):
		return DisconnectMACError, true
	case errors.Is(err, ErrNegotiationFailed), errors.Is(err, ErrUnknownAlgorithm):
		return DisconnectKeyExchangeFailed, true
	case errors.Is(err, ErrHostKeyNotVerifiable):
		return DisconnectHostKeyNotVerifiable, true
	case errors.Is(err, ErrTimeout):
		return DisconnectByApplication, true
	default:
		return 0, false
	}
}

func unexpectedMessageError(expected, got uint8) error {
	return errProtocolf("unexpected message type %d (expected %d)", got, expected)
}

func errProtocolf(format string, args ...interface{}) error {
	return &wrappedProtocolError{msg: fmt.Sprintf(format, args...)}
}

type wrappedProtocolError struct {
	msg string
}

func (e *wrappedProtocolError) Error() string { return "ssh: " + e.msg }
func (e *wrappedProtocolError) Unwrap() error { return ErrProtocol }
