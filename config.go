// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zmap/sshtransport/metrics"
)

const minRekeyThreshold uint64 = 256

// HostKeyVerifier is the pluggable trust-policy collaborator, spec.md
// §4.4.5 / §6: given the remote address and the parsed host public
// key, it reports whether the key is acceptable. Verifiers are tried
// in registration order; the first to return true wins.
type HostKeyVerifier func(remoteAddr net.Addr, key PublicKey) bool

// Config holds settings shared by any transport built on this
// package, mirroring the teacher's common.go Config.
type Config struct {
	// Rand is the source of entropy for padding, cookies and
	// ephemeral key material. Defaults to crypto/rand.
	Rand Random

	// RekeyThreshold is the number of bytes sent or received after
	// which a new key exchange is requested. RFC 4253 §9 suggests 1
	// GiB; the minimum is 256 bytes.
	RekeyThreshold uint64

	KeyExchanges      []string
	HostKeyAlgorithms []string
	Ciphers           []string
	MACs              []string
	Compressions      []string

	// Registry supplies the factories behind the names above. A nil
	// Registry gets the package's default registry (x/crypto-backed).
	Registry *Registry

	// ConnLog, if non-nil, accumulates the structured handshake
	// record described in SPEC_FULL.md §4.
	ConnLog *HandshakeLog

	// Verbose gates the more expensive/verbose fields of ConnLog (both
	// KEXINIT messages and the client's identification line). The
	// server's identification, the negotiated algorithms and the session
	// id are recorded either way.
	Verbose bool

	// HelloOnly, if true, stops the transport after the identification
	// exchange without performing a key exchange — useful for
	// banner-only probing (SPEC_FULL.md §4).
	HelloOnly bool

	// Logger receives the peer's SSH_MSG_IGNORE, SSH_MSG_DEBUG and
	// SSH_MSG_UNIMPLEMENTED messages as log lines. State transitions,
	// rekeys and pump failures are not logged. A nil Logger means
	// silence, matching the teacher's optional ConnLog.
	Logger *log.Logger

	// Metrics, if non-nil, receives Prometheus instrumentation for
	// this transport (SPEC_FULL.md §3). Nil disables metrics entirely.
	Metrics *metrics.Transport
}

// logf is a nil-safe convenience wrapper around Config.Logger.
func (c *Config) logf(level log.Level, format string, args ...interface{}) {
	if c.Logger == nil {
		return
	}
	c.Logger.Logf(level, format, args...)
}

// SetDefaults fills unset fields with sensible defaults, mirroring the
// teacher's Config.SetDefaults.
func (c *Config) SetDefaults() {
	if c.Rand == nil {
		c.Rand = ioRandom{rand.Reader}
	}
	if c.Registry == nil {
		c.Registry = DefaultRegistry()
	}
	if c.KeyExchanges == nil {
		c.KeyExchanges = c.Registry.kexNames
	}
	if c.HostKeyAlgorithms == nil {
		c.HostKeyAlgorithms = c.Registry.hostKeys
	}
	if c.Ciphers == nil {
		c.Ciphers = c.Registry.cipherNames
	}
	if c.MACs == nil {
		c.MACs = c.Registry.macNames
	}
	if c.Compressions == nil {
		c.Compressions = []string{compressionNone}
	}
	if c.RekeyThreshold == 0 {
		c.RekeyThreshold = 1 << 30
	}
	if c.RekeyThreshold < minRekeyThreshold {
		c.RekeyThreshold = minRekeyThreshold
	}
}

// ClientConfig configures a client-side Transport, mirroring the
// teacher's ClientConfig.
type ClientConfig struct {
	Config

	// ClientVersion is the identification string sent to the server.
	// If empty, a default is used.
	ClientVersion string

	// HostKeyVerifiers is the ordered chain consulted by spec.md
	// §4.4.5. An empty chain causes every handshake to fail with
	// ErrHostKeyNotVerifiable — callers must register at least one.
	HostKeyVerifiers []HostKeyVerifier

	// Timeout is used by Dial both as the TCP dial timeout and as a
	// deadline for the handshake. NewTransport does not consult it.
	// Zero means no timeout.
	Timeout time.Duration
}

// EndpointId records a parsed SSH identification line, mirroring the
// teacher's EndpointId (common.go/client.go use it inside ConnLog).
type EndpointId struct {
	Raw             string `json:"raw,omitempty"`
	ProtoVersion    string `json:"protocol_version,omitempty"`
	SoftwareVersion string `json:"software_version,omitempty"`
	Comment         string `json:"comment,omitempty"`
}

// HandshakeLog is the structured record of one handshake, accumulated
// by the transport as it runs (SPEC_FULL.md §4). Nil-safe: every write
// site checks cfg.ConnLog != nil first.
type HandshakeLog struct {
	ClientID           *EndpointId `json:"client_id,omitempty"`
	ServerID           *EndpointId `json:"server_id,omitempty"`
	ClientKex          *kexInitMsg `json:"-"`
	ServerKex          *kexInitMsg `json:"-"`
	AlgorithmSelection *Algorithms `json:"selected_algorithms,omitempty"`
	SessionID          []byte      `json:"session_id,omitempty"`
}
