// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// TransportState is the coarse lifecycle state of a Transport, spec.md
// §3 "TransportState" / §5.
type TransportState int

const (
	stateKex TransportState = iota
	stateKexDone
	stateServiceReq
	stateService
	stateError
	stateStopped
)

func (s TransportState) String() string {
	switch s {
	case stateKex:
		return "KEX"
	case stateKexDone:
		return "KEX_DONE"
	case stateServiceReq:
		return "SERVICE_REQ"
	case stateService:
		return "SERVICE"
	case stateError:
		return "ERROR"
	case stateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

const defaultClientVersion = "SSH-2.0-sshtransport"

// maxPreAuthBannerBytes bounds the total bytes read before a line
// beginning "SSH-" is seen, spec.md §4.6.
const maxPreAuthBannerBytes = 16 * 1024

// maxIdentLineBytes bounds any single identification/banner line.
const maxIdentLineBytes = 255

// rawConn is the codec-level packetConn: plain encode/decode over a
// net.Conn, with no rekey or dispatch logic of its own. It plays the
// role the teacher's (unretrieved) transport.go newTransport return
// value plays relative to handshakeTransport.
type rawConn struct {
	netConn net.Conn
	reader  *bufio.Reader
	rDir    *direction
	wDir    *direction
	enc     *encoder
	dec     *decoder
}

func newRawConn(nc net.Conn, rnd Random) *rawConn {
	rDir := newDirection()
	wDir := newDirection()
	return &rawConn{
		netConn: nc,
		reader:  bufio.NewReader(nc),
		rDir:    rDir,
		wDir:    wDir,
		enc:     newEncoder(wDir, rnd),
		dec:     newDecoder(rDir),
	}
}

func (c *rawConn) readPacket() ([]byte, error) {
	return c.dec.readPacket(c.reader)
}

func (c *rawConn) writePacket(payload []byte) error {
	wire, _, err := c.enc.encode(payload)
	if err != nil {
		return err
	}
	_, err = c.netConn.Write(wire)
	return err
}

func (c *rawConn) Close() error { return c.netConn.Close() }

// randIOReader adapts a Random to io.Reader, the shape KeyExchange.Client expects.
type randIOReader struct{ rnd Random }

func (r randIOReader) Read(p []byte) (int, error) {
	if err := r.rnd.Fill(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Transport is the client-side SSH transport layer core: version
// exchange, packet framing, algorithm negotiation, key exchange and
// rekeying, and service request/accept — spec.md §2 Components A-F.
// It offers a thread-safe writePacket/readPacket pair over an
// underlying rawConn, mirroring the teacher's handshakeTransport.
type Transport struct {
	conn *rawConn
	cfg  *ClientConfig
	rnd  io.Reader

	clientVersion []byte
	serverVersion []byte
	remoteAddr    net.Addr

	// incoming delivers post-handshake application payloads read by
	// readLoop; closed with readError set on any read failure.
	incoming  chan []byte
	readError error

	// writeMu serializes writers and coordinates with in-progress key
	// exchanges, mirroring the teacher's handshakeTransport.mu.
	writeMu         sync.Mutex
	sentInitPacket  []byte
	sentInitMsg     *kexInitMsg
	writtenSinceKex uint64
	readSinceKex    uint64
	writeError      error

	// kexInitSent and kexDone are the spec.md §9 "blocking event with
	// error injection" pair for the in-flight key-exchange round: the
	// first fires once our KEXINIT has hit the wire, the second once the
	// round finishes (successfully or not). Both are replaced with a
	// fresh instance by sendKexInitLocked at the start of each round;
	// writers blocked in writePacket wait on kexDone rather than polling
	// a condition variable.
	kexInitSent *event
	kexDone     *event

	sessionID []byte

	state          *latch
	dispatcher     *ServiceDispatcher
	disconnectOnce sync.Once
}

// Dial connects to addr and runs the client handshake, spec.md §4.6.
func Dial(network, addr string, config *ClientConfig) (*Transport, error) {
	nc, err := net.DialTimeout(network, addr, config.Timeout)
	if err != nil {
		return nil, err
	}
	if config.Timeout != 0 {
		nc.SetDeadline(time.Now().Add(config.Timeout))
	}
	t, err := NewTransport(nc, addr, config)
	if err != nil {
		return nil, err
	}
	if config.Timeout != 0 {
		nc.SetDeadline(time.Time{})
	}
	return t, nil
}

// NewTransport runs the client handshake over an already-connected
// net.Conn: identification exchange, then (unless HelloOnly) the
// first key exchange, spec.md §4.6's "Happy path" scenario S1.
func NewTransport(nc net.Conn, dialAddress string, config *ClientConfig) (*Transport, error) {
	fullConf := *config
	fullConf.SetDefaults()

	t := &Transport{
		cfg:        &fullConf,
		rnd:        randIOReader{fullConf.Rand},
		remoteAddr: nc.RemoteAddr(),
		incoming:   make(chan []byte, 16),
		state:      newLatch(stateKex),
	}
	t.conn = newRawConn(nc, fullConf.Rand)
	t.dispatcher = newServiceDispatcher(t)
	fullConf.Metrics.ConnOpened()

	if err := t.exchangeVersions(); err != nil {
		nc.Close()
		fullConf.Metrics.ConnClosed()
		return nil, fmt.Errorf("ssh: version exchange failed: %w", err)
	}

	go t.readLoop()

	if fullConf.HelloOnly {
		t.state.set(stateStopped, nil)
		return t, nil
	}

	// requestInitialKeyChange's own return value is just sendKexInitLocked's
	// write error, which is also what fires kexInitSent below — rather than
	// check it twice, trigger the send here and let kexInitSent.wait() be
	// the sole place the outcome is observed (spec.md §9's "kex init sent"
	// event).
	t.requestInitialKeyChange()

	t.writeMu.Lock()
	kexInitSent := t.kexInitSent
	t.writeMu.Unlock()
	// From here on readLoop is running and calls Metrics.ConnClosed
	// itself when it exits, so the failure paths below only close nc.
	if err := kexInitSent.wait(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ssh: handshake failed: %w", err)
	}

	// spec.md §5: block on the state condition variable until KEX_DONE
	// (or a terminal state, surfacing whatever error got us there).
	if err := t.state.awaitState(stateKexDone); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ssh: handshake failed: %w", err)
	}
	return t, nil
}

// exchangeVersions implements RFC 4253 §4.2 / spec.md §4.6: send our
// identification line, then read lines until one begins "SSH-",
// discarding any earlier pre-authentication banner text.
func (t *Transport) exchangeVersions() error {
	version := t.cfg.ClientVersion
	if version == "" {
		version = defaultClientVersion
	}
	t.clientVersion = []byte(version)
	if _, err := t.conn.netConn.Write([]byte(version + "\r\n")); err != nil {
		return err
	}

	var total int
	for {
		line, err := t.readIdentLine()
		if err != nil {
			return fmt.Errorf("ssh: reading identification string: %w", err)
		}
		total += len(line) + 1
		if total > maxPreAuthBannerBytes {
			return fmt.Errorf("%w: pre-authentication banner exceeds %d bytes", ErrProtocol, maxPreAuthBannerBytes)
		}
		if bytes.HasPrefix(line, []byte("SSH-")) {
			t.serverVersion = line
			break
		}
		// Otherwise this is a pre-authentication banner line (RFC 4253
		// §4.2); discard it and keep reading.
	}
	if !bytes.HasPrefix(t.serverVersion, []byte("SSH-2.0-")) && !bytes.HasPrefix(t.serverVersion, []byte("SSH-1.99-")) {
		return fmt.Errorf("%w: unsupported protocol version string %q", ErrProtocol, t.serverVersion)
	}

	if t.cfg.ConnLog != nil {
		t.cfg.ConnLog.ServerID = parseEndpointID(string(t.serverVersion))
		if t.cfg.Verbose {
			t.cfg.ConnLog.ClientID = parseEndpointID(version)
		}
	}
	return nil
}

// parseEndpointID splits a raw SSH identification line into its
// protocol version, software version and trailing comment, mirroring
// the teacher's client.go clientHandshake parsing.
func parseEndpointID(raw string) *EndpointId {
	id := &EndpointId{Raw: raw}
	split := strings.SplitN(raw, " ", 2)
	if len(split) == 2 {
		id.Comment = split[1]
	}
	group := strings.SplitN(split[0], "-", 3)
	if len(group) > 0 && group[0] == "SSH" {
		if len(group) > 1 {
			id.ProtoVersion = group[1]
		}
		if len(group) == 3 {
			id.SoftwareVersion = group[2]
		}
	}
	return id
}

func (t *Transport) readIdentLine() ([]byte, error) {
	var line []byte
	for {
		b, err := t.conn.reader.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == '\n' {
			break
		}
		line = append(line, b)
		if len(line) > maxIdentLineBytes {
			return nil, fmt.Errorf("%w: identification line exceeds %d bytes", ErrProtocol, maxIdentLineBytes)
		}
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

// readLoop is the sole goroutine that reads from the socket, mirroring
// the teacher's handshakeTransport.readLoop. It both delivers
// application payloads and drives peer-initiated (or threshold-
// triggered) rekeys inline, since a rekey requires reading the peer's
// follow-up packets itself.
func (t *Transport) readLoop() {
	for {
		p, err := t.readOnePacket()
		if err != nil {
			t.readError = err
			close(t.incoming)
			break
		}
		switch p[0] {
		case msgIgnore:
			t.logIgnore(p)
			continue
		case msgDebug:
			t.logDebug(p)
			continue
		case msgUnimplemented:
			t.logUnimplemented(p)
			continue
		}
		t.incoming <- p
	}

	t.writeMu.Lock()
	if t.writeError == nil {
		t.writeError = t.readError
	}
	// Wake anyone blocked in writePacket on an in-flight key exchange
	// that will now never complete, spec.md §9's "kex done" event.
	if t.kexDone != nil {
		t.kexDone.fire(t.writeError)
	}
	// Best-effort outbound DISCONNECT before the socket goes away, spec.md
	// §7: "the transport sends DISCONNECT (if outbound still viable)".
	// disconnectOnce also guards Transport.Disconnect, so a caller-invoked
	// Disconnect() after this point is a no-op rather than a double send.
	t.disconnectOnce.Do(func() {
		if reason, ok := disconnectReasonFor(t.readError); ok {
			payload := marshal(msgDisconnect, disconnectMsg{Reason: reason, Message: t.readError.Error()})
			t.conn.writePacket(payload)
		}
	})
	t.conn.Close()
	t.writeMu.Unlock()

	if err := t.readError; err != nil && !errorsIsClean(err) {
		reason, _ := disconnectReasonFor(err)
		t.cfg.Metrics.Error(disconnectReasonLabel(reason))
		t.state.set(stateError, err)
	} else {
		t.state.set(stateStopped, nil)
	}
	t.cfg.Metrics.ConnClosed()
}

// logIgnore, logDebug and logUnimplemented parse the peer's SSH_MSG_IGNORE,
// SSH_MSG_DEBUG and SSH_MSG_UNIMPLEMENTED payloads and forward them to the
// configured logger; readLoop discards the messages themselves either way,
// matching RFC 4253 §11.2-§11.4.
func (t *Transport) logIgnore(p []byte) {
	if t.cfg.Logger == nil {
		return
	}
	var m ignoreMsg
	if err := unmarshalBody(p[1:], &m); err != nil {
		return
	}
	t.cfg.logf(log.DebugLevel, "ssh: IGNORE: %d bytes", len(m.Data))
}

func (t *Transport) logDebug(p []byte) {
	if t.cfg.Logger == nil {
		return
	}
	var m debugMsg
	if err := unmarshalBody(p[1:], &m); err != nil {
		return
	}
	level := log.DebugLevel
	if m.AlwaysDisplay {
		level = log.InfoLevel
	}
	t.cfg.logf(level, "ssh: DEBUG: %s", m.Message)
}

func (t *Transport) logUnimplemented(p []byte) {
	if t.cfg.Logger == nil {
		return
	}
	var m unimplementedMsg
	if err := unmarshalBody(p[1:], &m); err != nil {
		return
	}
	t.cfg.logf(log.DebugLevel, "ssh: peer does not implement message with sequence number %d", m.SeqNum)
}

// disconnectReasonLabel gives disconnectReasonFor's numeric reason a
// short metrics label instead of exposing RFC 4253's raw integers.
func disconnectReasonLabel(reason uint32) string {
	switch reason {
	case DisconnectProtocolError:
		return "protocol_error"
	case DisconnectKeyExchangeFailed:
		return "kex_failed"
	case DisconnectMACError:
		return "mac_error"
	case DisconnectHostKeyNotVerifiable:
		return "host_key_not_verifiable"
	case DisconnectByApplication:
		return "timeout"
	default:
		return "unclassified"
	}
}

func errorsIsClean(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// readOnePacket reads and, if necessary, transparently handles one
// wire packet: rekeys triggered by byte threshold or by a peer KEXINIT
// are hidden from readPacket's caller, matching spec.md's "rekey is
// invisible to upper layers" requirement.
func (t *Transport) readOnePacket() ([]byte, error) {
	if t.readSinceKex > t.cfg.RekeyThreshold {
		if err := t.requestKeyChange(); err != nil {
			return nil, err
		}
	}

	p, err := t.conn.readPacket()
	if err != nil {
		return nil, err
	}
	t.readSinceKex += uint64(len(p))
	t.cfg.Metrics.ObserveRead(len(p))

	if p[0] != msgKexInit {
		return p, nil
	}

	t.writeMu.Lock()
	firstKex := t.sessionID == nil
	err = t.enterKeyExchangeLocked(p)
	if err != nil {
		// Leave the socket open here: readLoop's caller still needs it to
		// send an outbound DISCONNECT (spec.md §7) before tearing down.
		t.writeError = err
	}
	t.sentInitMsg = nil
	t.sentInitPacket = nil
	t.writtenSinceKex = 0
	// kexDone is spec.md §9's "kex done" event for this round: fire it
	// outside writeMu so writers blocked in writePacket can re-acquire
	// the lock the instant they wake.
	kexDone := t.kexDone
	t.writeMu.Unlock()
	kexDone.fire(err)

	if err != nil {
		return nil, err
	}
	t.readSinceKex = 0

	// The very first key exchange also flips the transport's coarse
	// lifecycle state, spec.md §5: NewTransport is blocked in
	// awaitState(stateKexDone) waiting for exactly this transition.
	if firstKex {
		t.state.set(stateKexDone, nil)
	}

	// Every key exchange, first or rekey, is hidden from readPacket's
	// caller by translating it to msgIgnore.
	return []byte{msgIgnore}, nil
}

// readPacket returns the next application payload, blocking until one
// arrives or the transport stops. Implements packetConn.
func (t *Transport) readPacket() ([]byte, error) {
	p, ok := <-t.incoming
	if !ok {
		return nil, t.readError
	}
	return p, nil
}

// writePacket sends payload, transparently initiating a rekey first if
// the outbound byte threshold has been crossed. Implements packetConn.
func (t *Transport) writePacket(payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.writtenSinceKex > t.cfg.RekeyThreshold {
		t.sendKexInitLocked(false)
	}
	// Block on kexDone (spec.md §9) rather than polling a condition
	// variable: drop writeMu for the wait so readOnePacket can make
	// progress and fire it, then re-acquire to re-check the gate.
	for t.sentInitMsg != nil && t.writeError == nil {
		kexDone := t.kexDone
		t.writeMu.Unlock()
		kexDone.wait()
		t.writeMu.Lock()
	}
	if t.writeError != nil {
		return t.writeError
	}
	t.writtenSinceKex += uint64(len(payload))

	switch payload[0] {
	case msgKexInit:
		return fmt.Errorf("ssh: only the transport may send KEXINIT")
	case msgNewKeys:
		return fmt.Errorf("ssh: only the transport may send NEWKEYS")
	default:
		if err := t.conn.writePacket(payload); err != nil {
			return err
		}
		t.cfg.Metrics.ObserveWrite(len(payload))
		return nil
	}
}

// Close tears down the underlying connection without sending DISCONNECT.
func (t *Transport) Close() error { return t.conn.Close() }

// IsRunning reports whether the transport can still exchange packets.
func (t *Transport) IsRunning() bool {
	s, _ := t.state.get()
	return s != stateError && s != stateStopped
}

// SessionID returns the session identifier fixed by the first key
// exchange, spec.md §4.4.4 — nil before the handshake completes.
func (t *Transport) SessionID() []byte { return t.sessionID }

// SetAuthed marks both directions as authenticated, enabling delayed
// ("zlib@openssh.com"-style) compression to engage. Authentication
// itself is out of scope (spec.md Non-goals); this hook lets a caller
// that implements it elsewhere flip the switch.
func (t *Transport) SetAuthed() {
	t.conn.wDir.setAuthed()
	t.conn.rDir.setAuthed()
}

// Dispatcher returns the transport's service request/dispatch layer,
// spec.md §4.5 Component E.
func (t *Transport) Dispatcher() *ServiceDispatcher { return t.dispatcher }

// Disconnect sends SSH_MSG_DISCONNECT and closes the connection.
// Idempotent: only the first call has any effect, spec.md §9.
func (t *Transport) Disconnect(reason uint32, message string) error {
	var sendErr error
	t.disconnectOnce.Do(func() {
		payload := marshal(msgDisconnect, disconnectMsg{Reason: reason, Message: message})
		sendErr = t.writePacket(payload)
		t.conn.Close()
		t.state.set(stateStopped, nil)
	})
	return sendErr
}

func (t *Transport) requestInitialKeyChange() error { return t.sendKexInit(true) }
func (t *Transport) requestKeyChange() error        { return t.sendKexInit(false) }

// sendKexInit sends a KEXINIT (unless one is already in flight).
// Safe for concurrent callers; the caller observes completion, if it
// cares, through the kexInitSent/kexDone events sendKexInitLocked sets
// up for the round.
func (t *Transport) sendKexInit(isFirst bool) error {
	t.writeMu.Lock()
	var err error
	if !isFirst || t.sessionID == nil {
		_, _, err = t.sendKexInitLocked(isFirst)
	}
	t.writeMu.Unlock()
	return err
}

// sendKexInitLocked sends our KEXINIT proposal. t.writeMu must be held.
// The first caller of a given round allocates a fresh kexInitSent/
// kexDone pair (spec.md §9) and fires kexInitSent once the write
// attempt settles, successful or not; later calls during the same
// round (e.g. enterKeyExchangeLocked replying to a peer-initiated
// rekey) just return the already-sent proposal.
func (t *Transport) sendKexInitLocked(isFirst bool) (*kexInitMsg, []byte, error) {
	if t.sentInitMsg != nil {
		return t.sentInitMsg, t.sentInitPacket, nil
	}
	t.kexInitSent = newEvent()
	t.kexDone = newEvent()

	msg := localProposal(&t.cfg.Config)
	packet := marshal(msgKexInit, msg)
	packetCopy := append([]byte(nil), packet...)
	err := t.conn.writePacket(packetCopy)
	t.kexInitSent.fire(err)
	if err != nil {
		return nil, nil, err
	}
	t.sentInitMsg = msg
	t.sentInitPacket = packet
	return msg, packet, nil
}

// enterKeyExchangeLocked runs one full key exchange against the peer's
// KEXINIT (otherInitPacket), spec.md §4.4.1-§4.4.6. t.writeMu is held
// throughout, blocking application writers until the rekey completes
// or fails (spec.md invariant: no plaintext leaks across a rekey
// boundary).
func (t *Transport) enterKeyExchangeLocked(otherInitPacket []byte) error {
	t.cfg.Metrics.RekeyStarted()
	myInit, myInitPacket, err := t.sendKexInitLocked(false)
	if err != nil {
		return err
	}
	if t.cfg.Verbose && t.cfg.ConnLog != nil {
		t.cfg.ConnLog.ClientKex = myInit
	}

	otherInit := &kexInitMsg{}
	if err := unmarshalBody(otherInitPacket[1:], otherInit); err != nil {
		return err
	}
	if t.cfg.Verbose && t.cfg.ConnLog != nil {
		t.cfg.ConnLog.ServerKex = otherInit
	}

	magics := &handshakeMagics{
		clientVersion: t.clientVersion,
		serverVersion: t.serverVersion,
		clientKexInit: myInitPacket,
		serverKexInit: otherInitPacket,
	}

	algs, err := negotiate(myInit, otherInit)
	if err != nil {
		return err
	}
	if t.cfg.ConnLog != nil {
		t.cfg.ConnLog.AlgorithmSelection = algs
	}

	// RFC 4253 §7: if the peer guessed wrong about which kex/host-key
	// algorithm would be negotiated, it already sent a follow-up kex
	// packet we must silently discard before driving the real exchange
	// (spec.md's documented first_kex_packet_follows edge case).
	if otherInit.FirstKexFollows && (myInit.KexAlgos[0] != otherInit.KexAlgos[0] || myInit.ServerHostKeyAlgos[0] != otherInit.ServerHostKeyAlgos[0]) {
		if _, err := t.conn.readPacket(); err != nil {
			return err
		}
	}

	kex, err := t.cfg.Registry.createKex(algs.Kex)
	if err != nil {
		return err
	}

	result, err := kex.Client(t.conn, t.rnd, magics)
	if err != nil {
		return err
	}

	hostKey, err := ParsePublicKey(result.HostKey)
	if err != nil {
		return fmt.Errorf("ssh: parsing host key: %w", err)
	}
	if err := hostKey.Verify(result.H, result.Signature); err != nil {
		return fmt.Errorf("%w: host key signature invalid: %v", ErrHostKeyNotVerifiable, err)
	}
	if !t.hostKeyAccepted(hostKey) {
		return ErrHostKeyNotVerifiable
	}

	if t.sessionID == nil {
		t.sessionID = result.H
	}
	result.SessionID = t.sessionID
	if t.cfg.ConnLog != nil {
		t.cfg.ConnLog.SessionID = t.sessionID
	}

	dk := deriveKeys(result.HashFunc, result.K, result.H, t.sessionID, algs)

	wCipher, err := t.cfg.Registry.createCipher(algs.W.Cipher, dk.keyClientToServer, dk.ivClientToServer)
	if err != nil {
		return err
	}
	wMAC, err := t.cfg.Registry.createMAC(algs.W.MAC, dk.macClientToServer)
	if err != nil {
		return err
	}
	wComp, err := t.cfg.Registry.createCompression(algs.W.Compression)
	if err != nil {
		return err
	}
	rCipher, err := t.cfg.Registry.createCipher(algs.R.Cipher, dk.keyServerToClient, dk.ivServerToClient)
	if err != nil {
		return err
	}
	rMAC, err := t.cfg.Registry.createMAC(algs.R.MAC, dk.macServerToClient)
	if err != nil {
		return err
	}
	rComp, err := t.cfg.Registry.createCompression(algs.R.Compression)
	if err != nil {
		return err
	}

	// NEWKEYS atomicity: outbound switches the instant NEWKEYS is sent;
	// inbound switches the instant the peer's NEWKEYS is received.
	if err := t.conn.writePacket([]byte{msgNewKeys}); err != nil {
		return err
	}
	t.conn.wDir.install(wCipher, wMAC, wComp)

	packet, err := t.conn.readPacket()
	if err != nil {
		return err
	}
	if packet[0] != msgNewKeys {
		return unexpectedMessageError(msgNewKeys, packet[0])
	}
	t.conn.rDir.install(rCipher, rMAC, rComp)
	t.cfg.Metrics.RekeyCompleted()

	return nil
}

func (t *Transport) hostKeyAccepted(key PublicKey) bool {
	for _, v := range t.cfg.HostKeyVerifiers {
		if v(t.remoteAddr, key) {
			return true
		}
	}
	return false
}
