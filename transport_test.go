// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bufio"
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"
)

// testServerConn is the minimal "none"-cipher packetConn a hand-built
// peer needs to speak the pre-NEWKEYS wire format: KEXINIT and the
// classic DH messages are exchanged before either side has cipher
// state, so it is exactly a rawConn over the peer's end of the pipe.
func testServerConn(nc net.Conn, br *bufio.Reader) *rawConn {
	return &rawConn{
		netConn: nc,
		reader:  br,
		rDir:    newDirection(),
		wDir:    newDirection(),
		enc:     newEncoder(newDirection(), ioRandom{rand.Reader}),
		dec:     newDecoder(newDirection()),
	}
}

// readPeerVersion consumes the remote identification line written
// during version exchange (spec.md §4.6) and returns it with the
// trailing CRLF/LF stripped, matching Transport.readIdentLine.
func readPeerVersion(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return []byte(line), nil
}

// runDHGroup14Server drives the server half of scenario S1: identification
// exchange, a KEXINIT offering only diffie-hellman-group14-sha1/ssh-rsa/
// aes128-ctr/hmac-sha1, the classic DH reply signed by priv, and NEWKEYS.
func runDHGroup14Server(conn net.Conn, priv *rsa.PrivateKey, hostKeyBlob []byte) error {
	br := bufio.NewReader(conn)
	clientVersion, err := readPeerVersion(br)
	if err != nil {
		return fmt.Errorf("reading client version: %w", err)
	}

	serverVersion := []byte("SSH-2.0-OpenSSH_9.0")
	if _, err := conn.Write(append(append([]byte{}, serverVersion...), '\r', '\n')); err != nil {
		return fmt.Errorf("writing server version: %w", err)
	}

	rc := testServerConn(conn, br)

	serverInit := &kexInitMsg{
		KexAlgos:                []string{kexAlgoDH14SHA1},
		ServerHostKeyAlgos:      []string{KeyAlgoRSA},
		CiphersClientServer:     []string{cipherAES128CTR},
		CiphersServerClient:     []string{cipherAES128CTR},
		MACsClientServer:        []string{macHMACSHA1},
		MACsServerClient:        []string{macHMACSHA1},
		CompressionClientServer: []string{compressionNone},
		CompressionServerClient: []string{compressionNone},
	}
	if _, err := rand.Read(serverInit.Cookie[:]); err != nil {
		return err
	}
	serverInitPacket := marshal(msgKexInit, serverInit)
	if err := rc.writePacket(serverInitPacket); err != nil {
		return fmt.Errorf("writing server KEXINIT: %w", err)
	}

	clientInitPacket, err := rc.readPacket()
	if err != nil {
		return fmt.Errorf("reading client KEXINIT: %w", err)
	}
	if clientInitPacket[0] != msgKexInit {
		return fmt.Errorf("expected KEXINIT (%d), got %d", msgKexInit, clientInitPacket[0])
	}

	kexDHInitPacket, err := rc.readPacket()
	if err != nil {
		return fmt.Errorf("reading KEXDH_INIT: %w", err)
	}
	if kexDHInitPacket[0] != msgKexDHInit {
		return fmt.Errorf("expected KEXDH_INIT (%d), got %d", msgKexDHInit, kexDHInitPacket[0])
	}
	var initMsg kexDHGroupMsg
	if err := unmarshalBody(kexDHInitPacket[1:], &initMsg); err != nil {
		return fmt.Errorf("unmarshal KEXDH_INIT: %w", err)
	}

	y, err := randFieldElement(rand.Reader, group14Prime)
	if err != nil {
		return err
	}
	f := new(big.Int).Exp(big.NewInt(2), y, group14Prime)
	k := new(big.Int).Exp(initMsg.E, y, group14Prime)

	h := sha1.New()
	writeHashString(h, clientVersion)
	writeHashString(h, serverVersion)
	writeHashString(h, clientInitPacket)
	writeHashString(h, serverInitPacket)
	writeHashString(h, hostKeyBlob)
	writeHashMpint(h, initMsg.E)
	writeHashMpint(h, f)
	writeHashMpint(h, k)
	exchangeHash := h.Sum(nil)

	sigRaw, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA1, sha1Sum(exchangeHash))
	if err != nil {
		return fmt.Errorf("signing exchange hash: %w", err)
	}
	sigBuf := newBuffer()
	sigBuf.writeString([]byte(KeyAlgoRSA))
	sigBuf.writeString(sigRaw)

	reply := kexDHReplyMsg{HostKey: hostKeyBlob, F: f, Signature: sigBuf.bytes()}
	if err := rc.writePacket(marshal(msgKexDHReply, reply)); err != nil {
		return fmt.Errorf("writing KEXDH_REPLY: %w", err)
	}

	newKeysPacket, err := rc.readPacket()
	if err != nil {
		return fmt.Errorf("reading client NEWKEYS: %w", err)
	}
	if newKeysPacket[0] != msgNewKeys {
		return fmt.Errorf("expected NEWKEYS (%d), got %d", msgNewKeys, newKeysPacket[0])
	}

	if err := rc.writePacket([]byte{msgNewKeys}); err != nil {
		return fmt.Errorf("writing server NEWKEYS: %w", err)
	}
	return nil
}

// TestTransportHandshakeDHGroup14RSAAES128CTR runs a full client
// handshake (version exchange, KEXINIT negotiation, diffie-hellman-
// group14-sha1 key exchange, NEWKEYS) against a hand-built peer over
// net.Pipe, matching the ssh-rsa/aes128-ctr/hmac-sha1 combination.
func TestTransportHandshakeDHGroup14RSAAES128CTR(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	hostKeyBlob := marshalRSA(&priv.PublicKey)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- runDHGroup14Server(serverConn, priv, hostKeyBlob)
		// Keep reading after the handshake: net.Pipe writes block until
		// read, and the deferred Disconnect below sends a DISCONNECT.
		io.Copy(io.Discard, serverConn)
	}()

	cfg := &ClientConfig{
		HostKeyVerifiers: []HostKeyVerifier{
			func(_ net.Addr, key PublicKey) bool {
				return bytes.Equal(key.Marshal(), hostKeyBlob)
			},
		},
	}

	transport, err := NewTransport(clientConn, "pipe", cfg)
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	defer transport.Disconnect(DisconnectByApplication, "test done")

	select {
	case err := <-serverErr:
		if err != nil {
			t.Fatalf("test server: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("test server did not complete in time")
	}

	if !transport.IsRunning() {
		t.Fatal("IsRunning() = false after a successful handshake")
	}
	if got := len(transport.SessionID()); got != sha1.Size {
		t.Fatalf("SessionID length = %d, want %d (sha1 exchange hash)", got, sha1.Size)
	}
}

// TestTransportHandshakeNegotiationFailure covers spec.md §8 scenario
// S2: a peer whose KEXINIT shares no common key-exchange algorithm
// with the client causes NewTransport to fail with ErrNegotiationFailed
// rather than hang or panic.
func TestTransportHandshakeNegotiationFailure(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	done := make(chan struct{})
	var disconnectPacket []byte
	go func() {
		defer close(done)
		br := bufio.NewReader(serverConn)
		if _, err := readPeerVersion(br); err != nil {
			return
		}
		if _, err := serverConn.Write([]byte("SSH-2.0-OpenSSH_9.0\r\n")); err != nil {
			return
		}

		rc := testServerConn(serverConn, br)
		serverInit := &kexInitMsg{
			KexAlgos:                []string{"diffie-hellman-group-exchange-sha256"},
			ServerHostKeyAlgos:      []string{KeyAlgoRSA},
			CiphersClientServer:     []string{cipherAES128CTR},
			CiphersServerClient:     []string{cipherAES128CTR},
			MACsClientServer:        []string{macHMACSHA1},
			MACsServerClient:        []string{macHMACSHA1},
			CompressionClientServer: []string{compressionNone},
			CompressionServerClient: []string{compressionNone},
		}
		if _, err := rand.Read(serverInit.Cookie[:]); err != nil {
			return
		}
		if err := rc.writePacket(marshal(msgKexInit, serverInit)); err != nil {
			return
		}
		// First packet back is the client's KEXINIT; the second, per
		// spec.md §7, should be the outbound DISCONNECT the transport
		// sends once negotiation fails.
		if _, err := rc.readPacket(); err != nil {
			return
		}
		p, err := rc.readPacket()
		if err != nil {
			return
		}
		disconnectPacket = p
	}()

	cfg := &ClientConfig{
		HostKeyVerifiers: []HostKeyVerifier{
			func(net.Addr, PublicKey) bool { return true },
		},
	}

	_, err := NewTransport(clientConn, "pipe", cfg)
	if err == nil {
		t.Fatal("NewTransport succeeded, want a negotiation failure")
	}
	if !errors.Is(err, ErrNegotiationFailed) {
		t.Fatalf("NewTransport err = %v, want one wrapping ErrNegotiationFailed", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("test server goroutine did not finish in time")
	}

	if len(disconnectPacket) == 0 || disconnectPacket[0] != msgDisconnect {
		t.Fatalf("server did not observe an outbound DISCONNECT, got %v", disconnectPacket)
	}
	var dm disconnectMsg
	if err := unmarshalBody(disconnectPacket[1:], &dm); err != nil {
		t.Fatalf("unmarshal DISCONNECT: %v", err)
	}
	if dm.Reason != DisconnectKeyExchangeFailed {
		t.Fatalf("DISCONNECT reason = %d, want %d (KEX_FAILED)", dm.Reason, DisconnectKeyExchangeFailed)
	}
}
