// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	stdcipher "crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
)

// ErrProtocol is the umbrella error for malformed or out-of-sequence
// wire data, spec.md §7 "ProtocolError".
var ErrProtocol = errors.New("ssh: protocol error")

// ErrMAC signals a failed integrity check, spec.md §7 "MACError".
var ErrMAC = errors.New("ssh: MAC mismatch")

const (
	minPacketLength = 5
	maxPacketLength = 256 * 1024
)

// packetConn is the minimal read/write surface the key exchanger and
// handshake state machine need; handshakeTransport-equivalent code
// (transport.go) implements it on top of an encoder/decoder pair.
type packetConn interface {
	readPacket() ([]byte, error)
	writePacket(payload []byte) error
	Close() error
}

// direction holds the per-direction algorithm state described in
// spec.md §3 "Directional pipeline state". Two instances exist per
// transport (outbound/c→s and inbound/s→c for a client).
type direction struct {
	cipher      CipherMode
	mac         MAC
	compression Compression
	seq         uint32
	authed      bool
}

func newDirection() *direction {
	return &direction{cipher: passthroughCipher{}, mac: nil, compression: noneCompression{}}
}

// passthroughCipher is the "none" cipher installed before the first
// key exchange completes.
type passthroughCipher struct{}

func (passthroughCipher) BlockSize() int             { return 8 }
func (passthroughCipher) Overhead() int              { return 0 }
func (passthroughCipher) AEAD() stdcipher.AEAD       { return nil }
func (passthroughCipher) Nonce(uint32) []byte        { return nil }
func (passthroughCipher) Crypt(dst, src []byte)      { copy(dst, src) }

// blockSize returns max(8, cipher.BlockSize()), spec.md §4.3.1.
func (d *direction) blockSize() int {
	if bs := d.cipher.BlockSize(); bs > 8 {
		return bs
	}
	return 8
}

// install atomically replaces this direction's algorithms. Per spec.md
// §4.4.6, this must only be called at the NEWKEYS boundary.
func (d *direction) install(c CipherMode, m MAC, comp Compression) {
	d.cipher = c
	d.mac = m
	d.compression = comp
	// seq is NOT reset: spec.md invariant 2.
}

func (d *direction) setAuthed() { d.authed = true }

// encoder implements spec.md §4.3.2, serialized by the transport's
// write lock (codec itself holds no lock; the caller — transport.go —
// does).
type encoder struct {
	out *direction
	rnd Random
}

func newEncoder(out *direction, rnd Random) *encoder {
	return &encoder{out: out, rnd: rnd}
}

// encode frames payload per RFC 4253 §6 and returns the wire bytes
// plus the direction's new sequence number (the one after the number
// this packet was sealed or MAC'd under), per spec.md §4.3.2.
func (e *encoder) encode(payload []byte) ([]byte, uint32, error) {
	d := e.out
	if d.compression != nil && (d.authed || !d.compression.Delayed()) {
		var err error
		payload, err = d.compression.Compress(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("ssh: compressing payload: %w", err)
		}
	}

	blockSize := d.blockSize()
	aeadOverhead := d.cipher.Overhead()

	payloadSize := len(payload)
	padLen := blockSizePad(payloadSize, blockSize, aeadOverhead > 0)

	packetLen := payloadSize + padLen + 1
	buf := newBuffer()
	// For AEAD ciphers this length field doubles as associated data
	// (RFC 5647): authenticated but left unencrypted on the wire.
	buf.writeU32(uint32(packetLen))
	buf.writeU8(uint8(padLen))
	buf.writeRaw(payload)

	pad := make([]byte, padLen)
	if err := e.rnd.Fill(pad); err != nil {
		return nil, 0, fmt.Errorf("ssh: filling padding: %w", err)
	}
	buf.writeRaw(pad)

	seq := d.seq
	d.seq++

	wire := buf.bytes()

	if aead := d.cipher.AEAD(); aead != nil {
		nonce := d.cipher.Nonce(seq)
		lengthPrefix := wire[:4]
		ciphertext := aead.Seal(nil, nonce, wire[4:], lengthPrefix)
		out := make([]byte, 4+len(ciphertext))
		copy(out, lengthPrefix)
		copy(out[4:], ciphertext)
		return out, seq + 1, nil
	}

	var macBytes []byte
	if d.mac != nil {
		macBytes = d.mac.Compute(seq, wire)
	}
	d.cipher.Crypt(wire, wire)
	out := append(wire, macBytes...)
	return out, seq + 1, nil
}

// blockSizePad computes pad_len per spec.md §4.3.2 / §9's documented
// over-padding quirk: it unconditionally ensures pad_len >= blockSize
// (never the RFC-minimum 4) when blockSize exceeds 4, which happens
// for every cipher this package supports. This is intentionally kept
// — see SPEC_FULL.md / DESIGN.md "Open Questions".
func blockSizePad(payloadSize, blockSize int, aead bool) int {
	padLen := (-(payloadSize + 5)) % blockSize
	if padLen < 0 {
		padLen += blockSize
	}
	if padLen < blockSize {
		padLen += blockSize
	}
	if padLen < 4 {
		padLen = 4
	}
	return padLen
}

// decoderState is the streaming decoder substate, spec.md §4.3.3.
type decoderState int

const (
	awaitHeader decoderState = iota
	awaitRest
)

// decoder implements spec.md §4.3.3, driven exclusively by the single
// reader goroutine (transport.go's read pump). Framing is read in bulk
// (io.ReadFull) rather than byte-at-a-time since the sole caller is
// already blocked on the socket; awaitHeader/awaitRest mark which half
// of one packet's bytes have been consumed.
type decoder struct {
	in    *direction
	state decoderState
}

func newDecoder(in *direction) *decoder {
	return &decoder{in: in, state: awaitHeader}
}

// readPacket blocks on r until one full packet has been decoded,
// returning its payload (padding/MAC stripped, decompressed).
func (dec *decoder) readPacket(r io.Reader) ([]byte, error) {
	d := dec.in
	blockSize := d.blockSize()

	if aead := d.cipher.AEAD(); aead != nil {
		return dec.readAEADPacket(r, aead, blockSize)
	}

	dec.state = awaitHeader
	header := make([]byte, blockSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	plainHeader := make([]byte, blockSize)
	d.cipher.Crypt(plainHeader, header)

	packetLen := be32(plainHeader[0:4])
	if packetLen < minPacketLength || packetLen > maxPacketLength {
		return nil, fmt.Errorf("%w: invalid packet_length %d", ErrProtocol, packetLen)
	}
	if int(packetLen+4)%blockSize != 0 {
		return nil, fmt.Errorf("%w: packet_length %d not aligned to block size %d", ErrProtocol, packetLen, blockSize)
	}

	dec.state = awaitRest
	total := int(packetLen) + 4
	rest := make([]byte, total-blockSize)
	if len(rest) > 0 {
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, err
		}
	}

	macLen := 0
	if d.mac != nil {
		macLen = d.mac.Size()
	}
	macBytes := make([]byte, macLen)
	if macLen > 0 {
		if _, err := io.ReadFull(r, macBytes); err != nil {
			return nil, err
		}
	}

	full := make([]byte, total)
	copy(full, plainHeader)
	if total > blockSize {
		d.cipher.Crypt(full[blockSize:], rest)
	}

	// RFC 4253 §6.4 / spec.md §4.3.3: the MAC covers seq || the
	// *decrypted* packet, even though on the wire it trails the
	// ciphertext — SSH encrypts after computing the MAC, not the
	// other way around.
	if d.mac != nil {
		expected := d.mac.Compute(d.seq, full)
		if subtle.ConstantTimeCompare(expected, macBytes) != 1 {
			return nil, ErrMAC
		}
	}

	d.seq++

	padLen := full[4]
	if int(padLen)+1 > int(packetLen) {
		return nil, fmt.Errorf("%w: padding_length %d exceeds packet_length %d", ErrProtocol, padLen, packetLen)
	}
	payload := full[5 : 5+int(packetLen)-int(padLen)-1]

	if d.compression != nil && (d.authed || !d.compression.Delayed()) {
		out, err := d.compression.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("ssh: decompressing payload: %w", err)
		}
		payload = out
	}

	return payload, nil
}

func (dec *decoder) readAEADPacket(r io.Reader, aead stdcipher.AEAD, blockSize int) ([]byte, error) {
	d := dec.in
	lengthPrefix := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthPrefix); err != nil {
		return nil, err
	}
	packetLen := be32(lengthPrefix)
	if packetLen < minPacketLength || packetLen > maxPacketLength {
		return nil, fmt.Errorf("%w: invalid packet_length %d", ErrProtocol, packetLen)
	}

	overhead := d.cipher.Overhead()
	ciphertext := make([]byte, int(packetLen)+overhead)
	if _, err := io.ReadFull(r, ciphertext); err != nil {
		return nil, err
	}

	seq := d.seq
	d.seq++
	nonce := d.cipher.Nonce(seq)
	plain, err := aead.Open(nil, nonce, ciphertext, lengthPrefix)
	if err != nil {
		return nil, ErrMAC
	}

	padLen := plain[0]
	if int(padLen)+1 > int(packetLen) {
		return nil, fmt.Errorf("%w: padding_length %d exceeds packet_length %d", ErrProtocol, padLen, packetLen)
	}
	payload := plain[1 : 1+int(packetLen)-int(padLen)-1]

	if d.compression != nil && (d.authed || !d.compression.Delayed()) {
		out, err := d.compression.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("ssh: decompressing payload: %w", err)
		}
		payload = out
	}
	return payload, nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
