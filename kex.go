// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/curve25519"
)

// Key-exchange algorithm names, RFC 4253 §8 plus RFC 5656/RFC 8731.
const (
	kexAlgoDH14SHA1         = "diffie-hellman-group14-sha1"
	kexAlgoDH1SHA1          = "diffie-hellman-group1-sha1"
	kexAlgoCurve25519SHA256 = "curve25519-sha256"
)

const (
	msgKexDHInit  = 30
	msgKexDHReply = 31

	msgKexECDHInit  = 30
	msgKexECDHReply = 31
)

// --- classic (finite-field) Diffie-Hellman, RFC 4253 §8 ---

type dhGroup struct {
	g, p *big.Int
	hash func() hashState
}

type kexDHGroupMsg struct {
	E *big.Int
}

type kexDHReplyMsg struct {
	HostKey   []byte
	F         *big.Int
	Signature []byte
}

// group14 is the 2048-bit MODP group from RFC 3526 §3.
var group14Prime = mustHex(
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF")

func mustHex(s string) *big.Int {
	n := new(big.Int)
	n.SetString(s, 16)
	return n
}

func newDHGroup14SHA1() kexFactory {
	return func() KeyExchange {
		return &dhGroupKex{group: dhGroup{g: big.NewInt(2), p: group14Prime, hash: sha1Digest{}.New}}
	}
}

type dhGroupKex struct {
	group dhGroup
}

func (kex *dhGroupKex) Client(conn packetConn, rnd io.Reader, magics *handshakeMagics) (*kexResult, error) {
	x, err := randFieldElement(rnd, kex.group.p)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).Exp(kex.group.g, x, kex.group.p)

	if err := conn.writePacket(marshal(msgKexDHInit, kexDHGroupMsg{E: e})); err != nil {
		return nil, err
	}

	packet, err := conn.readPacket()
	if err != nil {
		return nil, err
	}
	if packet[0] != msgKexDHReply {
		return nil, unexpectedMessageError(msgKexDHReply, packet[0])
	}
	var reply kexDHReplyMsg
	if err := unmarshalBody(packet[1:], &reply); err != nil {
		return nil, err
	}

	if reply.F.Sign() <= 0 || reply.F.Cmp(kex.group.p) >= 0 {
		return nil, errors.New("ssh: DH parameter out of bounds")
	}
	k := new(big.Int).Exp(reply.F, x, kex.group.p)

	h := kex.group.hash()
	writeHashString(h, magics.clientVersion)
	writeHashString(h, magics.serverVersion)
	writeHashString(h, magics.clientKexInit)
	writeHashString(h, magics.serverKexInit)
	writeHashString(h, reply.HostKey)
	writeHashMpint(h, e)
	writeHashMpint(h, reply.F)
	writeHashMpint(h, k)

	return &kexResult{
		H:         h.Sum(nil),
		K:         encodeMpint(k),
		HostKey:   reply.HostKey,
		Signature: reply.Signature,
		HashFunc:  kex.group.hash,
	}, nil
}

func randFieldElement(rnd io.Reader, p *big.Int) (*big.Int, error) {
	// Pick x in [1, p-1] by rejection sampling: draw p's byte length of
	// random bytes and retry until the value falls in range, so no
	// modulo reduction (and no modulo bias) is involved.
	bitLen := p.BitLen()
	buf := make([]byte, (bitLen+7)/8)
	for {
		if _, err := io.ReadFull(rnd, buf); err != nil {
			return nil, err
		}
		x := new(big.Int).SetBytes(buf)
		if x.Sign() > 0 && x.Cmp(p) < 0 {
			return x, nil
		}
	}
}

// --- curve25519-sha256, RFC 8731 ---

type kexECDHInitMsg struct {
	Q []byte
}

type kexECDHReplyMsg struct {
	HostKey   []byte
	Q         []byte
	Signature []byte
}

func newCurve25519SHA256() kexFactory {
	return func() KeyExchange { return &curve25519Kex{} }
}

type curve25519Kex struct{}

func (curve25519Kex) Client(conn packetConn, rnd io.Reader, magics *handshakeMagics) (*kexResult, error) {
	var priv [32]byte
	if _, err := io.ReadFull(rnd, priv[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	if err := conn.writePacket(marshal(msgKexECDHInit, kexECDHInitMsg{Q: pub})); err != nil {
		return nil, err
	}

	packet, err := conn.readPacket()
	if err != nil {
		return nil, err
	}
	if packet[0] != msgKexECDHReply {
		return nil, unexpectedMessageError(msgKexECDHReply, packet[0])
	}
	var reply kexECDHReplyMsg
	if err := unmarshalBody(packet[1:], &reply); err != nil {
		return nil, err
	}
	if len(reply.Q) != 32 {
		return nil, fmt.Errorf("ssh: invalid curve25519 peer public value length %d", len(reply.Q))
	}

	secret, err := curve25519.X25519(priv[:], reply.Q)
	if err != nil {
		return nil, fmt.Errorf("ssh: curve25519 key agreement failed: %w", err)
	}
	k := new(big.Int).SetBytes(secret)

	h := sha256Digest{}.New()
	writeHashString(h, magics.clientVersion)
	writeHashString(h, magics.serverVersion)
	writeHashString(h, magics.clientKexInit)
	writeHashString(h, magics.serverKexInit)
	writeHashString(h, reply.HostKey)
	writeHashString(h, pub)
	writeHashString(h, reply.Q)
	writeHashMpint(h, k)

	return &kexResult{
		H:         h.Sum(nil),
		K:         encodeMpint(k),
		HostKey:   reply.HostKey,
		Signature: reply.Signature,
		HashFunc:  sha256Digest{}.New,
	}, nil
}

// writeHashString/writeHashMpint feed length-prefixed fields into a
// running exchange-hash digest, matching the wire encoding of the same
// values (RFC 4253 §8).
func writeHashString(h io.Writer, b []byte) {
	var lenBuf [4]byte
	lenBuf[0] = byte(len(b) >> 24)
	lenBuf[1] = byte(len(b) >> 16)
	lenBuf[2] = byte(len(b) >> 8)
	lenBuf[3] = byte(len(b))
	h.Write(lenBuf[:])
	h.Write(b)
}

// writeHashMpint hashes v in its self-delimiting mpint encoding
// directly — unlike writeHashString, it does not add an extra outer
// length prefix, since the mpint encoding already carries one (RFC
// 4253 §8 hashes e, f and K this way).
func writeHashMpint(h io.Writer, v *big.Int) {
	h.Write(encodeMpint(v))
}

// encodeMpint returns the mpint encoding (spec.md §3) of v, including
// its 32-bit length prefix.
func encodeMpint(v *big.Int) []byte {
	b := newBuffer()
	b.writeMpint(v)
	return b.bytes()
}
