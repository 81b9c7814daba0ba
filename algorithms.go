// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/cipher"
	"fmt"
	"io"
)

// Pluggable algorithm interfaces, spec.md §6. The transport core and
// key exchanger depend only on these; concrete implementations are
// supplied by the registry's default factories (registry_default.go)
// or by a caller substituting its own.

// CipherMode is a stream/block cipher instance bound to one direction.
type CipherMode interface {
	// BlockSize reports the cipher's natural block size; the codec
	// uses max(8, BlockSize) when computing padding.
	BlockSize() int
	// XORKeyStream (for stream-shaped ciphers) or block-mode Crypt
	// encrypts or decrypts buf in place, depending on how the mode was
	// initialized.
	Crypt(dst, src []byte)
	// Overhead is the authentication tag length for an AEAD cipher, or
	// 0 for a cipher that requires a separate MAC.
	Overhead() int
	// AEAD returns the underlying AEAD for cipher modes with
	// Overhead() > 0; nil otherwise.
	AEAD() cipher.AEAD
	// Nonce computes the per-packet AEAD nonce for sequence number
	// seq; nil for non-AEAD cipher modes.
	Nonce(seq uint32) []byte
}

// MAC is a keyed message-authentication code bound to one direction.
type MAC interface {
	Size() int
	// Compute returns the tag for (seq || data).
	Compute(seq uint32, data []byte) []byte
}

// Compression applies a symmetric transform to packet payloads.
type Compression interface {
	Compress(in []byte) ([]byte, error)
	Decompress(in []byte) ([]byte, error)
	// Delayed reports whether this compression mode must not be
	// applied until authentication has completed (the
	// "zlib@openssh.com" convention).
	Delayed() bool
}

// compressionNone is the RFC 4253 §6.2 "none" compression algorithm name.
const compressionNone = "none"

// noneCompression is the RFC 4253 "none" compression algorithm.
type noneCompression struct{}

func (noneCompression) Compress(in []byte) ([]byte, error)   { return in, nil }
func (noneCompression) Decompress(in []byte) ([]byte, error) { return in, nil }
func (noneCompression) Delayed() bool                        { return false }

// Random is a source of cryptographically secure random bytes, used
// for padding, KEXINIT cookies, and ephemeral key material.
type Random interface {
	Fill(buf []byte) error
}

type ioRandom struct{ r io.Reader }

func (r ioRandom) Fill(buf []byte) error {
	_, err := io.ReadFull(r.r, buf)
	return err
}

// KeyExchange runs one side of a single key-exchange method. Client
// implements the client half of spec.md §4.4; the transport hands it
// the connection and Client writes and reads the KEX follow-up packets
// itself. There is no per-packet feed method.
type KeyExchange interface {
	// Client runs the full client exchange over conn using magics and
	// rand, and returns the shared secret, exchange hash, raw host key
	// blob and signature.
	Client(conn packetConn, rnd io.Reader, magics *handshakeMagics) (*kexResult, error)
}

// kexResult carries everything a completed key exchange produced.
type kexResult struct {
	K         []byte // shared secret, as an mpint-encoded byte string
	H         []byte // exchange hash
	HostKey   []byte // raw host public key blob
	Signature []byte // raw signature blob over H
	HashFunc  func() hashState
	SessionID []byte
}

// hashState is the minimal surface of hash.Hash this package needs,
// kept distinct from crypto.Hash so a caller can plug in any digest
// implementation (spec.md §6 Digest interface).
type hashState interface {
	io.Writer
	Sum(b []byte) []byte
	Size() int
}

// handshakeMagics bundles the four byte strings hashed into every KEX
// exchange hash (RFC 4253 §8).
type handshakeMagics struct {
	clientVersion, serverVersion []byte
	clientKexInit, serverKexInit []byte
}

// The *Factory types construct a new instance of an algorithm; the
// Registry maps each negotiated name to one. One factory type exists
// per algorithm kind.
type cipherFactory func(key, iv []byte) (CipherMode, error)
type macFactory func(key []byte) MAC
type compressionFactory func() Compression
type kexFactory func() KeyExchange

// Registry is the name→factory mapping for each pluggable algorithm
// kind, spec.md §4.2. Lists are walked in registration order, which is
// local preference order.
type Registry struct {
	kexNames   []string
	kexFac     map[string]kexFactory
	hostKeys   []string
	cipherNames []string
	cipherFac  map[string]cipherFactory
	cipherSize map[string]int // key size in bytes
	ivSize     map[string]int
	macNames   []string
	macFac     map[string]macFactory
	macKeySize map[string]int
	compNames  []string
	compFac    map[string]compressionFactory
}

// ErrUnknownAlgorithm is returned by the Registry's create* methods
// (createKex, createCipher, createMAC, createCompression) when no factory
// is registered under the requested name.
var ErrUnknownAlgorithm = fmt.Errorf("ssh: unknown algorithm")

func newRegistry() *Registry {
	return &Registry{
		kexFac:     map[string]kexFactory{},
		cipherFac:  map[string]cipherFactory{},
		cipherSize: map[string]int{},
		ivSize:     map[string]int{},
		macFac:     map[string]macFactory{},
		macKeySize: map[string]int{},
		compFac:    map[string]compressionFactory{},
	}
}

func (r *Registry) addKex(name string, f kexFactory) {
	r.kexNames = append(r.kexNames, name)
	r.kexFac[name] = f
}

func (r *Registry) addHostKeyAlgo(name string) {
	r.hostKeys = append(r.hostKeys, name)
}

func (r *Registry) addCipher(name string, keySize, ivSize int, f cipherFactory) {
	r.cipherNames = append(r.cipherNames, name)
	r.cipherFac[name] = f
	r.cipherSize[name] = keySize
	r.ivSize[name] = ivSize
}

func (r *Registry) addMAC(name string, keySize int, f macFactory) {
	r.macNames = append(r.macNames, name)
	r.macFac[name] = f
	r.macKeySize[name] = keySize
}

func (r *Registry) addCompression(name string, f compressionFactory) {
	r.compNames = append(r.compNames, name)
	r.compFac[name] = f
}

func (r *Registry) createKex(name string) (KeyExchange, error) {
	f, ok := r.kexFac[name]
	if !ok {
		return nil, fmt.Errorf("%w: kex %q", ErrUnknownAlgorithm, name)
	}
	return f(), nil
}

func (r *Registry) createCipher(name string, key, iv []byte) (CipherMode, error) {
	f, ok := r.cipherFac[name]
	if !ok {
		return nil, fmt.Errorf("%w: cipher %q", ErrUnknownAlgorithm, name)
	}
	return f(key, iv)
}

func (r *Registry) createMAC(name string, key []byte) (MAC, error) {
	f, ok := r.macFac[name]
	if !ok {
		return nil, fmt.Errorf("%w: mac %q", ErrUnknownAlgorithm, name)
	}
	return f(key), nil
}

func (r *Registry) createCompression(name string) (Compression, error) {
	if name == compressionNone || name == "" {
		return noneCompression{}, nil
	}
	f, ok := r.compFac[name]
	if !ok {
		return nil, fmt.Errorf("%w: compression %q", ErrUnknownAlgorithm, name)
	}
	return f(), nil
}
