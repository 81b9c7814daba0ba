// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher algorithm names, RFC 4253 §6.3 plus the widely deployed
// OpenSSH AEAD extensions (RFC 5647-style fixed-nonce AEAD).
const (
	cipherAES128CTR    = "aes128-ctr"
	cipherAES192CTR    = "aes192-ctr"
	cipherAES256CTR    = "aes256-ctr"
	cipherAES128GCM    = "aes128-gcm@openssh.com"
	cipherChaCha20Poly = "chacha20-poly1305@openssh.com"
)

// ctrCipher is a CTR-mode CipherMode paired with a separate MAC
// (Overhead is 0, AEAD is nil — the codec computes/verifies a MAC
// itself for this kind of cipher).
type ctrCipher struct {
	stream stdcipher.Stream
	block  int
}

func (c *ctrCipher) BlockSize() int         { return c.block }
func (c *ctrCipher) Overhead() int          { return 0 }
func (c *ctrCipher) AEAD() stdcipher.AEAD   { return nil }
func (c *ctrCipher) Nonce(seq uint32) []byte { return nil }
func (c *ctrCipher) Crypt(dst, src []byte)  { c.stream.XORKeyStream(dst, src) }

func newAESCTR(keySize int) cipherFactory {
	return func(key, iv []byte) (CipherMode, error) {
		if len(key) != keySize {
			return nil, fmt.Errorf("ssh: aes-ctr key must be %d bytes", keySize)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return &ctrCipher{stream: stdcipher.NewCTR(block, iv), block: aes.BlockSize}, nil
	}
}

// aeadCipher wraps a crypto/cipher.AEAD under the RFC 5647 fixed-nonce
// convention: the IV derived at key-exchange time is fixed except for
// its low 4 bytes, which are replaced by the per-packet sequence
// number for each Seal/Open. Overhead()>0 signals the codec to use the
// AEAD path instead of a separate MAC.
type aeadCipher struct {
	aead  stdcipher.AEAD
	iv    []byte
	block int
}

func (c *aeadCipher) BlockSize() int       { return c.block }
func (c *aeadCipher) Overhead() int        { return c.aead.Overhead() }
func (c *aeadCipher) AEAD() stdcipher.AEAD { return c.aead }
func (c *aeadCipher) Crypt(dst, src []byte) {
	panic("ssh: Crypt is not used for AEAD cipher modes; see Nonce+AEAD()")
}

// Nonce computes the per-packet nonce for sequence number seq.
func (c *aeadCipher) Nonce(seq uint32) []byte {
	n := make([]byte, len(c.iv))
	copy(n, c.iv)
	off := len(n) - 4
	n[off] = byte(seq >> 24)
	n[off+1] = byte(seq >> 16)
	n[off+2] = byte(seq >> 8)
	n[off+3] = byte(seq)
	return n
}

func newAES128GCM() cipherFactory {
	return func(key, iv []byte) (CipherMode, error) {
		if len(key) != 16 {
			return nil, fmt.Errorf("ssh: aes128-gcm key must be 16 bytes")
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err := stdcipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		return &aeadCipher{aead: aead, iv: append([]byte(nil), iv...), block: 16}, nil
	}
}

func newChaCha20Poly1305() cipherFactory {
	return func(key, iv []byte) (CipherMode, error) {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("ssh: chacha20-poly1305 key must be %d bytes", chacha20poly1305.KeySize)
		}
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
		return &aeadCipher{aead: aead, iv: append([]byte(nil), iv...), block: 8}, nil
	}
}

// cipherKeySize / cipherIVSize report the key and IV material length
// (in bytes) a cipher name requires, used when deriving session keys
// (spec.md §4.4.4).
func cipherKeySize(name string) int {
	switch name {
	case cipherAES128CTR, cipherAES128GCM:
		return 16
	case cipherAES192CTR:
		return 24
	case cipherAES256CTR:
		return 32
	case cipherChaCha20Poly:
		return chacha20poly1305.KeySize
	default:
		return 0
	}
}

func cipherIVSize(name string) int {
	switch name {
	case cipherAES128CTR, cipherAES192CTR, cipherAES256CTR:
		return aes.BlockSize
	case cipherAES128GCM:
		return 12
	case cipherChaCha20Poly:
		return 12
	default:
		return 0
	}
}
