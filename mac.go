// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// MAC algorithm names, RFC 4253 §6.4.
const (
	macHMACSHA1     = "hmac-sha1"
	macHMACSHA1_96  = "hmac-sha1-96"
	macHMACSHA2_256 = "hmac-sha2-256"
)

type hmacMAC struct {
	newHash func() hash.Hash
	key     []byte
	size    int // truncated tag length, may be < full hash size
}

func (m *hmacMAC) Size() int { return m.size }

func (m *hmacMAC) Compute(seq uint32, data []byte) []byte {
	h := hmac.New(m.newHash, m.key)
	var seqBuf [4]byte
	seqBuf[0] = byte(seq >> 24)
	seqBuf[1] = byte(seq >> 16)
	seqBuf[2] = byte(seq >> 8)
	seqBuf[3] = byte(seq)
	h.Write(seqBuf[:])
	h.Write(data)
	full := h.Sum(nil)
	return full[:m.size]
}

func newHMACSHA1() macFactory {
	return func(key []byte) MAC {
		return &hmacMAC{newHash: sha1.New, key: key, size: sha1.Size}
	}
}

func newHMACSHA1_96() macFactory {
	return func(key []byte) MAC {
		return &hmacMAC{newHash: sha1.New, key: key, size: 12}
	}
}

func newHMACSHA256() macFactory {
	return func(key []byte) MAC {
		return &hmacMAC{newHash: sha256.New, key: key, size: sha256.Size}
	}
}

// macKeySize returns the key-material length (in bytes) a MAC name
// requires; for hmac-* this is always the underlying hash's native
// output size regardless of truncation (RFC 4253 §6.4).
func macKeySize(name string) int {
	switch name {
	case macHMACSHA1, macHMACSHA1_96:
		return sha1.Size
	case macHMACSHA2_256:
		return sha256.Size
	default:
		return 0
	}
}
