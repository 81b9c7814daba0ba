// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

// derivedKeys holds the six key-derivation outputs of spec.md
// §4.4.4, keyed by the RFC 4253 §7.2 letter used to derive them.
type derivedKeys struct {
	ivClientToServer  []byte
	ivServerToClient  []byte
	keyClientToServer []byte
	keyServerToClient []byte
	macClientToServer []byte
	macServerToClient []byte
}

// deriveKeys computes all six keys from a completed key exchange,
// spec.md §4.4.4, sizing each to what algs requires.
func deriveKeys(newHash func() hashState, k, h, sessionID []byte, algs *Algorithms) *derivedKeys {
	ivCSLen := cipherIVSize(algs.W.Cipher)
	ivSCLen := cipherIVSize(algs.R.Cipher)
	keyCSLen := cipherKeySize(algs.W.Cipher)
	keySCLen := cipherKeySize(algs.R.Cipher)
	macCSLen := macKeySize(algs.W.MAC)
	macSCLen := macKeySize(algs.R.MAC)

	return &derivedKeys{
		ivClientToServer:  expand(newHash, k, h, sessionID, 'A', ivCSLen),
		ivServerToClient:  expand(newHash, k, h, sessionID, 'B', ivSCLen),
		keyClientToServer: expand(newHash, k, h, sessionID, 'C', keyCSLen),
		keyServerToClient: expand(newHash, k, h, sessionID, 'D', keySCLen),
		macClientToServer: expand(newHash, k, h, sessionID, 'E', macCSLen),
		macServerToClient: expand(newHash, k, h, sessionID, 'F', macSCLen),
	}
}

// expand computes K1 = H(K || H || letter || session_id), then extends
// via Kn+1 = H(K || H || K1 || ... || Kn) until at least n bytes are
// available, truncating to exactly n — spec.md §4.4.4 "Key extension".
func expand(newHash func() hashState, k, h, sessionID []byte, letter byte, n int) []byte {
	if n == 0 {
		return nil
	}
	digest := newHash()
	digest.Write(k)
	digest.Write(h)
	digest.Write([]byte{letter})
	digest.Write(sessionID)
	out := digest.Sum(nil)

	for len(out) < n {
		digest = newHash()
		digest.Write(k)
		digest.Write(h)
		digest.Write(out)
		out = append(out, digest.Sum(nil)...)
	}
	return out[:n]
}
