// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "sync"

// Preference-ordered default algorithm lists, grounded on the
// teacher's common.go defaultCiphers/defaultKexAlgos/supportedMACs/
// supportedHostKeyAlgos tables, trimmed to what this package's default
// registry actually implements (no arcfour, no 3DES, no DSA — dead
// algorithms not worth carrying into a fresh implementation).
var (
	defaultKexOrder = []string{
		kexAlgoCurve25519SHA256,
		kexAlgoDH14SHA1,
	}
	defaultCipherOrder = []string{
		cipherAES128GCM,
		cipherChaCha20Poly,
		cipherAES128CTR,
		cipherAES192CTR,
		cipherAES256CTR,
	}
	defaultMACOrder = []string{
		macHMACSHA2_256,
		macHMACSHA1,
		macHMACSHA1_96,
	}
	defaultHostKeyOrder = []string{
		KeyAlgoED25519,
		KeyAlgoECDSA256,
		KeyAlgoECDSA384,
		KeyAlgoECDSA521,
		KeyAlgoRSA,
	}
)

var (
	defaultRegistryOnce sync.Once
	defaultRegistryInst *Registry
)

// DefaultRegistry returns the package-wide default algorithm registry,
// backed by golang.org/x/crypto primitives (SPEC_FULL.md §3). Callers
// needing a custom algorithm set build their own Registry and assign
// it to Config.Registry instead of mutating this one.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r := newRegistry()

		r.addKex(kexAlgoCurve25519SHA256, newCurve25519SHA256())
		r.addKex(kexAlgoDH14SHA1, newDHGroup14SHA1())

		r.addCipher(cipherAES128GCM, cipherKeySize(cipherAES128GCM), cipherIVSize(cipherAES128GCM), newAES128GCM())
		r.addCipher(cipherChaCha20Poly, cipherKeySize(cipherChaCha20Poly), cipherIVSize(cipherChaCha20Poly), newChaCha20Poly1305())
		r.addCipher(cipherAES128CTR, cipherKeySize(cipherAES128CTR), cipherIVSize(cipherAES128CTR), newAESCTR(16))
		r.addCipher(cipherAES192CTR, cipherKeySize(cipherAES192CTR), cipherIVSize(cipherAES192CTR), newAESCTR(24))
		r.addCipher(cipherAES256CTR, cipherKeySize(cipherAES256CTR), cipherIVSize(cipherAES256CTR), newAESCTR(32))

		r.addMAC(macHMACSHA2_256, macKeySize(macHMACSHA2_256), newHMACSHA256())
		r.addMAC(macHMACSHA1, macKeySize(macHMACSHA1), newHMACSHA1())
		r.addMAC(macHMACSHA1_96, macKeySize(macHMACSHA1_96), newHMACSHA1_96())

		r.addCompression(compressionNone, func() Compression { return noneCompression{} })

		for _, name := range defaultHostKeyOrder {
			r.addHostKeyAlgo(name)
		}

		// Re-order the name lists the registry exposes by preference,
		// independent of registration order above, to match
		// defaultKexOrder/defaultCipherOrder/defaultMACOrder exactly.
		r.kexNames = reorder(r.kexNames, defaultKexOrder)
		r.cipherNames = reorder(r.cipherNames, defaultCipherOrder)
		r.macNames = reorder(r.macNames, defaultMACOrder)

		defaultRegistryInst = r
	})
	return defaultRegistryInst
}

func reorder(have, want []string) []string {
	out := make([]string, 0, len(have))
	seen := map[string]bool{}
	for _, w := range want {
		for _, h := range have {
			if h == w {
				out = append(out, w)
				seen[w] = true
				break
			}
		}
	}
	for _, h := range have {
		if !seen[h] {
			out = append(out, h)
		}
	}
	return out
}
