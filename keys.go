// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"math/big"

	_ "crypto/sha1"
)

// Host-key algorithm names, RFC 4253 §6.6 plus RFC 5656 / RFC 8709.
const (
	KeyAlgoRSA      = "ssh-rsa"
	KeyAlgoDSA      = "ssh-dss"
	KeyAlgoECDSA256 = "ecdsa-sha2-nistp256"
	KeyAlgoECDSA384 = "ecdsa-sha2-nistp384"
	KeyAlgoECDSA521 = "ecdsa-sha2-nistp521"
	KeyAlgoED25519  = "ssh-ed25519"
)

// PublicKey is the signature-verification collaborator. It wraps a
// parsed SSH wire-format public key blob; the transport obtains one by
// calling ParsePublicKey directly (the Registry holds only host-key
// algorithm names, not verifier implementations).
type PublicKey interface {
	// Type returns the host-key algorithm name this key was encoded
	// under.
	Type() string
	// Marshal returns the SSH wire-format public key blob.
	Marshal() []byte
	// Verify checks sig against data under this key, returning nil iff
	// the signature is valid.
	Verify(data, sig []byte) error
}

// ParsePublicKey decodes an SSH wire-format public key blob (the
// format used for KEXINIT host keys and the contents of
// authorized_keys lines) into a PublicKey.
func ParsePublicKey(in []byte) (PublicKey, error) {
	b := newBufferFromBytes(in)
	algo, err := b.readString()
	if err != nil {
		return nil, fmt.Errorf("ssh: parsing public key: %w", err)
	}
	switch string(algo) {
	case KeyAlgoRSA:
		return parseRSA(b)
	case KeyAlgoED25519:
		return parseED25519(b)
	case KeyAlgoECDSA256:
		return parseECDSA(b, elliptic.P256(), KeyAlgoECDSA256)
	case KeyAlgoECDSA384:
		return parseECDSA(b, elliptic.P384(), KeyAlgoECDSA384)
	case KeyAlgoECDSA521:
		return parseECDSA(b, elliptic.P521(), KeyAlgoECDSA521)
	default:
		return nil, fmt.Errorf("ssh: unsupported host key algorithm %q", algo)
	}
}

type rsaPublicKey struct {
	key *rsa.PublicKey
	raw []byte
}

func parseRSA(b *buffer) (PublicKey, error) {
	eBytes, err := b.readString()
	if err != nil {
		return nil, err
	}
	nBytes, err := b.readString()
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eBytes)
	n := new(big.Int).SetBytes(nBytes)
	if !e.IsInt64() {
		return nil, fmt.Errorf("ssh: rsa public exponent too large")
	}
	key := &rsa.PublicKey{N: n, E: int(e.Int64())}
	return &rsaPublicKey{key: key, raw: marshalRSA(key)}, nil
}

func marshalRSA(key *rsa.PublicKey) []byte {
	buf := newBuffer()
	buf.writeString([]byte(KeyAlgoRSA))
	buf.writeMpint(big.NewInt(int64(key.E)))
	buf.writeMpint(key.N)
	return buf.bytes()
}

func (k *rsaPublicKey) Type() string    { return KeyAlgoRSA }
func (k *rsaPublicKey) Marshal() []byte { return k.raw }

// Verify checks an RFC 4253 §6.6 ssh-rsa signature: PKCS#1 v1.5 over
// SHA-1 of data, sig being a length-prefixed "ssh-rsa" + raw signature
// blob as produced by buildDataSignedForAuth-style framing.
func (k *rsaPublicKey) Verify(data, sigBlob []byte) error {
	sig, err := unwrapSignature(KeyAlgoRSA, sigBlob)
	if err != nil {
		return err
	}
	digest := sha1Sum(data)
	return rsa.VerifyPKCS1v15(k.key, crypto.SHA1, digest, sig)
}

type ed25519PublicKey struct {
	key ed25519.PublicKey
	raw []byte
}

func parseED25519(b *buffer) (PublicKey, error) {
	keyBytes, err := b.readString()
	if err != nil {
		return nil, err
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ssh: invalid ed25519 public key length %d", len(keyBytes))
	}
	key := ed25519.PublicKey(keyBytes)
	buf := newBuffer()
	buf.writeString([]byte(KeyAlgoED25519))
	buf.writeString(keyBytes)
	return &ed25519PublicKey{key: key, raw: buf.bytes()}, nil
}

func (k *ed25519PublicKey) Type() string    { return KeyAlgoED25519 }
func (k *ed25519PublicKey) Marshal() []byte { return k.raw }

func (k *ed25519PublicKey) Verify(data, sigBlob []byte) error {
	sig, err := unwrapSignature(KeyAlgoED25519, sigBlob)
	if err != nil {
		return err
	}
	if !ed25519.Verify(k.key, data, sig) {
		return fmt.Errorf("ssh: ed25519 signature verification failed")
	}
	return nil
}

type ecdsaPublicKey struct {
	key  *ecdsa.PublicKey
	algo string
	raw  []byte
}

func parseECDSA(b *buffer, curve elliptic.Curve, algo string) (PublicKey, error) {
	if _, err := b.readString(); err != nil { // curve name, redundant with algo
		return nil, err
	}
	pointBytes, err := b.readString()
	if err != nil {
		return nil, err
	}
	x, y := elliptic.Unmarshal(curve, pointBytes)
	if x == nil {
		return nil, fmt.Errorf("ssh: invalid %s point encoding", algo)
	}
	key := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	buf := newBuffer()
	buf.writeString([]byte(algo))
	buf.writeString([]byte(curveName(algo)))
	buf.writeString(pointBytes)
	return &ecdsaPublicKey{key: key, algo: algo, raw: buf.bytes()}, nil
}

func curveName(algo string) string {
	switch algo {
	case KeyAlgoECDSA256:
		return "nistp256"
	case KeyAlgoECDSA384:
		return "nistp384"
	default:
		return "nistp521"
	}
}

func (k *ecdsaPublicKey) Type() string    { return k.algo }
func (k *ecdsaPublicKey) Marshal() []byte { return k.raw }

func (k *ecdsaPublicKey) Verify(data, sigBlob []byte) error {
	sig, err := unwrapSignature(k.algo, sigBlob)
	if err != nil {
		return err
	}
	b := newBufferFromBytes(sig)
	r, err := b.readMpint()
	if err != nil {
		return err
	}
	s, err := b.readMpint()
	if err != nil {
		return err
	}
	digest := hashForCurve(k.algo, data)
	if !ecdsa.Verify(k.key, digest, r, s) {
		return fmt.Errorf("ssh: ecdsa signature verification failed")
	}
	return nil
}

func hashForCurve(algo string, data []byte) []byte {
	switch algo {
	case KeyAlgoECDSA256:
		h := sha256.Sum256(data)
		return h[:]
	case KeyAlgoECDSA384:
		h := sha512.Sum384(data)
		return h[:]
	default:
		h := sha512.Sum512(data)
		return h[:]
	}
}

// unwrapSignature strips the "algorithm-name" + length-prefixed
// signature-blob framing that wraps every SSH signature, RFC 4253
// §6.6, verifying the embedded algorithm name matches expected.
func unwrapSignature(expected string, sigBlob []byte) ([]byte, error) {
	b := newBufferFromBytes(sigBlob)
	algo, err := b.readString()
	if err != nil {
		return nil, err
	}
	if string(algo) != expected {
		return nil, fmt.Errorf("ssh: signature algorithm mismatch: got %q want %q", algo, expected)
	}
	return b.readString()
}

