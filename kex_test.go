// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"testing"
)

func TestEncodeMpintZero(t *testing.T) {
	if got := encodeMpint(big.NewInt(0)); !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Fatalf("encodeMpint(0) = %v, want zero-length string", got)
	}
}

func TestEncodeMpintHighBit(t *testing.T) {
	got := encodeMpint(big.NewInt(0xff))
	want := []byte{0, 0, 0, 2, 0, 0xff}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeMpint(0xff) = %v, want %v", got, want)
	}
}

func TestWriteHashStringFraming(t *testing.T) {
	h := sha256.New()
	writeHashString(h, []byte("abc"))
	want := sha256.New()
	want.Write([]byte{0, 0, 0, 3})
	want.Write([]byte("abc"))
	if !bytes.Equal(h.Sum(nil), want.Sum(nil)) {
		t.Fatalf("writeHashString did not length-prefix its input")
	}
}

func TestWriteHashMpintNoDoubleLengthPrefix(t *testing.T) {
	h := sha256.New()
	writeHashMpint(h, big.NewInt(42))
	want := sha256.New()
	want.Write(encodeMpint(big.NewInt(42)))
	if !bytes.Equal(h.Sum(nil), want.Sum(nil)) {
		t.Fatalf("writeHashMpint must hash exactly the mpint encoding, no extra prefix")
	}
}

func TestRandFieldElementBounds(t *testing.T) {
	p := big.NewInt(4999) // small prime-ish bound; bounds check doesn't require primality
	for i := 0; i < 8; i++ {
		x, err := randFieldElement(rand.Reader, p)
		if err != nil {
			t.Fatalf("randFieldElement: %v", err)
		}
		if x.Sign() <= 0 || x.Cmp(p) >= 0 {
			t.Fatalf("randFieldElement returned %v, want in [1, %v)", x, p)
		}
	}
}
