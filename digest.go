// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/sha1"
	"crypto/sha256"
)

// Digest is the pluggable hash collaborator used by key exchange to
// produce H and derive session keys (spec.md §6).
type Digest interface {
	New() hashState
	Size() int
}

type sha1Digest struct{}

func (sha1Digest) New() hashState { return sha1.New() }
func (sha1Digest) Size() int      { return sha1.Size }

type sha256Digest struct{}

func (sha256Digest) New() hashState { return sha256.New() }
func (sha256Digest) Size() int      { return sha256.Size }

func sha1Sum(data []byte) []byte {
	h := sha1.Sum(data)
	return h[:]
}
