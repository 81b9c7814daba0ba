// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	check "gopkg.in/check.v1"
)

type NegotiateSuite struct{}

var _ = check.Suite(&NegotiateSuite{})

func (s *NegotiateSuite) TestFindCommonPrefersClientOrder(c *check.C) {
	// spec.md §4.4.2: "not a lexicographic guess; client preference
	// dominates." The server offers its own preferred algorithm first,
	// but the client's order must win.
	client := []string{"b", "a"}
	server := []string{"a", "b"}
	got, err := findCommon("test", client, server)
	c.Assert(err, check.IsNil)
	c.Check(got, check.Equals, "b")
}

func (s *NegotiateSuite) TestFindCommonNoOverlap(c *check.C) {
	_, err := findCommon("test", []string{"x"}, []string{"y"})
	c.Assert(err, check.NotNil)
	c.Check(err.Error(), check.Matches, ".*no common.*")
}

func (s *NegotiateSuite) TestNegotiateHappyPath(c *check.C) {
	client := &kexInitMsg{
		KexAlgos:                []string{kexAlgoCurve25519SHA256, kexAlgoDH14SHA1},
		ServerHostKeyAlgos:      []string{KeyAlgoED25519},
		CiphersClientServer:     []string{cipherAES128GCM},
		CiphersServerClient:     []string{cipherAES128GCM},
		MACsClientServer:        []string{macHMACSHA2_256},
		MACsServerClient:        []string{macHMACSHA2_256},
		CompressionClientServer: []string{compressionNone},
		CompressionServerClient: []string{compressionNone},
	}
	server := &kexInitMsg{
		KexAlgos:                []string{kexAlgoDH14SHA1, kexAlgoCurve25519SHA256},
		ServerHostKeyAlgos:      []string{KeyAlgoED25519, KeyAlgoRSA},
		CiphersClientServer:     []string{cipherAES128GCM, cipherAES256CTR},
		CiphersServerClient:     []string{cipherAES128GCM, cipherAES256CTR},
		MACsClientServer:        []string{macHMACSHA2_256, macHMACSHA1},
		MACsServerClient:        []string{macHMACSHA2_256, macHMACSHA1},
		CompressionClientServer: []string{compressionNone},
		CompressionServerClient: []string{compressionNone},
	}

	algs, err := negotiate(client, server)
	c.Assert(err, check.IsNil)
	c.Check(algs.Kex, check.Equals, kexAlgoCurve25519SHA256)
	c.Check(algs.HostKey, check.Equals, KeyAlgoED25519)
	c.Check(algs.W.Cipher, check.Equals, cipherAES128GCM)
	c.Check(algs.R.Cipher, check.Equals, cipherAES128GCM)
	c.Check(algs.W.MAC, check.Equals, macHMACSHA2_256)
	c.Check(algs.W.Compression, check.Equals, compressionNone)
}

func (s *NegotiateSuite) TestNegotiateNoCommonKex(c *check.C) {
	client := &kexInitMsg{KexAlgos: []string{kexAlgoCurve25519SHA256}}
	server := &kexInitMsg{KexAlgos: []string{kexAlgoDH14SHA1}}
	_, err := negotiate(client, server)
	c.Assert(err, check.NotNil)
}

func (s *NegotiateSuite) TestValidateLanguageListAcceptsEmpty(c *check.C) {
	c.Check(validateLanguageList(nil), check.IsNil)
	c.Check(validateLanguageList([]string{""}), check.IsNil)
}

func (s *NegotiateSuite) TestValidateLanguageListRejectsMalformed(c *check.C) {
	err := validateLanguageList([]string{"not a valid tag"})
	c.Assert(err, check.NotNil)
}
