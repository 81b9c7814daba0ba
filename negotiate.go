// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"fmt"

	"golang.org/x/text/language"
)

// DirectionAlgorithms is the set of algorithms negotiated for one
// traffic direction.
type DirectionAlgorithms struct {
	Cipher      string `json:"cipher"`
	MAC         string `json:"mac"`
	Compression string `json:"compression"`
}

// Algorithms is the full negotiation result for a single key exchange,
// spec.md §8 invariant 5.
type Algorithms struct {
	Kex     string `json:"kex"`
	HostKey string `json:"host_key"`
	W       DirectionAlgorithms `json:"client_to_server"`
	R       DirectionAlgorithms `json:"server_to_client"`
}

// findCommon walks client's preference list and returns the first
// name that also appears anywhere in server's list — spec.md §4.4.2:
// "not a lexicographic guess; client preference dominates."
func findCommon(what string, client, server []string) (string, error) {
	for _, c := range client {
		for _, s := range server {
			if c == s {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no common %s algorithm; client offered %v, server offered %v", ErrNegotiationFailed, what, client, server)
}

// negotiate computes Algorithms from the client's and server's KEXINIT
// messages, per spec.md §4.4.2. Language slots (8, 9) are permitted to
// remain unresolved.
func negotiate(client, server *kexInitMsg) (*Algorithms, error) {
	var alg Algorithms
	var err error

	if alg.Kex, err = findCommon("key exchange", client.KexAlgos, server.KexAlgos); err != nil {
		return nil, err
	}
	if alg.HostKey, err = findCommon("host key", client.ServerHostKeyAlgos, server.ServerHostKeyAlgos); err != nil {
		return nil, err
	}
	if alg.W.Cipher, err = findCommon("client-to-server cipher", client.CiphersClientServer, server.CiphersClientServer); err != nil {
		return nil, err
	}
	if alg.R.Cipher, err = findCommon("server-to-client cipher", client.CiphersServerClient, server.CiphersServerClient); err != nil {
		return nil, err
	}
	if alg.W.MAC, err = findCommon("client-to-server MAC", client.MACsClientServer, server.MACsClientServer); err != nil {
		return nil, err
	}
	if alg.R.MAC, err = findCommon("server-to-client MAC", client.MACsServerClient, server.MACsServerClient); err != nil {
		return nil, err
	}
	if alg.W.Compression, err = findCommon("client-to-server compression", client.CompressionClientServer, server.CompressionClientServer); err != nil {
		return nil, err
	}
	if alg.R.Compression, err = findCommon("server-to-client compression", client.CompressionServerClient, server.CompressionServerClient); err != nil {
		return nil, err
	}

	// Languages may remain unresolved (spec.md §3, §4.4.2); we only
	// reject them outright if either side's lists hold a tag that isn't
	// a well-formed BCP 47 tag, rather than requiring agreement.
	if err := validateLanguageList(client.LanguagesClientServer); err != nil {
		return nil, err
	}
	if err := validateLanguageList(client.LanguagesServerClient); err != nil {
		return nil, err
	}
	if err := validateLanguageList(server.LanguagesClientServer); err != nil {
		return nil, err
	}
	if err := validateLanguageList(server.LanguagesServerClient); err != nil {
		return nil, err
	}

	return &alg, nil
}

// validateLanguageList checks that every non-empty language tag
// parses as BCP 47 (RFC 4253's language-tag slots are RFC 3066 tags,
// BCP 47's predecessor). Empty lists are always fine.
func validateLanguageList(tags []string) error {
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, err := language.Parse(t); err != nil {
			return fmt.Errorf("%w: malformed language tag %q: %v", ErrProtocol, t, err)
		}
	}
	return nil
}

// localProposal builds this client's KEXINIT from a Config, spec.md
// §4.4.3.
func localProposal(cfg *Config) *kexInitMsg {
	msg := &kexInitMsg{
		KexAlgos:                cfg.KeyExchanges,
		ServerHostKeyAlgos:      cfg.HostKeyAlgorithms,
		CiphersClientServer:     cfg.Ciphers,
		CiphersServerClient:     cfg.Ciphers,
		MACsClientServer:        cfg.MACs,
		MACsServerClient:        cfg.MACs,
		CompressionClientServer: cfg.Compressions,
		CompressionServerClient: cfg.Compressions,
	}
	if err := cfg.Rand.Fill(msg.Cookie[:]); err != nil {
		panic(err) // Rand is required to be reliable by SetDefaults' contract.
	}
	return msg
}
