// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	ssh "github.com/zmap/sshtransport"
)

// algorithmProfile is the YAML shape of a --profile file: an explicit
// algorithm allow-list per slot, overriding the package defaults.
type algorithmProfile struct {
	KeyExchanges      []string `yaml:"key_exchanges"`
	HostKeyAlgorithms []string `yaml:"host_key_algorithms"`
	Ciphers           []string `yaml:"ciphers"`
	MACs              []string `yaml:"macs"`
	Compressions      []string `yaml:"compressions"`
	RekeyThresholdMiB uint64   `yaml:"rekey_threshold_mib"`
}

// applyProfile loads path and overlays any algorithm lists it
// specifies onto cfg, leaving package defaults for anything omitted.
func applyProfile(path string, cfg *ssh.Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}
	var p algorithmProfile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parsing %q: %w", path, err)
	}

	if len(p.KeyExchanges) > 0 {
		cfg.KeyExchanges = p.KeyExchanges
	}
	if len(p.HostKeyAlgorithms) > 0 {
		cfg.HostKeyAlgorithms = p.HostKeyAlgorithms
	}
	if len(p.Ciphers) > 0 {
		cfg.Ciphers = p.Ciphers
	}
	if len(p.MACs) > 0 {
		cfg.MACs = p.MACs
	}
	if len(p.Compressions) > 0 {
		cfg.Compressions = p.Compressions
	}
	if p.RekeyThresholdMiB > 0 {
		cfg.RekeyThreshold = p.RekeyThresholdMiB << 20
	}
	return nil
}
