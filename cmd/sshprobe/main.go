// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sshprobe dials a single SSH server, runs the transport
// handshake, and prints the negotiated algorithms and identification
// strings — a banner-grab/handshake probe built on top of the
// sshtransport package (SPEC_FULL.md §2/§3).
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	flags "github.com/zmap/zflags"

	ssh "github.com/zmap/sshtransport"
	"github.com/zmap/sshtransport/metrics"
)

// Options holds the command-line flags, in the teacher's
// long/description struct-tag idiom.
type Options struct {
	Target     string        `long:"target" short:"t" description:"host:port of the SSH server to probe" required:"true"`
	Proxy      string        `long:"proxy" description:"optional SOCKS5 jump-proxy address (host:port)"`
	Profile    string        `long:"profile" description:"path to a YAML algorithm-profile config file"`
	Timeout    time.Duration `long:"timeout" default:"10s" description:"dial and handshake timeout"`
	HelloOnly  bool          `long:"hello-only" description:"stop after the identification exchange"`
	Verbose    bool          `long:"verbose" description:"enable debug logging and record the client identification in the result"`
	Insecure   bool          `long:"insecure" description:"accept any host key (testing only)"`
	MetricsURL string        `long:"metrics-addr" description:"if set, serve Prometheus metrics on this address"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, _, _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	logger := log.New()
	if opts.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if opts.MetricsURL != "" {
		go serveMetrics(opts.MetricsURL, logger)
	}

	cfg, err := buildClientConfig(&opts, logger)
	if err != nil {
		logger.Fatalf("building client config: %v", err)
	}

	result, err := probe(&opts, cfg)
	if err != nil {
		logger.Fatalf("probe failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatalf("marshaling result: %v", err)
	}
	fmt.Println(string(out))
}

func buildClientConfig(opts *Options, logger *log.Logger) (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		Config: ssh.Config{
			Logger:    logger,
			Verbose:   opts.Verbose,
			HelloOnly: opts.HelloOnly,
			ConnLog:   &ssh.HandshakeLog{},
			Metrics:   metrics.New(nil, "sshprobe"),
		},
		Timeout: opts.Timeout,
	}

	if opts.Profile != "" {
		if err := applyProfile(opts.Profile, &cfg.Config); err != nil {
			return nil, fmt.Errorf("loading profile: %w", err)
		}
	}

	if opts.Insecure {
		cfg.HostKeyVerifiers = []ssh.HostKeyVerifier{acceptAnyHostKey}
	} else {
		cfg.HostKeyVerifiers = []ssh.HostKeyVerifier{knownHostsVerifier(os.Getenv("HOME") + "/.ssh/known_hosts")}
	}

	return cfg, nil
}

func acceptAnyHostKey(_ net.Addr, _ ssh.PublicKey) bool { return true }

// serveMetrics exposes /metrics on addr until the process exits.
func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("metrics server stopped: %v", err)
	}
}

// probe dials (optionally through a SOCKS5 jump-proxy), runs the
// handshake, and returns the resulting HandshakeLog.
func probe(opts *Options, cfg *ssh.ClientConfig) (*ssh.HandshakeLog, error) {
	conn, err := dial(opts.Target, opts.Proxy, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", opts.Target, err)
	}

	if opts.Timeout != 0 {
		conn.SetDeadline(time.Now().Add(opts.Timeout))
	}
	t, err := ssh.NewTransport(conn, opts.Target, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer t.Close()

	return cfg.ConnLog, nil
}
