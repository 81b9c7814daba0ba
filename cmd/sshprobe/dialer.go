// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/proxy"

	ssh "github.com/zmap/sshtransport"
)

// dial connects to target (host:port), resolving a hostname target via
// an explicit DNS query rather than the platform resolver, and
// optionally routing the TCP connection through a SOCKS5 jump-proxy.
func dial(target, proxyAddr string, timeout time.Duration) (net.Conn, error) {
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		return nil, fmt.Errorf("parsing target %q: %w", target, err)
	}

	addr := target
	if net.ParseIP(host) == nil {
		ip, err := resolveHost(host)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", host, err)
		}
		addr = net.JoinHostPort(ip.String(), port)
	}

	if proxyAddr == "" {
		return net.DialTimeout("tcp", addr, timeout)
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("building SOCKS5 dialer for %q: %w", proxyAddr, err)
	}
	return dialer.Dial("tcp", addr)
}

// resolveHost performs an explicit A-record lookup via miekg/dns
// against the system's configured resolvers, rather than relying on
// the platform's implicit resolver the way net.Dial would.
func resolveHost(host string) (net.IP, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		conf = &dns.ClientConfig{Servers: []string{"8.8.8.8"}, Port: "53"}
	}

	client := new(dns.Client)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range conf.Servers {
		resp, _, err := client.Exchange(msg, net.JoinHostPort(server, conf.Port))
		if err != nil {
			lastErr = err
			continue
		}
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				return a.A, nil
			}
		}
		lastErr = fmt.Errorf("no A record for %q from %s", host, server)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no DNS servers configured")
	}
	return nil, lastErr
}

// knownHostsVerifier returns a HostKeyVerifier backed by an
// OpenSSH-format known_hosts file ("hostname keytype base64key" per
// line). Hashed ("|1|...") and wildcard entries are not supported —
// this is a probe tool, not a full ssh client.
func knownHostsVerifier(path string) ssh.HostKeyVerifier {
	entries := loadKnownHosts(path)
	return func(remoteAddr net.Addr, key ssh.PublicKey) bool {
		host, _, _ := net.SplitHostPort(remoteAddr.String())
		for _, e := range entries {
			if e.host == host && e.keyType == key.Type() && bytes.Equal(e.blob, key.Marshal()) {
				return true
			}
		}
		return false
	}
}

type knownHostsEntry struct {
	host, keyType string
	blob          []byte
}

func loadKnownHosts(path string) []knownHostsEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []knownHostsEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || strings.HasPrefix(fields[0], "|") {
			continue
		}
		blob, err := base64.StdEncoding.DecodeString(fields[2])
		if err != nil {
			continue
		}
		for _, host := range strings.Split(fields[0], ",") {
			entries = append(entries, knownHostsEntry{host: host, keyType: fields[1], blob: blob})
		}
	}
	return entries
}
