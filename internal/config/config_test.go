package config

import (
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
# sample node config
dns_seed=testnet-seed.bitcoin.jonasschnelli.ch
dns_port=18333
testnet_port=18333
protocol_version=70015
user_agent=/bitnode:0.1/
connect_timeout=5
n_threads=8
blocks_download_per_node=500
ibd_single_node=false
height_first_block_to_download=1
start_time=1577836800
headers_cache_path=/var/lib/bitnode/headers.dat
logs_folder_path=/var/log/bitnode
`

func TestParseAllKeys(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.DNSSeed != "testnet-seed.bitcoin.jonasschnelli.ch" {
		t.Errorf("DNSSeed = %q", cfg.DNSSeed)
	}
	if cfg.DNSPort != 18333 {
		t.Errorf("DNSPort = %d, want 18333", cfg.DNSPort)
	}
	if cfg.ProtocolVersion != 70015 {
		t.Errorf("ProtocolVersion = %d, want 70015", cfg.ProtocolVersion)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, want 5s", cfg.ConnectTimeout)
	}
	if cfg.IBDSingleNode {
		t.Error("IBDSingleNode should be false")
	}
	if cfg.NThreads != 8 {
		t.Errorf("NThreads = %d, want 8", cfg.NThreads)
	}
	wantStart := time.Unix(1577836800, 0)
	if !cfg.StartTime.Equal(wantStart) {
		t.Errorf("StartTime = %v, want %v", cfg.StartTime, wantStart)
	}
	if cfg.HeadersCachePath != "/var/lib/bitnode/headers.dat" {
		t.Errorf("HeadersCachePath = %q", cfg.HeadersCachePath)
	}
}

func TestParseIgnoresCommentsAndBlankLines(t *testing.T) {
	cfg, err := Parse(strings.NewReader("\n# comment\n\ndns_port=1234\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.DNSPort != 1234 {
		t.Errorf("DNSPort = %d, want 1234", cfg.DNSPort)
	}
}

func TestParseRejectsBadInteger(t *testing.T) {
	if _, err := Parse(strings.NewReader("dns_port=not-a-number\n")); err == nil {
		t.Fatal("expected error for non-numeric dns_port")
	}
}
