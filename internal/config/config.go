// Package config loads the node's key=value configuration file (spec §6,
// C8). Stdlib-only by the spec's own design: spec.md §1 treats config
// loading as an external, interface-only collaborator, and a flat
// no-nesting key=value grammar has no ecosystem parser in the example
// corpus that fits better than bufio.Scanner (see DESIGN.md).
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every key spec.md §6 names. Zero values are the caller's
// responsibility to default; Load only fills in what the file sets.
type Config struct {
	DNSSeed                    string
	DNSPort                    int
	TestnetPort                int
	ProtocolVersion            int
	UserAgent                  string
	ConnectTimeout             time.Duration
	NThreads                   int
	BlocksDownloadPerNode      int
	IBDSingleNode              bool
	HeightFirstBlockToDownload int
	StartTime                  time.Time
	HeadersCachePath           string
	LogsFolderPath             string
}

// Load parses a key=value file from path. Blank lines and lines starting
// with '#' are ignored; unrecognized keys are ignored rather than
// rejected, since spec.md names this as an external collaborator, not a
// strict schema validator.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads key=value pairs from r.
func Parse(r io.Reader) (Config, error) {
	cfg := Config{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "dns_seed":
			cfg.DNSSeed = value
		case "dns_port":
			cfg.DNSPort, err = strconv.Atoi(value)
		case "testnet_port":
			cfg.TestnetPort, err = strconv.Atoi(value)
		case "protocol_version":
			cfg.ProtocolVersion, err = strconv.Atoi(value)
		case "user_agent":
			cfg.UserAgent = value
		case "connect_timeout":
			var secs int
			secs, err = strconv.Atoi(value)
			cfg.ConnectTimeout = time.Duration(secs) * time.Second
		case "n_threads":
			cfg.NThreads, err = strconv.Atoi(value)
		case "blocks_download_per_node":
			cfg.BlocksDownloadPerNode, err = strconv.Atoi(value)
		case "ibd_single_node":
			cfg.IBDSingleNode, err = strconv.ParseBool(value)
		case "height_first_block_to_download":
			cfg.HeightFirstBlockToDownload, err = strconv.Atoi(value)
		case "start_time":
			var unix int64
			unix, err = strconv.ParseInt(value, 10, 64)
			cfg.StartTime = time.Unix(unix, 0)
		case "headers_cache_path":
			cfg.HeadersCachePath = value
		case "logs_folder_path":
			cfg.LogsFolderPath = value
		}
		if err != nil {
			return Config{}, fmt.Errorf("config: key %q: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: scan: %w", err)
	}

	return cfg, nil
}
