// Package config loads the engine's adapter/bus/read-session defaults from
// an INI file, falling back to the documented defaults when the file or
// individual keys are absent. The file is always optional.
package config

import (
	"os"

	"gopkg.in/ini.v1"
)

const (
	DefaultConfigPath   = "ecudump.ini"
	envConfigPathKey    = "ECUDUMP_CONFIG"
	defaultAdapterBaud  = 38400
	defaultBusInterface = "can0"
	defaultBusBitrate   = 500000
	defaultBlockSize    = 256
	defaultOutputDir    = "."
	defaultAlgorithm    = "default"
)

// Config holds every tunable named in the specification's external
// interfaces section. Zero values are never used directly by callers;
// Load always returns a struct with defaults already applied.
type Config struct {
	AdapterPort string
	AdapterBaud int

	BusInterface string
	BusBitrate   int

	DefaultBlockSize int
	OutputDir        string

	SecurityAlgorithm string

	Listen string
}

// Default returns a Config populated with the specification's defaults and
// nothing else.
func Default() *Config {
	return &Config{
		AdapterBaud:       defaultAdapterBaud,
		BusInterface:      defaultBusInterface,
		BusBitrate:        defaultBusBitrate,
		DefaultBlockSize:  defaultBlockSize,
		OutputDir:         defaultOutputDir,
		SecurityAlgorithm: defaultAlgorithm,
	}
}

// Load reads path (or the path named by ECUDUMP_CONFIG, or
// DefaultConfigPath) and overlays any keys present onto the defaults. A
// missing file is not an error: the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if envPath := os.Getenv(envConfigPathKey); envPath != "" {
			path = envPath
		} else {
			path = DefaultConfigPath
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	adapter := file.Section("adapter")
	cfg.AdapterPort = adapter.Key("port").String()
	cfg.AdapterBaud = adapter.Key("baud").MustInt(defaultAdapterBaud)

	bus := file.Section("bus")
	cfg.BusInterface = bus.Key("interface").MustString(defaultBusInterface)
	cfg.BusBitrate = bus.Key("bitrate").MustInt(defaultBusBitrate)

	read := file.Section("read")
	cfg.DefaultBlockSize = read.Key("block_size").MustInt(defaultBlockSize)
	cfg.OutputDir = read.Key("output_dir").MustString(defaultOutputDir)

	security := file.Section("security")
	cfg.SecurityAlgorithm = security.Key("algorithm").MustString(defaultAlgorithm)

	server := file.Section("server")
	cfg.Listen = server.Key("listen").String()

	return cfg, nil
}
