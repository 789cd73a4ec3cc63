// Package config loads the optional tc2100.toml file that carries the
// settings the CLI flags would otherwise repeat on every run.
package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const DefaultConfigPath = "tc2100.toml"

const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

type Config struct {
	Serial   SerialConfig   `toml:"serial"`
	Output   OutputConfig   `toml:"output"`
	Foxglove FoxgloveConfig `toml:"foxglove"`

	configPath string `toml:"-"`
}

type SerialConfig struct {
	Port      string `toml:"port"`
	Baud      int    `toml:"baud"`
	Reconnect string `toml:"reconnect"`
	Buf       int    `toml:"buf"`
	ReaderBuf int    `toml:"reader_buf"`
}

type OutputConfig struct {
	// Path is the output file; "-" means stdout.
	Path   string `toml:"path"`
	Format string `toml:"format"`
}

type FoxgloveConfig struct {
	WSAddr    string `toml:"ws_addr"`
	Topic     string `toml:"topic"`
	TempTopic string `toml:"temp_topic"`
	SendBuf   int    `toml:"send_buf"`
}

func Default() Config {
	return Config{
		Serial: SerialConfig{
			Baud:      9600,
			Reconnect: "1s",
			Buf:       64,
			ReaderBuf: 4096,
		},
		Output: OutputConfig{
			Path:   "-",
			Format: FormatCSV,
		},
		Foxglove: FoxgloveConfig{
			WSAddr:    "127.0.0.1:8765",
			Topic:     "tc2100/observation",
			TempTopic: "/tc2100/temperature",
			SendBuf:   32,
		},
	}
}

// Load reads path and fails if the file does not exist.
func Load(path string) (Config, error) {
	cfg, exists, err := LoadOrDefault(path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		return Config{}, os.ErrNotExist
	}
	return cfg, nil
}

// LoadOrDefault reads path, falling back to defaults when the file does
// not exist. The boolean reports whether the file was present.
func LoadOrDefault(path string) (Config, bool, error) {
	cfg := Default()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return Config{}, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, true, fmt.Errorf("parse config: %w", err)
	}
	cfg.configPath = path
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

func (cfg *Config) ConfigPath() string {
	return cfg.configPath
}

func (cfg *Config) Validate() error {
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", cfg.Serial.Baud)
	}
	if _, err := time.ParseDuration(cfg.Serial.Reconnect); err != nil {
		return fmt.Errorf("serial.reconnect: %w", err)
	}
	switch cfg.Output.Format {
	case FormatCSV, FormatJSONL:
	default:
		return fmt.Errorf("output.format must be %q or %q, got %q",
			FormatCSV, FormatJSONL, cfg.Output.Format)
	}
	return nil
}

// ReconnectInterval parses serial.reconnect; Validate has already
// checked it on any loaded config.
func (cfg *Config) ReconnectInterval() time.Duration {
	d, err := time.ParseDuration(cfg.Serial.Reconnect)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

func (cfg *Config) normalize() {
	def := Default()

	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = def.Serial.Baud
	}
	if cfg.Serial.Reconnect == "" {
		cfg.Serial.Reconnect = def.Serial.Reconnect
	}
	if cfg.Serial.Buf <= 0 {
		cfg.Serial.Buf = def.Serial.Buf
	}
	if cfg.Serial.ReaderBuf <= 0 {
		cfg.Serial.ReaderBuf = def.Serial.ReaderBuf
	}

	if cfg.Output.Path == "" {
		cfg.Output.Path = def.Output.Path
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = def.Output.Format
	}

	if cfg.Foxglove.WSAddr == "" {
		cfg.Foxglove.WSAddr = def.Foxglove.WSAddr
	}
	if cfg.Foxglove.Topic == "" {
		cfg.Foxglove.Topic = def.Foxglove.Topic
	}
	if cfg.Foxglove.TempTopic == "" {
		cfg.Foxglove.TempTopic = def.Foxglove.TempTopic
	}
	if cfg.Foxglove.SendBuf <= 0 {
		cfg.Foxglove.SendBuf = def.Foxglove.SendBuf
	}
}
