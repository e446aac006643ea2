// Package config loads the CLI configuration from a YAML file with
// environment variable overrides.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/CatchTheTornado/agentvec/pkg/codec"
)

const envPrefix = "AGENTVEC_"

// Config is the full CLI configuration.
type Config struct {
	DataDir   string      `koanf:"data_dir"`
	Partition string      `koanf:"partition"`
	LogLevel  string      `koanf:"log_level"`
	Codec     CodecConfig `koanf:"codec"`
}

// CodecConfig selects the payload codec. Key is hex-encoded and only
// meaningful for the aead codec.
type CodecConfig struct {
	Name string `koanf:"name"`
	Key  string `koanf:"key"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		DataDir:   "data",
		Partition: "default",
		LogLevel:  "info",
	}
}

// Load reads the YAML file at path (skipped when empty or absent), then
// applies AGENTVEC_* environment overrides.
//
//	AGENTVEC_DATA_DIR    -> data_dir
//	AGENTVEC_PARTITION   -> partition
//	AGENTVEC_LOG_LEVEL   -> log_level
//	AGENTVEC_CODEC_NAME  -> codec.name
//	AGENTVEC_CODEC_KEY   -> codec.key
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		// CODEC_NAME -> codec.name, everything else stays flat.
		if rest, ok := strings.CutPrefix(key, "codec_"); ok {
			return "codec." + rest
		}
		return key
	}), nil); err != nil {
		return Config{}, fmt.Errorf("config: load environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.Partition == "" {
		return fmt.Errorf("config: partition must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// BuildCodec resolves the configured codec, decoding the hex key when set.
func (c Config) BuildCodec() (codec.Codec, error) {
	var key []byte
	if c.Codec.Key != "" {
		var err error
		key, err = hex.DecodeString(c.Codec.Key)
		if err != nil {
			return nil, fmt.Errorf("config: codec key is not valid hex: %w", err)
		}
	}
	return codec.ByName(c.Codec.Name, key)
}
