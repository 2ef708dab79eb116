// Package config layers CLI flags over PAGEVIZ_* environment variables over
// an optional pageviz.yaml file. It is ambient plumbing consumed only by
// cmd/pageviz; internal/pipeline never imports it, so the core stays
// callable without global state.
//
// Grounded on the CLI-tool import shape documented in
// other_examples/theRebelliousNerd-codenerd__prompts.go (flag/godotenv/viper)
// and on cristian1one-virtual-vectorfs's Viper-backed CLI configuration.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the resolved knobs for one pageviz invocation.
type Config struct {
	Workers   int
	Transport string
	ChunkSize int
	ProfileTo string
}

const (
	defaultChunkSize = 32 << 20
	defaultTransport = "auto"
)

// Load reads pageviz.yaml (if present) and PAGEVIZ_* environment variables,
// applying an optional .env file first the way godotenv-fronted CLIs in the
// pack do. CLI flags are layered on top by the caller via the Set* methods
// on the returned *viper.Viper, so flag precedence always wins.
func Load() (*viper.Viper, error) {
	// A missing .env file is not an error: most invocations of a CLI tool
	// like this one have no .env at all.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PAGEVIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("workers", 0)
	v.SetDefault("transport", defaultTransport)
	v.SetDefault("chunk-size", defaultChunkSize)
	v.SetDefault("profile", "")

	v.SetConfigName("pageviz")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	return v, nil
}

// Resolve reads the final knob values out of v into a Config.
func Resolve(v *viper.Viper) Config {
	return Config{
		Workers:   v.GetInt("workers"),
		Transport: v.GetString("transport"),
		ChunkSize: v.GetInt("chunk-size"),
		ProfileTo: v.GetString("profile"),
	}
}
