package config

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, envMap(nil), &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "izposoja.sqlite3", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.LogPath)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "izposoja.events", cfg.KafkaTopic)
	assert.Empty(t, cfg.OTLPEndpoint)
}

func TestLoadEnvironment(t *testing.T) {
	cfg, err := Load(nil, envMap(map[string]string{
		"IZPOSOJA_DB":                 "/var/lib/izposoja.db",
		"IZPOSOJA_ADDR":               ":9000",
		"KAFKA_BROKERS":               "k1:9092, k2:9092,",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "otel:4318",
	}), &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/izposoja.db", cfg.DBPath)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "otel:4318", cfg.OTLPEndpoint)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	cfg, err := Load(
		[]string{"-d", "flag.db", "-addr", "127.0.0.1:8081", "-l", "out.log"},
		envMap(map[string]string{"IZPOSOJA_DB": "env.db"}),
		&bytes.Buffer{},
	)
	require.NoError(t, err)

	assert.Equal(t, "flag.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:8081", cfg.Addr)
	assert.Equal(t, "out.log", cfg.LogPath)
}

func TestLoadHelp(t *testing.T) {
	var out bytes.Buffer
	_, err := Load([]string{"-h"}, envMap(nil), &out)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, out.String(), "Usage: izposoja")
}

func TestLoadRejectsExtraArgs(t *testing.T) {
	_, err := Load([]string{"serve"}, envMap(nil), &bytes.Buffer{})
	assert.EqualError(t, err, "unexpected argument: serve")
}

func TestValidate(t *testing.T) {
	cfg := &Config{KafkaBrokers: []string{"k:9092"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path is required")
	assert.Contains(t, err.Error(), "listen address is required")
	assert.Contains(t, err.Error(), "kafka topic is required")
}
