// Package config parses command line flags with environment fallbacks.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Config holds the server settings.
type Config struct {
	DBPath       string
	Addr         string
	LogPath      string
	KafkaBrokers []string
	KafkaTopic   string
	OTLPEndpoint string
}

// Usage is printed for -h.
const Usage = `Usage: izposoja [flags]

Flags:
  -d, -db <path>          SQLite database path (default: izposoja.sqlite3, env IZPOSOJA_DB)
  -a, -addr <host:port>   listen address (default: :8080, env IZPOSOJA_ADDR)
  -l, -log <path>         log file path (default: stdout/stderr only, env IZPOSOJA_LOG)
  -kafka-brokers <list>   comma separated Kafka brokers for events (env KAFKA_BROKERS)
  -kafka-topic <name>     Kafka topic for events (default: izposoja.events, env KAFKA_TOPIC)
  -otlp <endpoint>        OTLP/HTTP trace endpoint (env OTEL_EXPORTER_OTLP_ENDPOINT)
  -h, -help               show this help and exit
`

// Load parses args. Flags win over the environment, which wins over defaults.
// It returns flag.ErrHelp when help was requested.
func Load(args []string, getenv func(string) string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("izposoja", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { fmt.Fprint(output, Usage) }

	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{}
	dbDefault := env("IZPOSOJA_DB", "izposoja.sqlite3")
	fs.StringVar(&cfg.DBPath, "db", dbDefault, "")
	fs.StringVar(&cfg.DBPath, "d", dbDefault, "")

	addrDefault := env("IZPOSOJA_ADDR", ":8080")
	fs.StringVar(&cfg.Addr, "addr", addrDefault, "")
	fs.StringVar(&cfg.Addr, "a", addrDefault, "")

	logDefault := env("IZPOSOJA_LOG", "")
	fs.StringVar(&cfg.LogPath, "log", logDefault, "")
	fs.StringVar(&cfg.LogPath, "l", logDefault, "")

	var brokers string
	fs.StringVar(&brokers, "kafka-brokers", env("KAFKA_BROKERS", ""), "")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", env("KAFKA_TOPIC", "izposoja.events"), "")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp", env("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg.KafkaBrokers = splitList(brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable together.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
