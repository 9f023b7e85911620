package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelRouter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := newLogger(&stdout, &stderr).With("component", "test")

	logger.Debug("hidden")
	logger.Info("started")
	logger.Warn("slow")
	logger.Error("broken")

	out := stdout.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should be dropped")
	}
	if !strings.Contains(out, "started") || !strings.Contains(out, "slow") {
		t.Errorf("stdout missing info/warn records: %q", out)
	}
	if strings.Contains(out, "broken") {
		t.Error("error record should not reach stdout")
	}
	if !strings.Contains(stderr.String(), "broken") {
		t.Errorf("stderr missing error record: %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "component=test") {
		t.Errorf("attrs not carried to stderr handler: %q", stderr.String())
	}
}
