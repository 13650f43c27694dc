package config

import "testing"

func TestValidateRejectsNegativeWindow(t *testing.T) {
	c := &Config{WindowMs: -1, LogLevel: "info", LogFormat: "json"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative WindowMs")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c := &Config{LogLevel: "verbose", LogFormat: "json"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	c := &Config{LogLevel: "info", LogFormat: "xml"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := &Config{
		WindowMs:        200,
		SmoothingWindow: 5,
		RateLimit:       100,
		BurstSize:       200,
		LogLevel:        "info",
		LogFormat:       "json",
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
