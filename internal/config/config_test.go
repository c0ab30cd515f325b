package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	p := cfg.Pseudonymization
	if !p.MaskPersons || !p.MaskOrgs || !p.MaskLocations || !p.MaskDates || !p.MaskEmails || !p.MaskPhones {
		t.Errorf("all known types should be masked by default: %+v", p)
	}
	if p.MaskOther {
		t.Error("mask_other should default to false")
	}
	if p.UsePlaceholders {
		t.Error("use_placeholders should default to false")
	}
	if p.ReplacementChar != "X" || !p.PreserveLength || p.FallbackLength != 3 {
		t.Errorf("unexpected fallback settings: %q %v %d", p.ReplacementChar, p.PreserveLength, p.FallbackLength)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Recognizer.Type != "none" {
		t.Errorf("expected recognizer none, got %q", cfg.Recognizer.Type)
	}
	if cfg.Server.SessionIdleTimeout != 24*time.Hour {
		t.Errorf("expected 24h session idle timeout, got %s", cfg.Server.SessionIdleTimeout)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
pseudonymization:
  mask_dates: false
  use_placeholders: true
  replacement_char: "*"
recognizer:
  type: http
  endpoint: http://localhost:5000/ner
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected 5s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Pseudonymization.MaskDates {
		t.Error("mask_dates should be false")
	}
	if !cfg.Pseudonymization.MaskPersons {
		t.Error("mask_persons should keep its default")
	}
	if !cfg.Pseudonymization.UsePlaceholders {
		t.Error("use_placeholders should be true")
	}
	if cfg.Pseudonymization.ReplacementChar != "*" {
		t.Errorf("expected replacement char *, got %q", cfg.Pseudonymization.ReplacementChar)
	}
	if cfg.Recognizer.Endpoint != "http://localhost:5000/ner" {
		t.Errorf("unexpected endpoint %q", cfg.Recognizer.Endpoint)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("expected console format, got %q", cfg.Logging.Format)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PSEUDO_SERVER_PORT", "7000")
	t.Setenv("PSEUDO_PSEUDONYMIZATION_MASK_PHONES", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("expected port 7000 from env, got %d", cfg.Server.Port)
	}
	if cfg.Pseudonymization.MaskPhones {
		t.Error("mask_phones should be disabled from env")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"BadPort", "server:\n  port: 70000\n", "invalid server port"},
		{"EmptyReplacement", "pseudonymization:\n  replacement_char: \"\"\n", "replacement_char"},
		{"ZeroFallback", "pseudonymization:\n  fallback_length: 0\n", "fallback_length"},
		{"UnknownRecognizer", "recognizer:\n  type: spacy\n", "invalid recognizer type"},
		{"HTTPWithoutEndpoint", "recognizer:\n  type: http\n", "requires an endpoint"},
		{"NegativeSessionTimeout", "server:\n  session_idle_timeout: -1s\n", "session_idle_timeout"},
		{"BadLevel", "logging:\n  level: verbose\n", "invalid log level"},
		{"BadFormat", "logging:\n  format: xml\n", "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8081\n")

	changed := make(chan *Config, 4)
	notify := func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}
	if err := Watch(path, notify, nil); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("server:\n  port: 8082\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	// A truncate-then-write can surface an intermediate reload first.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Server.Port == 8082 {
				return
			}
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}
