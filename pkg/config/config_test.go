package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Swarm.Timeout != 5*time.Minute {
		t.Errorf("swarm timeout = %v, want the 5m default", cfg.Swarm.Timeout)
	}
	if cfg.Retry.MaxRetries != 7 || cfg.Retry.Jitter != 0.10 {
		t.Errorf("retry defaults = %d/%v, want 7/0.10", cfg.Retry.MaxRetries, cfg.Retry.Jitter)
	}
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordo.json")
	if err := os.WriteFile(path, []byte(`{"swarm":{"max_retries":9},"log_level":"debug"}`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ORDO_LOG_LEVEL", "error")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Swarm.MaxRetries != 9 {
		t.Errorf("swarm max retries = %d, want the file value 9", cfg.Swarm.MaxRetries)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("log level = %s, want the env override", cfg.LogLevel)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "ordo.json")
	cfg := DefaultConfig()
	cfg.Deploy.InstanceCount = 7

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Deploy.InstanceCount != 7 {
		t.Errorf("instance count = %d, want 7", loaded.Deploy.InstanceCount)
	}
}

func TestEnvProvider_Accessors(t *testing.T) {
	p := NewEnvProviderFrom(map[string]string{
		"ORDO_NAME":  "ordo",
		"ORDO_FLAG":  "true",
		"ORDO_COUNT": "42.5",
		"ORDO_JUNK":  "not-a-number",
	})

	if v, err := p.Get("ORDO_NAME"); err != nil || v != "ordo" {
		t.Errorf("Get = %q/%v", v, err)
	}
	if _, err := p.Get("ORDO_MISSING"); err == nil {
		t.Error("missing required key must error")
	}
	if v := p.GetOptional("ORDO_MISSING", "fallback"); v != "fallback" {
		t.Errorf("GetOptional = %q, want fallback", v)
	}
	if !p.GetBoolean("ORDO_FLAG", false) {
		t.Error("GetBoolean must parse true")
	}
	if p.GetBoolean("ORDO_JUNK", false) {
		t.Error("unparsable boolean must fall back")
	}
	if v := p.GetNumber("ORDO_COUNT", 0); v != 42.5 {
		t.Errorf("GetNumber = %v, want 42.5", v)
	}
	if v := p.GetNumber("ORDO_JUNK", 7); v != 7 {
		t.Errorf("unparsable number = %v, want the fallback", v)
	}
	if !p.Has("ORDO_NAME") || p.Has("ORDO_MISSING") {
		t.Error("Has must reflect presence")
	}
}

func TestEnvProvider_ValidateListsAllMissing(t *testing.T) {
	p := NewEnvProviderFrom(map[string]string{"A": "1"})
	err := p.Validate([]string{"A", "B", "C"})
	if err == nil {
		t.Fatal("missing keys must fail validation")
	}
	msg := err.Error()
	for _, want := range []string{"B", "C"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q must name %s", msg, want)
		}
	}
}

func TestEnvProvider_CapabilityTokens(t *testing.T) {
	p := NewEnvProviderFrom(map[string]string{
		MasterKeyEnv: "super-secret",
		SaltEnv:      "grain",
	})

	token, err := p.Authorize("deploy")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !p.Verify("deploy", token) {
		t.Error("token must verify for its scope")
	}
	if p.Verify("rollback", token) {
		t.Error("token must not verify for another scope")
	}

	bare := NewEnvProviderFrom(nil)
	if _, err := bare.Authorize("deploy"); err == nil {
		t.Error("authorization without a master key must fail")
	}
}
