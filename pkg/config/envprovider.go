// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package config

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment keys for the secret material.
const (
	MasterKeyEnv = "ORDO_MASTER_KEY"
	SaltEnv      = "ORDO_SALT"
)

// EnvProvider is the only path through which components read the
// process environment. It also derives capability tokens from the
// master key and salt so callers can prove authorization for
// privileged operations without ever seeing the key itself.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider reads from the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// NewEnvProviderFrom reads from a fixed map, for tests.
func NewEnvProviderFrom(values map[string]string) *EnvProvider {
	return &EnvProvider{lookup: func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}}
}

// Get returns the value of a required key.
func (p *EnvProvider) Get(key string) (string, error) {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}

// GetOptional returns the value, or fallback when unset.
func (p *EnvProvider) GetOptional(key, fallback string) string {
	if v, ok := p.lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

// GetBoolean parses the value as a boolean, returning fallback when
// unset or unparsable.
func (p *EnvProvider) GetBoolean(key string, fallback bool) bool {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return fallback
	}
	return parsed
}

// GetNumber parses the value as a float, returning fallback when unset
// or unparsable.
func (p *EnvProvider) GetNumber(key string, fallback float64) float64 {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// Has reports whether the key is set to a non-empty value.
func (p *EnvProvider) Has(key string) bool {
	v, ok := p.lookup(key)
	return ok && v != ""
}

// Validate checks every required key and reports all missing ones at
// once.
func (p *EnvProvider) Validate(required []string) error {
	var missing []string
	for _, key := range required {
		if !p.Has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Authorize derives a capability token for the given scope from the
// master key and salt. The token proves the holder was granted the
// scope without exposing the key.
func (p *EnvProvider) Authorize(scope string) (string, error) {
	masterKey, err := p.Get(MasterKeyEnv)
	if err != nil {
		return "", err
	}
	salt := p.GetOptional(SaltEnv, "")

	mac := hmac.New(sha256.New, []byte(masterKey))
	mac.Write([]byte(salt))
	mac.Write([]byte(scope))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a capability token for a scope in constant time.
func (p *EnvProvider) Verify(scope, token string) bool {
	expected, err := p.Authorize(scope)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(token))
}
