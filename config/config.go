package config

// This module implements the shared configuration reader for the server. The
// configuration is a YAML file looked up by dotted key paths, with defaults
// supplied at each call site. Load must be called before any getters are
// used, mirroring the explicit lifecycle of the rest of the server.

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	"gopkg.in/yaml.v3"
)

// Config holds the parsed configuration tree.
type Config struct {
	values map[string]interface{}

	sync.Mutex
}

var (
	shared    *Config
	sharedMtx sync.Mutex
)

// Load reads the configuration file at path and installs it as the shared
// configuration.
func Load(path string) (err errors.Error) {
	data, errGo := os.ReadFile(path)
	if errGo != nil {
		return errors.Wrap(errGo).With("path", path).With("stack", stack.Trace().TrimRuntime())
	}
	return LoadString(string(data))
}

// LoadString parses configuration from an in-memory YAML document. Used by
// Load, and directly by tests.
func LoadString(doc string) (err errors.Error) {
	values := map[string]interface{}{}

	if errGo := yaml.Unmarshal([]byte(doc), &values); errGo != nil {
		return errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}

	sharedMtx.Lock()
	defer sharedMtx.Unlock()

	shared = &Config{values: values}
	return nil
}

// Reset discards the shared configuration so that getters fall back to their
// defaults. Intended for tests.
func Reset() {
	sharedMtx.Lock()
	defer sharedMtx.Unlock()

	shared = nil
}

// lookup walks the configuration tree along a dotted key path
func lookup(key string) (value interface{}, found bool) {
	sharedMtx.Lock()
	cfg := shared
	sharedMtx.Unlock()

	if cfg == nil {
		return nil, false
	}

	cfg.Lock()
	defer cfg.Unlock()

	var node interface{} = cfg.values
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if node, ok = m[part]; !ok {
			return nil, false
		}
	}
	return node, true
}

// GetFloat returns the float value at the dotted key path, or the supplied
// default if the key is absent.
func GetFloat(key string, def float64) float64 {
	v, found := lookup(key)
	if !found {
		return def
	}
	switch value := v.(type) {
	case float64:
		return value
	case int:
		return float64(value)
	}
	return def
}

// GetUint returns the unsigned value at the dotted key path, or the supplied
// default if the key is absent or negative.
func GetUint(key string, def uint) uint {
	v, found := lookup(key)
	if !found {
		return def
	}
	if value, ok := v.(int); ok && value >= 0 {
		return uint(value)
	}
	return def
}

// GetInt returns the integer value at the dotted key path, or the supplied
// default.
func GetInt(key string, def int) int {
	v, found := lookup(key)
	if !found {
		return def
	}
	if value, ok := v.(int); ok {
		return value
	}
	return def
}

// GetString returns the string value at the dotted key path, or the supplied
// default.
func GetString(key string, def string) string {
	v, found := lookup(key)
	if !found {
		return def
	}
	switch value := v.(type) {
	case string:
		return value
	case int:
		return fmt.Sprintf("%d", value)
	}
	return def
}

// GetBool returns the boolean value at the dotted key path, or the supplied
// default.
func GetBool(key string, def bool) bool {
	v, found := lookup(key)
	if !found {
		return def
	}
	if value, ok := v.(bool); ok {
		return value
	}
	return def
}
