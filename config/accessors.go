package config

import (
	"fmt"
	"slices"

	"github.com/gaborage/go-tiledmap/logger"
)

// GetString retrieves a raw string value or the provided default.
func (c *Config) GetString(key string, defaultVal ...string) string {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		if len(defaultVal) > 0 {
			return defaultVal[0]
		}
		return ""
	}
	return c.k.String(key)
}

// Unmarshal decodes one configuration section into out.
func (c *Config) Unmarshal(key string, out any) error {
	if c == nil || c.k == nil {
		return fmt.Errorf("configuration not initialized")
	}
	return c.k.Unmarshal(key, out)
}

// Exists checks if a configuration key exists.
func (c *Config) Exists(key string) bool {
	if c == nil || c.k == nil {
		return false
	}
	return c.k.Exists(key)
}

// Keys returns every flattened key in sorted order.
func (c *Config) Keys() []string {
	if c == nil || c.k == nil {
		return nil
	}
	keys := c.k.Keys()
	slices.Sort(keys)
	return keys
}

// All returns the flattened configuration with credentials masked, suitable
// for printing.
func (c *Config) All() map[string]any {
	if c == nil || c.k == nil {
		return nil
	}
	fc := logger.DefaultFilterConfig()
	fc.SensitiveFields = append(fc.SensitiveFields, "readurl", "writeurl")
	return logger.NewSensitiveDataFilter(fc).FilterFields(c.k.All())
}
