package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	windshaftHost    = "windshaft.host"
	outOfRangeErrMsg = "out of range"
)

func TestConfigErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConfigError
		expected string
	}{
		{
			name: "complete error with all fields",
			err: &ConfigError{
				Category: "missing",
				Field:    windshaftHost,
				Message:  "required",
				Action:   "set TILEDMAP_WINDSHAFT_HOST env var",
				Details:  []string{"detail1", "detail2"},
			},
			expected: "config_missing: windshaft.host required set TILEDMAP_WINDSHAFT_HOST env var detail1; detail2",
		},
		{
			name: "error without category",
			err: &ConfigError{
				Field:   windshaftHost,
				Message: "required",
			},
			expected: "windshaft.host required",
		},
		{
			name: "error without action",
			err: &ConfigError{
				Category: "invalid",
				Field:    "windshaft.port",
				Message:  outOfRangeErrMsg,
			},
			expected: "config_invalid: windshaft.port out of range",
		},
		{
			name:     "only details",
			err:      &ConfigError{Details: []string{"a", "b"}},
			expected: "a; b",
		},
		{
			name:     "empty error",
			err:      &ConfigError{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "TILEDMAP_WINDSHAFT_HOST", EnvVar(windshaftHost))
	assert.Equal(t, "TILEDMAP_STYLE_PLOT_MARKERSIZE", EnvVar("style.plot.markersize"))
}

func TestConfigErrorConstructors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		err := NewMissingFieldError(windshaftHost)
		assert.Equal(t, "missing", err.Category)
		assert.Equal(t, windshaftHost, err.Field)
		assert.Contains(t, err.Action, "TILEDMAP_WINDSHAFT_HOST")
	})

	t.Run("invalid with options", func(t *testing.T) {
		err := NewInvalidFieldError("windshaft.scheme", `invalid value "ftp"`, []string{"http", "https"})
		assert.Equal(t, "must be one of: http, https", err.Action)
	})

	t.Run("invalid without options", func(t *testing.T) {
		err := NewInvalidFieldError("zoom.max", outOfRangeErrMsg, nil)
		assert.Empty(t, err.Action)
	})

	t.Run("not configured", func(t *testing.T) {
		err := NewNotConfiguredError("datastore", "datastore.readurl")
		assert.Equal(t, "not_configured", err.Category)
		assert.Contains(t, err.Action, "TILEDMAP_DATASTORE_READURL")
	})

	t.Run("connection", func(t *testing.T) {
		err := NewConnectionError("datastore", "ping failed", []string{"check the host", "check the password"})
		assert.Equal(t, "config_connection: datastore ping failed check the host; check the password", err.Error())
	})
}

func TestIsNotConfigured(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sentinel", err: ErrNotConfigured, want: true},
		{name: "wrapped sentinel", err: fmt.Errorf("datastore: %w", ErrNotConfigured), want: true},
		{name: "config error", err: NewNotConfiguredError("datastore", "datastore.readurl"), want: true},
		{name: "wrapped config error", err: fmt.Errorf("open: %w", NewNotConfiguredError("datastore", "datastore.readurl")), want: true},
		{name: "other category", err: NewMissingFieldError(windshaftHost), want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotConfigured(tt.err))
		})
	}
}
