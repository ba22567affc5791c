package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTConfig_DefaultValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-0123456789")
	t.Setenv("JWT_EXPIRATION_HOURS", "")
	t.Setenv("JWT_ISSUER", "")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "test-secret-key-0123456789", cfg.Secret)
	assert.Equal(t, 24, cfg.ExpirationHours, "should use default expiration of 24 hours")
	assert.Equal(t, DefaultJWTIssuer, cfg.Issuer)
}

func TestNewJWTConfig_CustomValues(t *testing.T) {
	tests := []struct {
		name          string
		secret        string
		expiration    string
		expectedHours int
		wantErr       bool
	}{
		{name: "custom expiration", secret: "0123456789abcdef", expiration: "48", expectedHours: 48},
		{name: "minimum expiration", secret: "0123456789abcdef", expiration: "1", expectedHours: 1},
		{name: "zero expiration", secret: "0123456789abcdef", expiration: "0", wantErr: true},
		{name: "negative expiration", secret: "0123456789abcdef", expiration: "-5", wantErr: true},
		{name: "non numeric expiration", secret: "0123456789abcdef", expiration: "soon", wantErr: true},
		{name: "missing secret", secret: "", expiration: "24", wantErr: true},
		{name: "short secret", secret: "too-short", expiration: "24", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("JWT_EXPIRATION_HOURS", tt.expiration)
			t.Setenv("JWT_ISSUER", "placement-portal")

			cfg, err := NewJWTConfig()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedHours, cfg.ExpirationHours)
			assert.Equal(t, "placement-portal", cfg.Issuer)
		})
	}
}
