package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoshare.app/internal/config"
)

func TestLoadConfigAcceptsDefaults(t *testing.T) {
	t.Setenv("PHOTOSHARE_AUTH_SECRET", "s3cret")

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"zero burst": {
			"PHOTOSHARE_AUTH_SECRET":     "s3cret",
			"PHOTOSHARE_RATELIMIT_BURST": "0",
		},
		"access outlives refresh": {
			"PHOTOSHARE_AUTH_SECRET":     "s3cret",
			"PHOTOSHARE_AUTH_ACCESS_TTL": "400h",
		},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := loadConfig("")
			require.Error(t, err)
			var cerr config.ErrConfig
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestRunStopsOnInvalidConfig(t *testing.T) {
	t.Setenv("PHOTOSHARE_AUTH_SECRET", "s3cret")
	t.Setenv("PHOTOSHARE_RATELIMIT_BURST", "0")

	err := run("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ratelimit")
}
