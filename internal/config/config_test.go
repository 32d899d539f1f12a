package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(env.Options{Environment: map[string]string{
		"DATABASE_URL": "postgres://localhost/truetestify",
		"S3_BUCKET":    " reviews ",
	}})
	require.NoError(t, err)

	assert.Equal(t, "truetestify", cfg.ServiceName)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ":8081", cfg.Addr())
	assert.Equal(t, "reviews", cfg.S3Bucket)
	assert.Equal(t, 15*time.Minute, cfg.SignedURLTTL)
	assert.Equal(t, "h264-720p", cfg.TranscodeTarget)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.StripeEnabled())
	assert.False(t, cfg.IsLocalStorage())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database url",
			env:     map[string]string{"S3_BUCKET": "b"},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "s3 without bucket",
			env:     map[string]string{"DATABASE_URL": "postgres://x"},
			wantErr: "S3_BUCKET is required",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"DATABASE_URL": "postgres://x", "STORAGE_BACKEND": "gcs"},
			wantErr: "unknown STORAGE_BACKEND",
		},
		{
			name: "production without jwt secret",
			env: map[string]string{
				"DATABASE_URL":    "postgres://x",
				"STORAGE_BACKEND": "local",
				"ENVIRONMENT":     "production",
			},
			wantErr: "JWT_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(env.Options{Environment: tt.env})
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_LocalStorage(t *testing.T) {
	cfg, err := load(env.Options{Environment: map[string]string{
		"DATABASE_URL":    "postgres://x",
		"STORAGE_BACKEND": "LOCAL",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
	}})
	require.NoError(t, err)
	assert.True(t, cfg.IsLocalStorage())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}
