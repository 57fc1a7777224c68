package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/wallet-gnn/internal/device"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/internal/trainer"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "ENV", "DATABASE_URL", "DATA_DIR", "MODEL_PATH", "DEVICE",
		"TIMING_SCOPE", "LABEL_POLICY", "FETCH_CONCURRENCY", "BATCH_CHUNK_SIZE",
		"API_AUTH_TOKEN", "ALLOWED_ORIGINS", "RATE_LIMIT_PER_MIN", "RATE_LIMIT_BURST",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/data")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultModelPath, cfg.ModelPath)
	assert.Equal(t, device.CPU, cfg.Device)
	assert.Equal(t, graph.TimingGlobal, cfg.TimingScope)
	assert.Equal(t, trainer.SoftDefault, cfg.LabelPolicy)
	assert.Equal(t, DefaultFetchConcurrency, cfg.FetchConcurrency)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/wallets")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DEVICE", "gpu")
	t.Setenv("TIMING_SCOPE", "node")
	t.Setenv("LABEL_POLICY", "mask")
	t.Setenv("FETCH_CONCURRENCY", "3")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, device.CUDA, cfg.Device)
	assert.Equal(t, graph.TimingPerNode, cfg.TimingScope)
	assert.Equal(t, trainer.MaskUnlabeled, cfg.LabelPolicy)
	assert.Equal(t, DefaultRateLimitBurst, cfg.RateLimitBurst)

	opts := cfg.BuilderOptions()
	assert.Equal(t, 3, opts.Concurrency)
	assert.Equal(t, graph.TimingPerNode, opts.TimingScope)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"no store", nil, "DATABASE_URL or DATA_DIR"},
		{"bad device", map[string]string{"DATA_DIR": "d", "DEVICE": "tpu"}, "DEVICE"},
		{"bad timing", map[string]string{"DATA_DIR": "d", "TIMING_SCOPE": "edge"}, "TIMING_SCOPE"},
		{"bad policy", map[string]string{"DATA_DIR": "d", "LABEL_POLICY": "drop"}, "LABEL_POLICY"},
		{"zero concurrency", map[string]string{"DATA_DIR": "d", "FETCH_CONCURRENCY": "0"}, "FETCH_CONCURRENCY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpenStore_CSVDataset(t *testing.T) {
	dir := t.TempDir()
	csv := "FROM_ADDRESS,TO_ADDRESS,VALUE_PRECISE,BLOCK_TIMESTAMP\n0xa,0xb,1,2024-01-01 00:00:00+0000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "transactions.csv"), []byte(csv), 0o644))

	cfg := &Config{DataDir: dir}
	txStore, dbConn, err := cfg.OpenStore()
	require.NoError(t, err)
	assert.Nil(t, dbConn)

	rows, err := txStore.Rows(context.Background(), models.CategoryNative, models.DirectionFrom, "0xa")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
