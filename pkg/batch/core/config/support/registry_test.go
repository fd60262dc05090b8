package support_test

import (
	"context"
	"testing"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ n int }

func TestArtifactRegistry(t *testing.T) {
	r := support.NewArtifactRegistry()
	r.Register("counter", func(context.Context, map[string]string) (any, error) { return &counter{}, nil })

	a1, err := r.Create(context.Background(), "counter", nil)
	require.NoError(t, err)
	a2, err := r.Create(context.Background(), "counter", nil)
	require.NoError(t, err)
	assert.NotSame(t, a1, a2, "each Create builds a fresh artifact")

	_, err = r.Create(context.Background(), "missing", nil)
	assert.True(t, exception.IsConfigurationError(err))
	assert.Equal(t, []string{"counter"}, r.Names())
}

func TestDecodeProperties(t *testing.T) {
	var cfg struct {
		Table   string        `mapstructure:"table"`
		Size    int           `mapstructure:"size"`
		Enabled bool          `mapstructure:"enabled"`
		Wait    time.Duration `mapstructure:"wait"`
	}
	err := support.DecodeProperties(map[string]string{
		"table": "orders", "size": "25", "enabled": "true", "wait": "2s",
	}, &cfg)
	require.NoError(t, err)
	assert.Equal(t, "orders", cfg.Table)
	assert.Equal(t, 25, cfg.Size)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Wait)

	err = support.DecodeProperties(map[string]string{"size": "many"}, &cfg)
	assert.True(t, exception.IsConfigurationError(err))
}
