package step_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/jbatch/cmd/jbatch/internal/step"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

func TestHelloBatchlet(t *testing.T) {
	b, err := step.NewHelloBatchlet(map[string]string{"message": "hi", "exit_status": "GREETED"})
	require.NoError(t, err)

	status, err := b.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GREETED", status)
	assert.NoError(t, b.Stop(context.Background()))
}

func TestHelloBatchlet_DefaultsAndErrors(t *testing.T) {
	b, err := step.NewHelloBatchlet(map[string]string{"message": "hi"})
	require.NoError(t, err)
	status, err := b.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", status)

	_, err = step.NewHelloBatchlet(nil)
	assert.True(t, exception.IsConfigurationError(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Process(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
