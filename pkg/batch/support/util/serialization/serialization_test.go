package serialization_test

import (
	"testing"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/serialization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct {
	Offset int    `json:"offset"`
	File   string `json:"file"`
}

func TestToken(t *testing.T) {
	data, err := serialization.MarshalToken(position{Offset: 20, File: "a.parquet"})
	require.NoError(t, err)

	var p position
	ok, err := serialization.UnmarshalToken(data, &p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, position{Offset: 20, File: "a.parquet"}, p)

	data, err = serialization.MarshalToken(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	ok, err = serialization.UnmarshalToken(nil, &p)
	require.NoError(t, err)
	assert.False(t, ok, "no token means a fresh start")

	_, err = serialization.UnmarshalToken([]byte("{"), &p)
	assert.Error(t, err)
}
