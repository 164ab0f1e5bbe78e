package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := rootCmd()

	for _, path := range [][]string{
		{"serve"},
		{"sync", "media"},
		{"sync", "insights"},
		{"trend"},
		{"accounts", "add"},
		{"migrate"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	media, _, err := root.Find([]string{"sync", "media"})
	require.NoError(t, err)
	assert.NotNil(t, media.Flags().Lookup("account"))
	assert.NotNil(t, media.Flags().Lookup("lookback"))

	add, _, err := root.Find([]string{"accounts", "add"})
	require.NoError(t, err)
	assert.NotNil(t, add.Flags().Lookup("legacy-id"))
	assert.NotNil(t, add.Flags().Lookup("exchange"))

	trend, _, err := root.Find([]string{"trend"})
	require.NoError(t, err)
	assert.Equal(t, "json", trend.Flags().Lookup("format").DefValue)
}
