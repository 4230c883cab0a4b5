package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNow(t *testing.T) {
	got, err := parseNow("2026-02-03T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)))

	_, err = parseNow("yesterday")
	assert.Error(t, err)

	before := time.Now()
	got, err = parseNow("")
	require.NoError(t, err)
	assert.False(t, got.Before(before))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"sweep", "seeds", "create-admin"})
}
