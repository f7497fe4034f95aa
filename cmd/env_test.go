package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bure-project/bure/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.SQLitePath = filepath.Join(t.TempDir(), "bure.db")
	return c
}

func TestInitStore_SQLite(t *testing.T) {
	old := cfg
	cfg = testConfig(t)
	t.Cleanup(func() { cfg = old })

	st, err := initStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	old := cfg
	cfg = testConfig(t)
	cfg.Store.Driver = "oracle"
	t.Cleanup(func() { cfg = old })

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitRegistry_Embedded(t *testing.T) {
	old := cfg
	cfg = testConfig(t)
	t.Cleanup(func() { cfg = old })

	reg, err := initRegistry()
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Codes())
	_, ok := reg.Get("back_bay")
	assert.True(t, ok)
}
