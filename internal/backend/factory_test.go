package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/config"
	"ledger/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type")
	assert.ErrorContains(t, err, "want sqlite, memory")

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/ledger.db",
		AMQPURL:      "amqp://localhost",
		AMQPExchange: "ledger",
		AMQPQueue:    "q",
	})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "/tmp/ledger.db", cfg.SQLiteDBPath)
	assert.Equal(t, "data", cfg.DataDirectory)
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorContains(t, Config{Type: "bogus"}.Validate(), "want sqlite, memory")
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Error(t, Config{Type: MemoryBackend, AMQPURL: "amqp://localhost"}.Validate())
	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}

func TestFactory_Memory(t *testing.T) {
	f := NewFactory(nil)
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.Nil(t, res.Publisher)
	n, err := res.Store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFactory_SQLite(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)
	res, err := f.CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.Nil(t, res.Publisher)
	require.NoError(t, res.Store.Ping(ctx))

	id, err := res.Store.Append(ctx, core.Transaction{
		Amount:   10,
		Kind:     core.Expense,
		Category: "food",
		Date:     core.NewDate(2024, 1, 5),
	})
	require.NoError(t, err)
	got, err := res.Store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "food", got.Category)
}
