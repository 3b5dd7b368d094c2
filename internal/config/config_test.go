package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/ida/pkg/models"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SQL_CONNECTION_STRING", "sqlserver://sa:pw@localhost?database=ida")
	t.Setenv("MONGO_CONNECTION_STRING", "mongodb://localhost:27017")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", c.SQLDriver)
	assert.Equal(t, 100, c.BatchSize)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, ".", c.CheckpointDir)
	assert.Empty(t, c.MetricsAddr)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing sql", map[string]string{"MONGO_CONNECTION_STRING": "mongodb://x"}},
		{"missing mongo", map[string]string{"SQL_CONNECTION_STRING": "x"}},
		{"bad driver", map[string]string{"SQL_CONNECTION_STRING": "x", "MONGO_CONNECTION_STRING": "y", "SQL_DRIVER": "oracle"}},
		{"bad batch", map[string]string{"SQL_CONNECTION_STRING": "x", "MONGO_CONNECTION_STRING": "y", "BATCH_SIZE": "0"}},
		{"bad level", map[string]string{"SQL_CONNECTION_STRING": "x", "MONGO_CONNECTION_STRING": "y", "LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SQL_CONNECTION_STRING", "")
			t.Setenv("MONGO_CONNECTION_STRING", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("IDA_TEST_LOAD_ENV=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("IDA_TEST_LOAD_ENV") })

	n, err := LoadEnv(filepath.Join(dir, "missing.env"), file)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "from-file", os.Getenv("IDA_TEST_LOAD_ENV"))

	n, err = LoadEnv(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadMapping(t *testing.T) {
	m, err := LoadMapping("", "legacy")
	require.NoError(t, err)
	assert.Equal(t, "legacy", m.Database)
	assert.Equal(t, models.DefaultMapping().Collections, m.Collections)

	path := filepath.Join(t.TempDir(), "mapping.json")
	doc := `{
		"database": "parse",
		"collections": {
			"items": {"collection": "Items", "fields": {"name": {"source": "title"}}}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	m, err = LoadMapping(path, "")
	require.NoError(t, err)
	assert.Equal(t, "parse", m.Database)
	items, err := m.Collection(models.SourceItems)
	require.NoError(t, err)
	assert.Equal(t, "Items", items.Collection)
	assert.Equal(t, "title", items.Field("name"))
	assert.Equal(t, "qtyFormula", items.Field("formula"))

	_, err = LoadMapping(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.True(t, models.IsKind(err, models.ErrInvalidMapping))

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadMapping(path, "")
	assert.True(t, models.IsKind(err, models.ErrInvalidMapping))
}
