package actions

import (
	"context"
	"path/filepath"
	"testing"

	"keyrunner/internal/casefile"
	"keyrunner/internal/config"
	"keyrunner/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) config.KeyrunnerConfig {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Databases = map[string]config.DatabaseConfig{
		DefaultDatabase: {Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")},
	}
	return cfg
}

func TestDatabasePack(t *testing.T) {
	reg, _ := newTestRegistry(t, sqliteConfig(t))

	_, err := call(t, reg, "db_exec", map[string]any{"sql": "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, role TEXT)"})
	require.NoError(t, err)

	v, err := call(t, reg, "db_insert", map[string]any{"table": "users", "values": map[string]any{"name": "alice", "role": "admin"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.(map[string]any)["id"])

	_, err = call(t, reg, "db_insert", map[string]any{"table": "users", "values": map[string]any{"name": "bob", "role": "dev"}})
	require.NoError(t, err)

	v, err = call(t, reg, "db_count", map[string]any{"table": "users"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	v, err = call(t, reg, "db_count", map[string]any{"table": "users", "where": map[string]any{"role": "dev"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = call(t, reg, "db_query", map[string]any{"sql": "SELECT name FROM users WHERE role = ?", "args": []any{"admin"}})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"name": "alice"}}, v)

	// db_delete as compensation of db_insert reuses the insert's values.
	v, err = call(t, reg, "db_delete", map[string]any{"table": "users", "values": map[string]any{"name": "alice", "role": "admin"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = call(t, reg, "clear_table", map[string]any{"table": "users"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = call(t, reg, "db_query", map[string]any{"sql": "SELECT * FROM users"})
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)
}

func TestDatabasePack_Errors(t *testing.T) {
	reg, _ := newTestRegistry(t, sqliteConfig(t))

	_, err := call(t, reg, "db_count", map[string]any{"table": "users; DROP TABLE x"})
	assert.ErrorContains(t, err, "invalid table name")

	_, err = call(t, reg, "db_insert", map[string]any{"table": "t", "values": map[string]any{"bad col": 1}})
	assert.ErrorContains(t, err, "invalid column name")

	_, err = call(t, reg, "db_delete", map[string]any{"table": "t"})
	assert.ErrorContains(t, err, "clear_table")

	_, err = call(t, reg, "db_exec", map[string]any{"db": "other", "sql": "SELECT 1"})
	assert.ErrorContains(t, err, "not configured")

	_, err = call(t, reg, "db_exec", map[string]any{"sql": "NOT SQL"})
	assert.Error(t, err)
}

func TestDatabasePack_InsertCompensationDeletesOnlyInsertedRow(t *testing.T) {
	reg, _ := newTestRegistry(t, sqliteConfig(t))

	_, err := call(t, reg, "db_exec", map[string]any{"sql": "CREATE TABLE u (name TEXT)"})
	require.NoError(t, err)
	_, err = call(t, reg, "db_exec", map[string]any{"sql": "INSERT INTO u (name) VALUES ('alice')"})
	require.NoError(t, err)

	result := runSteps(t, reg,
		casefile.Step{Keyword: "db_insert", Params: map[string]any{"table": "u", "values": map[string]any{"name": "alice"}}},
		casefile.Step{Keyword: "db_count", Params: map[string]any{"table": "u", "where": map[string]any{"name": "alice"}}},
	)

	require.True(t, result.Passed)
	assert.Equal(t, "db_delete", result.Steps[0].Compensation)
	assert.Equal(t, int64(2), result.Steps[1].Value)
	require.Equal(t, 1, result.Recovery.Succeeded)

	v, err := call(t, reg, "db_query", map[string]any{"sql": "SELECT rowid AS rid, name FROM u"})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"rid": int64(1), "name": "alice"}}, v)
}

func TestDatabasePack_InsertIDColumn(t *testing.T) {
	reg, _ := newTestRegistry(t, sqliteConfig(t))
	_, err := call(t, reg, "db_exec", map[string]any{"sql": "CREATE TABLE items (item_id INTEGER PRIMARY KEY, label TEXT)"})
	require.NoError(t, err)

	desc, err := reg.Lookup("db_insert")
	require.NoError(t, err)
	v, err := desc.Handler(context.Background(), map[string]any{
		"table": "items", "values": map[string]any{"label": "x"}, "id_column": "item_id",
	})
	require.NoError(t, err)
	shaped, ok := v.(registry.Result)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"where": map[string]any{"item_id": int64(1)}}, shaped.Params)
	assert.False(t, shaped.Skip)

	_, err = desc.Handler(context.Background(), map[string]any{
		"table": "items", "values": map[string]any{"label": "y"}, "id_column": "item_id; DROP TABLE items",
	})
	assert.Error(t, err)
}
