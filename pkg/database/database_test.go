package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NotNil(t, config)

	assert.Equal(t, "./chat.db", config.DatabasePath)
	assert.Equal(t, 10, config.MaxConnections)
	assert.Equal(t, time.Hour, config.ConnMaxLifetime)
	assert.NoError(t, config.Validate())
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.DatabasePath = "" }},
		{"zero max connections", func(c *Config) { c.MaxConnections = 0 }},
		{"zero lifetime", func(c *Config) { c.ConnMaxLifetime = 0 }},
		{"zero idle time", func(c *Config) { c.ConnMaxIdleTime = 0 }},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }},
		{"negative retry delay", func(c *Config) { c.WriteRetryDelay = -time.Second }},
		{"password cost too low", func(c *Config) { c.PasswordCost = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestMigrationManager_ApplyEmbedded(t *testing.T) {
	db := openTestDB(t)
	manager := NewMigrationManager(db)

	require.NoError(t, manager.ApplyMigrations())
	require.NoError(t, manager.ValidateSchema())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrationManager_Idempotent(t *testing.T) {
	db := openTestDB(t)
	manager := NewMigrationManager(db)

	require.NoError(t, manager.ApplyMigrations())
	require.NoError(t, manager.ApplyMigrations())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrationManager_OrderAndFailure(t *testing.T) {
	db := openTestDB(t)
	source := fstest.MapFS{
		"m/002_second.sql": {Data: []byte("INSERT INTO things (name) VALUES ('b');")},
		"m/001_first.sql":  {Data: []byte("CREATE TABLE things (name TEXT);")},
		"m/003_broken.sql": {Data: []byte("THIS IS NOT SQL;")},
		"m/readme.txt":     {Data: []byte("ignored")},
	}
	manager := NewMigrationManagerFS(db, source, "m")

	err := manager.ApplyMigrations()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "003")

	// 001 and 002 ran in order, 003 rolled back
	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM things").Scan(&rows))
	assert.Equal(t, 1, rows)

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 2, applied)
}

func TestSchemaValidator_EmptyDatabase(t *testing.T) {
	validator := NewSchemaValidator(openTestDB(t))

	assert.Error(t, validator.ValidateTablesExist())
	assert.Error(t, validator.ValidateIndexes())
}

func TestSchemaValidator_WrongColumnType(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`
		CREATE TABLE users (id INTEGER PRIMARY KEY, username TEXT, password_hash TEXT);
		CREATE TABLE messages (id INTEGER PRIMARY KEY, username TEXT, content TEXT, timestamp DATETIME);
	`)
	require.NoError(t, err)

	err = NewSchemaValidator(db).ValidateTableStructure()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}
