package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// SchemaValidator checks that the live database has the tables, columns and
// indexes the database manager queries.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	for _, table := range []string{"users", "messages", "schema_migrations"} {
		exists, err := v.exists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

// ValidateTableStructure verifies column names and declared types
func (v *SchemaValidator) ValidateTableStructure() error {
	userColumns := map[string]string{
		"id":            "INTEGER",
		"username":      "TEXT",
		"password_hash": "TEXT",
	}
	if err := v.validateColumns("users", userColumns); err != nil {
		return fmt.Errorf("users table structure invalid: %w", err)
	}

	messageColumns := map[string]string{
		"id":        "INTEGER",
		"username":  "TEXT",
		"content":   "TEXT",
		"timestamp": "TEXT",
	}
	if err := v.validateColumns("messages", messageColumns); err != nil {
		return fmt.Errorf("messages table structure invalid: %w", err)
	}

	return nil
}

// ValidateIndexes verifies that the message indexes exist
func (v *SchemaValidator) ValidateIndexes() error {
	for _, index := range []string{"idx_messages_username", "idx_messages_timestamp"} {
		exists, err := v.exists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}
	return nil
}

func (v *SchemaValidator) exists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) validateColumns(tableName string, expected map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue interface{}
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = strings.ToUpper(dataType)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for column, wantType := range expected {
		gotType, ok := found[column]
		if !ok {
			return fmt.Errorf("column %s not found", column)
		}
		if gotType != wantType {
			return fmt.Errorf("column %s has type %s, expected %s", column, gotType, wantType)
		}
	}
	return nil
}
