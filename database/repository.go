package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// marshalDoc serializes a sub-record into its JSON column value.
func marshalDoc(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(data), nil
}

// unmarshalDoc decodes a JSON column into dst; empty columns are
// treated as the zero value.
func unmarshalDoc(data string, dst any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// nullString converts sql.NullString to a plain string.
func nullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
