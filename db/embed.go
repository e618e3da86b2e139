// Package db carries the embedded SQL schema applied at startup.
package db

import _ "embed"

// Schema is the idempotent DDL for the rental engine's tables, indexes and
// sequences.
//
//go:embed migrations/001_schema.sql
var Schema string
