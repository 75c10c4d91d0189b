// Package db embeds the database schema.
package db

import _ "embed"

// Schema creates every table and index if missing. It is safe to apply on
// each start.
//
//go:embed migrations/001_schema.sql
var Schema string
