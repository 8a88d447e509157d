// Package db embeds the SQL schema applied on startup.
package db

import _ "embed"

// Schema holds the DDL for every storefront table. Statements are idempotent
// so running them on every boot is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
