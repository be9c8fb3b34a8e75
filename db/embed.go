// Package db provides embedded database schema and seed files.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedCatalog is the default catalog fixture consumed by cmd/seed-db:
// categories, attributes with options, products, and shipping methods.
//
//go:embed seed/catalog.json
var SeedCatalog []byte
