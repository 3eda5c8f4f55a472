// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"

	"github.com/mitchellh/mapstructure"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bhuisgen/trellis/pkg/core"
	"github.com/bhuisgen/trellis/pkg/module"
)

// sqliteBackend implements the sqlite backend.
//
// Items are JSON documents of a table with the columns collection, key and
// data. The collection is the category and the key is the identifier with the
// prefix of its category.
type sqliteBackend struct {
	config  *sqliteBackendConfig
	logger  *slog.Logger
	db      *sql.DB
	query   string
	osStat  func(name string) (fs.FileInfo, error)
	sqlOpen func(driverName string, dataSourceName string) (*sql.DB, error)
}

// sqliteBackendConfig implements the sqlite backend configuration.
type sqliteBackendConfig struct {
	Path     string            `mapstructure:"path"`
	Table    *string           `mapstructure:"table"`
	Prefixes map[string]string `mapstructure:"prefixes"`
}

const (
	sqliteModuleID module.ModuleID = "store.backend.sqlite"

	sqliteDriverName         string = "sqlite3"
	sqliteConfigDefaultTable string = "documents"
)

// sqliteConfigDefaultPrefixes returns the default key prefixes of the categories.
func sqliteConfigDefaultPrefixes() map[string]string {
	return map[string]string{
		"article": "article#",
	}
}

// sqliteOsStat redirects to os.Stat.
func sqliteOsStat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// sqliteSqlOpen redirects to sql.Open.
func sqliteSqlOpen(driverName string, dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// init initializes the module.
func init() {
	module.Register(sqliteBackend{})
}

// ModuleInfo returns the module information.
func (b sqliteBackend) ModuleInfo() module.ModuleInfo {
	return module.ModuleInfo{
		ID: sqliteModuleID,
		NewInstance: func() module.Module {
			return &sqliteBackend{
				osStat:  sqliteOsStat,
				sqlOpen: sqliteSqlOpen,
			}
		},
	}
}

// Init initializes the backend.
//
// The backend is unavailable if no existing database is configured.
func (b *sqliteBackend) Init(config map[string]interface{}, logger *slog.Logger) error {
	b.logger = logger

	if err := mapstructure.Decode(config, &b.config); err != nil {
		b.logger.Error("Failed to parse configuration", "err", err)
		return fmt.Errorf("parse config: %w", err)
	}
	if b.config == nil {
		b.config = &sqliteBackendConfig{}
	}
	if b.config.Path == "" {
		return errors.New("missing database path")
	}
	if b.config.Table == nil {
		defaultValue := sqliteConfigDefaultTable
		b.config.Table = &defaultValue
	}
	if !validIdentifier(*b.config.Table) {
		b.logger.Error("Invalid value", "option", "table", "value", *b.config.Table)
		return errors.New("config")
	}
	if b.config.Prefixes == nil {
		b.config.Prefixes = sqliteConfigDefaultPrefixes()
	}

	fi, err := b.osStat(b.config.Path)
	if err != nil {
		return fmt.Errorf("stat database: %w", err)
	}
	if fi.IsDir() {
		return fmt.Errorf("database %s is a directory", b.config.Path)
	}

	db, err := b.sqlOpen(sqliteDriverName, "file:"+b.config.Path+"?"+url.Values{"mode": {"ro"}}.Encode())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("open database: %w", err)
	}
	b.db = db
	b.query = fmt.Sprintf("SELECT data FROM %s WHERE collection = ? AND key = ?", *b.config.Table)

	return nil
}

// Get returns the document of an item.
//
// Lookup failures are logged and reported as a nil item without error.
func (b *sqliteBackend) Get(ctx context.Context, category string, id string) (any, error) {
	key := b.config.Prefixes[category] + id

	var raw string
	err := b.db.QueryRowContext(ctx, b.query, category, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		b.logger.Warn("Item not found", "category", category, "key", key)
		return nil, nil
	}
	if err != nil {
		b.logger.Error("Failed to get item", "category", category, "key", key, "err", err)
		return nil, nil
	}

	var document any
	if err := json.Unmarshal([]byte(raw), &document); err != nil {
		b.logger.Error("Failed to parse item", "category", category, "key", key, "err", err)
		return nil, nil
	}

	return document, nil
}

// Close closes the database.
func (b *sqliteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// validIdentifier reports whether a table name can be used unquoted.
func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

var _ core.StoreBackendModule = (*sqliteBackend)(nil)
