package registry

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/JakeFAU/autocache-warmer/internal/warmer"
)

// SQLite reads sites from a SQLite database file.
type SQLite struct {
	db    *sql.DB
	table string
}

// NewSQLite opens cfg.DSN (a file path or sqlite3 URI) and checks it is reachable.
func NewSQLite(ctx context.Context, cfg Config) (*SQLite, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sites.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLite{db: db, table: table}, nil
}

// ListSites returns every site that is not flagged deleted.
func (s *SQLite) ListSites(ctx context.Context) ([]warmer.Site, error) {
	rows, err := s.db.QueryContext(ctx, listQuery(s.table))
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sites []warmer.Site
	for rows.Next() {
		var site warmer.Site
		if err := rows.Scan(&site.Domain, &site.Path); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}

// Close closes the database handle.
func (s *SQLite) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}
