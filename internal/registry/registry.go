// Package registry lists the child sites of a multi-site install from a
// static list, a Postgres table, or a SQLite file.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/autocache-warmer/internal/warmer"
)

// Provider names accepted by New.
const (
	ProviderNone     = "none"
	ProviderStatic   = "static"
	ProviderPostgres = "postgres"
	ProviderSQLite   = "sqlite"

	// DefaultTable is the site table of a default multi-site schema.
	DefaultTable = "wp_blogs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StaticSite is one configured child site.
type StaticSite struct {
	Domain string `mapstructure:"domain"`
	Path   string `mapstructure:"path"`
}

// Config selects and configures a registry provider.
type Config struct {
	Provider string       `mapstructure:"provider"`
	Static   []StaticSite `mapstructure:"static"`
	DSN      string       `mapstructure:"dsn"`
	Table    string       `mapstructure:"table"`
	MaxConns int32        `mapstructure:"max_conns"`
}

// Registry is a SiteRegistry that owns resources.
type Registry interface {
	warmer.SiteRegistry
	Close()
}

// New builds the configured registry. Provider "none" (or empty) yields a nil
// registry, meaning a single-site install.
func New(ctx context.Context, cfg Config) (Registry, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderStatic:
		return NewStatic(cfg.Static), nil
	case ProviderPostgres:
		reg, err := NewPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return reg, nil
	case ProviderSQLite:
		reg, err := NewSQLite(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unknown sites.provider %q", cfg.Provider)
	}
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// listQuery selects live sites; deleted is 0 for active rows.
func listQuery(table string) string {
	return fmt.Sprintf("SELECT domain, path FROM %s WHERE deleted <= 0", table)
}
