package store

import (
	"context"
	"fmt"
	"strings"
)

// Backend names the backend Open would pick for dsn, or "" if none.
func Backend(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "" || dsn == "memory":
		return "memory"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite"
	}
	return ""
}

// Open picks a backend from the DSN:
//
//	memory | ""                 in-process maps
//	postgres://... | postgresql://...
//	sqlite:path/to/file.db
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch Backend(dsn) {
	case "memory":
		return NewMemory(), nil
	case "postgres":
		return NewPostgres(ctx, dsn)
	case "sqlite":
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			return nil, fmt.Errorf("sqlite dsn needs a path")
		}
		return NewSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported store dsn %q", dsn)
	}
}
