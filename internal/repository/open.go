package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	config "github.com/maheshrc27/travelpost-bot/configs"
)

// OpenWorksheet opens the posts worksheet of the configured backend.
func OpenWorksheet(ctx context.Context, cfg config.Sheets) (Worksheet, error) {
	switch cfg.Backend {
	case config.StoreBackendMemory:
		slog.Warn("using in-memory posts store, nothing is persisted")
		return NewMemoryWorksheet(), nil
	case config.StoreBackendSheets:
		srv, err := NewSheetsService(ctx, cfg.ServiceAccountJSON)
		if err != nil {
			return nil, err
		}
		return OpenSheetsWorksheet(ctx, srv, cfg.SpreadsheetID, cfg.SheetName)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// ConnectPostgres opens and pings the posting history database.
func ConnectPostgres(ctx context.Context, uri string) (*sql.DB, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database is unreachable: %w", err)
	}
	return db, nil
}
