package wa

import (
	"context"
	"database/sql"
	"fmt"

	btclog "github.com/btcsuite/btclog/v2"
	"go.mau.fi/whatsmeow/store/sqlstore"
)

// NewContainer wraps an already-open SQLite handle as a whatsmeow device
// store and brings its schema up to date. The handle is shared with the
// delivery journal; both live in the same database file.
func NewContainer(ctx context.Context, db *sql.DB,
	log btclog.Logger) (*sqlstore.Container, error) {

	container := sqlstore.NewWithDB(db, "sqlite3", newWALogger(log))
	if err := container.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("unable to upgrade device store: %w",
			err)
	}

	return container, nil
}
