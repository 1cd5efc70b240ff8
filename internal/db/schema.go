package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Timestamps are stored as Unix nanoseconds
// so that end-date comparisons inside SQL are plain integer comparisons.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at    INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS auction_items (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL CHECK (title <> ''),
    description  TEXT NOT NULL DEFAULT '',
    starting_bid REAL NOT NULL CHECK (starting_bid >= 0),
    end_date     INTEGER NOT NULL,
    image        TEXT NOT NULL DEFAULT '',
    created_by   TEXT NOT NULL,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auction_items_created_by ON auction_items(created_by);

CREATE TABLE IF NOT EXISTS bids (
    id              TEXT PRIMARY KEY,
    auction_item_id TEXT NOT NULL,
    user_id         TEXT NOT NULL,
    bid_amount      REAL NOT NULL,
    created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bids_auction_amount ON bids(auction_item_id, bid_amount DESC);
CREATE INDEX IF NOT EXISTS idx_bids_user ON bids(user_id);
`

// Migrate creates the schema. Every statement is idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
