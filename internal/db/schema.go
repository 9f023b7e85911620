package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    phone         TEXT NOT NULL DEFAULT '',
    address       TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
    id                 INTEGER PRIMARY KEY,
    owner_id           INTEGER NOT NULL REFERENCES users(id),
    name               TEXT NOT NULL,
    description        TEXT,
    category           TEXT NOT NULL CHECK (category IN ('car', 'motorbike')),
    transaction_type   TEXT NOT NULL CHECK (transaction_type IN ('lend', 'give_away', 'exchange')),
    price_per_hour     REAL,
    quantity           INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0),
    available_quantity INTEGER NOT NULL DEFAULT 1
                       CHECK (available_quantity >= 0 AND available_quantity <= quantity),
    status             TEXT NOT NULL DEFAULT 'available'
                       CHECK (status IN ('available', 'unavailable', 'completed')),
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS transaction_requests (
    id                 INTEGER PRIMARY KEY,
    item_id            INTEGER NOT NULL REFERENCES items(id),
    requester_id       INTEGER NOT NULL REFERENCES users(id),
    owner_id           INTEGER NOT NULL REFERENCES users(id),
    status             TEXT NOT NULL DEFAULT 'pending'
                       CHECK (status IN ('pending', 'accepted', 'rejected')),
    hours              INTEGER,
    quantity_requested INTEGER NOT NULL DEFAULT 1 CHECK (quantity_requested > 0),
    exchange_item_id   INTEGER REFERENCES items(id),
    message            TEXT NOT NULL DEFAULT '',
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    responded_at       DATETIME,
    CHECK (requester_id <> owner_id)
);

CREATE TABLE IF NOT EXISTS conversations (
    id         INTEGER PRIMARY KEY,
    user1_id   INTEGER NOT NULL REFERENCES users(id),
    user2_id   INTEGER NOT NULL REFERENCES users(id),
    item_id    INTEGER REFERENCES items(id),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id              INTEGER PRIMARY KEY,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id),
    sender_id       INTEGER NOT NULL REFERENCES users(id),
    message_type    TEXT NOT NULL DEFAULT 'text' CHECK (message_type IN ('text', 'system')),
    content         TEXT NOT NULL,
    is_read         INTEGER NOT NULL DEFAULT 0,
    is_edited       INTEGER NOT NULL DEFAULT 0,
    is_deleted      INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    edited_at       DATETIME
);

CREATE TABLE IF NOT EXISTS appointments (
    id               INTEGER PRIMARY KEY,
    item_id          INTEGER NOT NULL REFERENCES items(id),
    requester_id     INTEGER NOT NULL REFERENCES users(id),
    owner_id         INTEGER NOT NULL REFERENCES users(id),
    appointment_time DATETIME NOT NULL,
    location         TEXT NOT NULL,
    location_lat     REAL,
    location_lng     REAL,
    status           TEXT NOT NULL DEFAULT 'pending'
                     CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed')),
    notes            TEXT NOT NULL DEFAULT '',
    reminder_sent    INTEGER NOT NULL DEFAULT 0,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (requester_id <> owner_id)
);

CREATE TABLE IF NOT EXISTS ratings (
    id            INTEGER PRIMARY KEY,
    rater_id      INTEGER NOT NULL REFERENCES users(id),
    rated_user_id INTEGER NOT NULL REFERENCES users(id),
    item_id       INTEGER NOT NULL REFERENCES items(id),
    rating        INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
    comment       TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (rater_id, rated_user_id, item_id),
    CHECK (rater_id <> rated_user_id)
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
