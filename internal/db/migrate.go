package db

import "fmt"

// AutoMigrate creates the schema if it does not already exist.
func (d *Database) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username VARCHAR(50) UNIQUE NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS books (
            id SERIAL PRIMARY KEY,
            owner_id INT NOT NULL REFERENCES users(id),
            title TEXT NOT NULL,
            review_status VARCHAR(10) NOT NULL DEFAULT 'pending'
                CHECK (review_status IN ('pending', 'accepted', 'rejected')),
            availability VARCHAR(12) NOT NULL DEFAULT 'available'
                CHECK (availability IN ('available', 'unavailable')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS transactions (
            id SERIAL PRIMARY KEY,
            book_id INT NOT NULL REFERENCES books(id),
            sender_id INT NOT NULL REFERENCES users(id),
            receiver_id INT NOT NULL REFERENCES users(id),
            status VARCHAR(10) NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending', 'accepted', 'rejected')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,

		// One pending request per (book, sender). A rejected-then-retry is
		// allowed; a duplicate pending is stopped at the storage layer so
		// concurrent submissions cannot both succeed.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_pending
            ON transactions (book_id, sender_id) WHERE status = 'pending'`,

		// user_a < user_b, normalized by the registry. Deliberately no unique
		// index on the pair: concurrent first-contacts can race the lookup,
		// and the conversation projection reconciles duplicates at read time.
		`CREATE TABLE IF NOT EXISTS conversations (
            id SERIAL PRIMARY KEY,
            user_a INT NOT NULL REFERENCES users(id),
            user_b INT NOT NULL REFERENCES users(id),
            last_message TEXT NOT NULL DEFAULT '',
            last_sender_id INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            conversation_id INT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id INT NOT NULL REFERENCES users(id),
            text TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_messages_conversation
            ON messages (conversation_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS message_attachments (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            url TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            type TEXT NOT NULL DEFAULT '',
            size BIGINT NOT NULL DEFAULT 0
        )`,

		`CREATE TABLE IF NOT EXISTS message_reads (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            PRIMARY KEY (message_id, user_id)
        )`,
	}

	for _, query := range queries {
		if _, err := d.Conn.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
