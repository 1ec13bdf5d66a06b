package db

import (
	"database/sql"
	"log"
	"net/url"

	"github.com/deemkeen/smilodon/domain"
)

// SQL for the moderation and federation tables
const (
	// Per-domain moderation flags
	sqlCreateInstancePoliciesTable = `CREATE TABLE IF NOT EXISTS instance_policies (
		id TEXT NOT NULL PRIMARY KEY,
		domain TEXT UNIQUE NOT NULL,
		blocked INTEGER DEFAULT 0,
		media_removal INTEGER DEFAULT 0,
		media_nsfw INTEGER DEFAULT 0,
		federated_timeline_removal INTEGER DEFAULT 0,
		followers_only INTEGER DEFAULT 0,
		report_removal INTEGER DEFAULT 0,
		reject_deletes INTEGER DEFAULT 0,
		avatar_removal INTEGER DEFAULT 0,
		banner_removal INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateInstancePoliciesIndices = `
		CREATE INDEX IF NOT EXISTS idx_instance_policies_domain ON instance_policies(domain);
		CREATE INDEX IF NOT EXISTS idx_instance_policies_updated_at ON instance_policies(updated_at DESC);
	`

	// Relay handshake state, one row per Follow attempt
	sqlCreateRelaySubscriptionsTable = `CREATE TABLE IF NOT EXISTS relay_subscriptions (
		id TEXT NOT NULL PRIMARY KEY,
		relay_uri TEXT NOT NULL,
		relay_inbox TEXT NOT NULL,
		follow_activity_id TEXT UNIQUE NOT NULL,
		status TEXT NOT NULL,
		accepted INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateRelaySubscriptionsIndices = `
		CREATE INDEX IF NOT EXISTS idx_relay_subscriptions_relay_uri ON relay_subscriptions(relay_uri);
		CREATE INDEX IF NOT EXISTS idx_relay_subscriptions_follow_id ON relay_subscriptions(follow_activity_id);
		CREATE INDEX IF NOT EXISTS idx_relay_subscriptions_status ON relay_subscriptions(status);
	`

	// Inbound activity decision log (for deduplication & auditing)
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		source_host TEXT DEFAULT '',
		accepted INTEGER DEFAULT 0,
		reason TEXT DEFAULT '',
		raw_json TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_uri ON activities(activity_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_source_host ON activities(source_host);
		CREATE INDEX IF NOT EXISTS idx_activities_accepted ON activities(accepted);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
	`

	// Delivery queue table
	sqlCreateDeliveryQueueTable = `CREATE TABLE IF NOT EXISTS delivery_queue (
		id TEXT NOT NULL PRIMARY KEY,
		inbox_uri TEXT NOT NULL,
		actor_uri TEXT DEFAULT '',
		activity_json TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateDeliveryQueueIndices = `
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_next_retry ON delivery_queue(next_retry_at);
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_created_at ON delivery_queue(created_at);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		// Create new tables
		if err := db.createTableIfNotExists(tx, sqlCreateInstancePoliciesTable, "instance_policies"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateRelaySubscriptionsTable, "relay_subscriptions"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateActivitiesTable, "activities"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateDeliveryQueueTable, "delivery_queue"); err != nil {
			return err
		}

		// Create indices
		if _, err := tx.Exec(sqlCreateInstancePoliciesIndices); err != nil {
			log.Printf("Warning: Failed to create instance_policies indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateRelaySubscriptionsIndices); err != nil {
			log.Printf("Warning: Failed to create relay_subscriptions indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateActivitiesIndices); err != nil {
			log.Printf("Warning: Failed to create activities indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateDeliveryQueueIndices); err != nil {
			log.Printf("Warning: Failed to create delivery_queue indices: %v", err)
		}

		// Extend existing tables (ignore errors if columns already exist)
		db.extendExistingTables(tx)

		// Backfill source_host for activities written before the column existed
		if err := db.backfillActivitySourceHosts(tx); err != nil {
			log.Printf("Warning: Failed to backfill activity source_host: %v", err)
		}

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	log.Printf("Table %s created or already exists", tableName)
	return nil
}

func (db *DB) extendExistingTables(tx *sql.Tx) {
	// Try to add decision columns to activities table (ignore errors if they exist)
	tx.Exec("ALTER TABLE activities ADD COLUMN source_host TEXT DEFAULT ''")
	tx.Exec("ALTER TABLE activities ADD COLUMN accepted INTEGER DEFAULT 0")
	tx.Exec("ALTER TABLE activities ADD COLUMN reason TEXT DEFAULT ''")

	// Delivery queue grew a signing actor column once multiple service actors existed
	tx.Exec("ALTER TABLE delivery_queue ADD COLUMN actor_uri TEXT DEFAULT ''")

	log.Println("Extended existing tables with new columns")
}

// backfillActivitySourceHosts derives source_host from actor_uri for activities that are missing it
func (db *DB) backfillActivitySourceHosts(tx *sql.Tx) error {
	// Find activities with empty source_host
	rows, err := tx.Query(`SELECT id, actor_uri FROM activities WHERE source_host IS NULL OR source_host = ''`)
	if err != nil {
		return err
	}
	defer rows.Close()

	updated := 0
	for rows.Next() {
		var id, actorURI string
		if err := rows.Scan(&id, &actorURI); err != nil {
			log.Printf("Warning: Failed to scan activity: %v", err)
			continue
		}

		parsed, err := url.Parse(actorURI)
		if err != nil || parsed.Hostname() == "" {
			continue
		}
		host := domain.NormalizeHost(parsed.Hostname())

		if _, err := tx.Exec(`UPDATE activities SET source_host = ? WHERE id = ?`, host, id); err != nil {
			log.Printf("Warning: Failed to update activity %s: %v", id, err)
		} else {
			updated++
		}
	}

	if updated > 0 {
		log.Printf("Backfilled source_host for %d activities", updated)
	}

	return nil
}
