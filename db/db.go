package db

import (
	"context"
	"database/sql"
	"sync"

	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/util"
	"github.com/google/uuid"
	"log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
	"time"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

// Service actors (local non-user actors, e.g. the relay subscriber)
const (
	sqlCreateServiceActorsTable = `CREATE TABLE IF NOT EXISTS service_actors(
                        id uuid NOT NULL PRIMARY KEY,
                        username varchar(100) UNIQUE NOT NULL,
                        actor_uri text UNIQUE NOT NULL,
                        public_key_pem text NOT NULL,
                        private_key_pem text NOT NULL,
                        created_at timestamp default current_timestamp
                        )`
	sqlInsertServiceActor           = `INSERT INTO service_actors(id, username, actor_uri, public_key_pem, private_key_pem, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectServiceActorByUsername = `SELECT id, username, actor_uri, public_key_pem, private_key_pem, created_at FROM service_actors WHERE username = ?`
	sqlSelectServiceActorByURI      = `SELECT id, username, actor_uri, public_key_pem, private_key_pem, created_at FROM service_actors WHERE actor_uri = ?`
)

// CreateServiceActor generates a fresh keypair and persists a new service
// actor under the given username.
func (db *DB) CreateServiceActor(username string, actorURI string) (error, *domain.ServiceActor) {
	keypair := util.GeneratePemKeypair()

	actor := &domain.ServiceActor{
		Id:            uuid.New(),
		Username:      username,
		ActorURI:      actorURI,
		PublicKeyPem:  keypair.Public,
		PrivateKeyPem: keypair.Private,
		CreatedAt:     time.Now(),
	}

	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertServiceActor,
			actor.Id.String(),
			actor.Username,
			actor.ActorURI,
			actor.PublicKeyPem,
			actor.PrivateKeyPem,
			actor.CreatedAt,
		)
		return err
	})
	if err != nil {
		log.Println("Creating service actor failed: ", err)
		return err, nil
	}
	return nil, actor
}

func (db *DB) ReadServiceActorByUsername(username string) (error, *domain.ServiceActor) {
	row := db.db.QueryRow(sqlSelectServiceActorByUsername, username)
	var actor domain.ServiceActor
	var idStr string
	err := row.Scan(&idStr, &actor.Username, &actor.ActorURI, &actor.PublicKeyPem, &actor.PrivateKeyPem, &actor.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	actor.Id, _ = uuid.Parse(idStr)
	return nil, &actor
}

func (db *DB) ReadServiceActorByURI(uri string) (error, *domain.ServiceActor) {
	row := db.db.QueryRow(sqlSelectServiceActorByURI, uri)
	var actor domain.ServiceActor
	var idStr string
	err := row.Scan(&idStr, &actor.Username, &actor.ActorURI, &actor.PublicKeyPem, &actor.PrivateKeyPem, &actor.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	actor.Id, _ = uuid.Parse(idStr)
	return nil, &actor
}

// Instance policy queries
const (
	sqlInsertInstancePolicy = `INSERT INTO instance_policies(id, domain, blocked, media_removal, media_nsfw, federated_timeline_removal, followers_only, report_removal, reject_deletes, avatar_removal, banner_removal, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateInstancePolicy = `UPDATE instance_policies SET blocked = ?, media_removal = ?, media_nsfw = ?, federated_timeline_removal = ?, followers_only = ?, report_removal = ?, reject_deletes = ?, avatar_removal = ?, banner_removal = ?, updated_at = ? WHERE domain = ?`
	sqlDeleteInstancePolicy = `DELETE FROM instance_policies WHERE domain = ?`

	sqlSelectInstancePolicyByDomain = `SELECT id, domain, blocked, media_removal, media_nsfw, federated_timeline_removal, followers_only, report_removal, reject_deletes, avatar_removal, banner_removal, created_at, updated_at FROM instance_policies WHERE domain = ?`
	sqlSelectAllInstancePolicies    = `SELECT id, domain, blocked, media_removal, media_nsfw, federated_timeline_removal, followers_only, report_removal, reject_deletes, avatar_removal, banner_removal, created_at, updated_at FROM instance_policies ORDER BY domain ASC`
	sqlSelectWildcardPolicies       = `SELECT id, domain, blocked, media_removal, media_nsfw, federated_timeline_removal, followers_only, report_removal, reject_deletes, avatar_removal, banner_removal, created_at, updated_at FROM instance_policies WHERE domain LIKE '*.%'`
	sqlCountInstancePolicies        = `SELECT COUNT(*) FROM instance_policies`
)

func (db *DB) CreateInstancePolicy(policy *domain.InstancePolicy) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertInstancePolicy,
			policy.Id.String(),
			policy.Domain,
			policy.Blocked,
			policy.MediaRemoval,
			policy.MediaNsfw,
			policy.FederatedTimelineRemoval,
			policy.FollowersOnly,
			policy.ReportRemoval,
			policy.RejectDeletes,
			policy.AvatarRemoval,
			policy.BannerRemoval,
			policy.CreatedAt,
			policy.UpdatedAt,
		)
		return err
	})
}

func (db *DB) UpdateInstancePolicy(policy *domain.InstancePolicy) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateInstancePolicy,
			policy.Blocked,
			policy.MediaRemoval,
			policy.MediaNsfw,
			policy.FederatedTimelineRemoval,
			policy.FollowersOnly,
			policy.ReportRemoval,
			policy.RejectDeletes,
			policy.AvatarRemoval,
			policy.BannerRemoval,
			time.Now(),
			policy.Domain,
		)
		return err
	})
}

func (db *DB) DeleteInstancePolicy(domainName string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteInstancePolicy, domainName)
		return err
	})
}

// ReadInstancePolicyByDomain looks up the exact record for a domain. Callers
// distinguish "no record" (sql.ErrNoRows) from store failure, since the
// reputation cache fails open only on the latter.
func (db *DB) ReadInstancePolicyByDomain(domainName string) (error, *domain.InstancePolicy) {
	row := db.db.QueryRow(sqlSelectInstancePolicyByDomain, domainName)
	var policy domain.InstancePolicy
	var idStr string
	err := row.Scan(
		&idStr,
		&policy.Domain,
		&policy.Blocked,
		&policy.MediaRemoval,
		&policy.MediaNsfw,
		&policy.FederatedTimelineRemoval,
		&policy.FollowersOnly,
		&policy.ReportRemoval,
		&policy.RejectDeletes,
		&policy.AvatarRemoval,
		&policy.BannerRemoval,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	policy.Id, _ = uuid.Parse(idStr)
	return nil, &policy
}

func (db *DB) ReadAllInstancePolicies() (error, *[]domain.InstancePolicy) {
	rows, err := db.db.Query(sqlSelectAllInstancePolicies)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var policies []domain.InstancePolicy
	for rows.Next() {
		var policy domain.InstancePolicy
		var idStr string
		if err := rows.Scan(
			&idStr,
			&policy.Domain,
			&policy.Blocked,
			&policy.MediaRemoval,
			&policy.MediaNsfw,
			&policy.FederatedTimelineRemoval,
			&policy.FollowersOnly,
			&policy.ReportRemoval,
			&policy.RejectDeletes,
			&policy.AvatarRemoval,
			&policy.BannerRemoval,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		); err != nil {
			return err, &policies
		}
		policy.Id, _ = uuid.Parse(idStr)
		policies = append(policies, policy)
	}
	if err = rows.Err(); err != nil {
		return err, &policies
	}
	return nil, &policies
}

// ReadWildcardInstancePolicies returns every record whose domain carries a
// leading wildcard segment. The reputation cache scans these on an exact-match
// miss.
func (db *DB) ReadWildcardInstancePolicies() (error, *[]domain.InstancePolicy) {
	rows, err := db.db.Query(sqlSelectWildcardPolicies)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var policies []domain.InstancePolicy
	for rows.Next() {
		var policy domain.InstancePolicy
		var idStr string
		if err := rows.Scan(
			&idStr,
			&policy.Domain,
			&policy.Blocked,
			&policy.MediaRemoval,
			&policy.MediaNsfw,
			&policy.FederatedTimelineRemoval,
			&policy.FollowersOnly,
			&policy.ReportRemoval,
			&policy.RejectDeletes,
			&policy.AvatarRemoval,
			&policy.BannerRemoval,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		); err != nil {
			return err, &policies
		}
		policy.Id, _ = uuid.Parse(idStr)
		policies = append(policies, policy)
	}
	if err = rows.Err(); err != nil {
		return err, &policies
	}
	return nil, &policies
}

func (db *DB) CountInstancePolicies() (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountInstancePolicies).Scan(&count)
	return err, count
}

// Relay subscription queries
const (
	sqlInsertRelaySubscription         = `INSERT INTO relay_subscriptions(id, relay_uri, relay_inbox, follow_activity_id, status, accepted, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectRelaySubByFollowId        = `SELECT id, relay_uri, relay_inbox, follow_activity_id, status, accepted, created_at, updated_at FROM relay_subscriptions WHERE follow_activity_id = ?`
	sqlSelectRelaySubByRelayURI        = `SELECT id, relay_uri, relay_inbox, follow_activity_id, status, accepted, created_at, updated_at FROM relay_subscriptions WHERE relay_uri = ? ORDER BY created_at DESC LIMIT 1`
	sqlSelectAllRelaySubscriptions     = `SELECT id, relay_uri, relay_inbox, follow_activity_id, status, accepted, created_at, updated_at FROM relay_subscriptions ORDER BY created_at DESC`
	sqlSelectRelaySubscriptionsByState = `SELECT id, relay_uri, relay_inbox, follow_activity_id, status, accepted, created_at, updated_at FROM relay_subscriptions WHERE status = ? ORDER BY created_at DESC`
	sqlUpdateRelaySubscriptionStatus   = `UPDATE relay_subscriptions SET status = ?, accepted = ?, updated_at = ? WHERE id = ?`
	sqlCountRelaySubscriptionsByState  = `SELECT COUNT(*) FROM relay_subscriptions WHERE status = ?`
)

func (db *DB) CreateRelaySubscription(sub *domain.RelaySubscription) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertRelaySubscription,
			sub.Id.String(),
			sub.RelayURI,
			sub.RelayInbox,
			sub.FollowActivityId,
			sub.Status,
			sub.Accepted,
			sub.CreatedAt,
			sub.UpdatedAt,
		)
		return err
	})
}

func (db *DB) ReadRelaySubscriptionByFollowId(followId string) (error, *domain.RelaySubscription) {
	row := db.db.QueryRow(sqlSelectRelaySubByFollowId, followId)
	var sub domain.RelaySubscription
	var idStr string
	err := row.Scan(&idStr, &sub.RelayURI, &sub.RelayInbox, &sub.FollowActivityId, &sub.Status, &sub.Accepted, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	sub.Id, _ = uuid.Parse(idStr)
	return nil, &sub
}

// ReadRelaySubscriptionByRelayURI returns the newest handshake for a relay.
// Older rows stay around as history after a re-subscribe.
func (db *DB) ReadRelaySubscriptionByRelayURI(relayURI string) (error, *domain.RelaySubscription) {
	row := db.db.QueryRow(sqlSelectRelaySubByRelayURI, relayURI)
	var sub domain.RelaySubscription
	var idStr string
	err := row.Scan(&idStr, &sub.RelayURI, &sub.RelayInbox, &sub.FollowActivityId, &sub.Status, &sub.Accepted, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	sub.Id, _ = uuid.Parse(idStr)
	return nil, &sub
}

func (db *DB) ReadAllRelaySubscriptions() (error, *[]domain.RelaySubscription) {
	rows, err := db.db.Query(sqlSelectAllRelaySubscriptions)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var subs []domain.RelaySubscription
	for rows.Next() {
		var sub domain.RelaySubscription
		var idStr string
		if err := rows.Scan(&idStr, &sub.RelayURI, &sub.RelayInbox, &sub.FollowActivityId, &sub.Status, &sub.Accepted, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return err, &subs
		}
		sub.Id, _ = uuid.Parse(idStr)
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return err, &subs
	}
	return nil, &subs
}

func (db *DB) ReadRelaySubscriptionsByStatus(status string) (error, *[]domain.RelaySubscription) {
	rows, err := db.db.Query(sqlSelectRelaySubscriptionsByState, status)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var subs []domain.RelaySubscription
	for rows.Next() {
		var sub domain.RelaySubscription
		var idStr string
		if err := rows.Scan(&idStr, &sub.RelayURI, &sub.RelayInbox, &sub.FollowActivityId, &sub.Status, &sub.Accepted, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return err, &subs
		}
		sub.Id, _ = uuid.Parse(idStr)
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return err, &subs
	}
	return nil, &subs
}

func (db *DB) UpdateRelaySubscriptionStatus(id uuid.UUID, status string, accepted bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRelaySubscriptionStatus, status, accepted, time.Now(), id.String())
		return err
	})
}

func (db *DB) CountRelaySubscriptionsByStatus(status string) (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountRelaySubscriptionsByState, status).Scan(&count)
	return err, count
}

// Activity decision log queries
const (
	sqlInsertActivity          = `INSERT INTO activities(id, activity_uri, activity_type, actor_uri, source_host, accepted, reason, raw_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectActivityByURI     = `SELECT id, activity_uri, activity_type, actor_uri, source_host, accepted, reason, raw_json, created_at FROM activities WHERE activity_uri = ?`
	sqlSelectRecentActivities  = `SELECT id, activity_uri, activity_type, actor_uri, source_host, accepted, reason, raw_json, created_at FROM activities ORDER BY created_at DESC LIMIT ?`
	sqlSelectRecentRejections  = `SELECT id, activity_uri, activity_type, actor_uri, source_host, accepted, reason, raw_json, created_at FROM activities WHERE accepted = 0 ORDER BY created_at DESC LIMIT ?`
	sqlCountActivities         = `SELECT COUNT(*) FROM activities`
	sqlCountRejectedActivities = `SELECT COUNT(*) FROM activities WHERE accepted = 0`
)

func (db *DB) CreateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActivity,
			activity.Id.String(),
			activity.ActivityURI,
			activity.ActivityType,
			activity.ActorURI,
			activity.SourceHost,
			activity.Accepted,
			activity.Reason,
			activity.RawJSON,
			activity.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadActivityByURI(uri string) (error, *domain.Activity) {
	row := db.db.QueryRow(sqlSelectActivityByURI, uri)
	var activity domain.Activity
	var idStr string
	err := row.Scan(
		&idStr,
		&activity.ActivityURI,
		&activity.ActivityType,
		&activity.ActorURI,
		&activity.SourceHost,
		&activity.Accepted,
		&activity.Reason,
		&activity.RawJSON,
		&activity.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	activity.Id, _ = uuid.Parse(idStr)
	return nil, &activity
}

func (db *DB) ReadRecentActivities(limit int) (error, *[]domain.Activity) {
	return db.readActivityList(sqlSelectRecentActivities, limit)
}

func (db *DB) ReadRecentRejections(limit int) (error, *[]domain.Activity) {
	return db.readActivityList(sqlSelectRecentRejections, limit)
}

func (db *DB) readActivityList(query string, limit int) (error, *[]domain.Activity) {
	rows, err := db.db.Query(query, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		var activity domain.Activity
		var idStr string
		if err := rows.Scan(&idStr, &activity.ActivityURI, &activity.ActivityType, &activity.ActorURI, &activity.SourceHost, &activity.Accepted, &activity.Reason, &activity.RawJSON, &activity.CreatedAt); err != nil {
			return err, &activities
		}
		activity.Id, _ = uuid.Parse(idStr)
		activities = append(activities, activity)
	}
	if err = rows.Err(); err != nil {
		return err, &activities
	}
	return nil, &activities
}

func (db *DB) CountActivities() (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountActivities).Scan(&count)
	return err, count
}

func (db *DB) CountRejectedActivities() (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountRejectedActivities).Scan(&count)
	return err, count
}

// Delivery queue queries
const (
	sqlInsertDeliveryQueue     = `INSERT INTO delivery_queue(id, inbox_uri, actor_uri, activity_json, attempts, next_retry_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPendingDeliveries = `SELECT id, inbox_uri, actor_uri, activity_json, attempts, next_retry_at, created_at FROM delivery_queue WHERE next_retry_at <= ? ORDER BY created_at ASC LIMIT ?`
	sqlUpdateDeliveryAttempt   = `UPDATE delivery_queue SET attempts = ?, next_retry_at = ? WHERE id = ?`
	sqlDeleteDelivery          = `DELETE FROM delivery_queue WHERE id = ?`
	sqlCountPendingDeliveries  = `SELECT COUNT(*) FROM delivery_queue`
)

func (db *DB) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertDeliveryQueue,
			item.Id.String(),
			item.InboxURI,
			item.ActorURI,
			item.ActivityJSON,
			item.Attempts,
			item.NextRetryAt,
			item.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadPendingDeliveries(limit int) (error, *[]domain.DeliveryQueueItem) {
	rows, err := db.db.Query(sqlSelectPendingDeliveries, time.Now(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var items []domain.DeliveryQueueItem
	for rows.Next() {
		var item domain.DeliveryQueueItem
		var idStr string
		if err := rows.Scan(&idStr, &item.InboxURI, &item.ActorURI, &item.ActivityJSON, &item.Attempts, &item.NextRetryAt, &item.CreatedAt); err != nil {
			return err, &items
		}
		item.Id, _ = uuid.Parse(idStr)
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return err, &items
	}
	return nil, &items
}

func (db *DB) UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateDeliveryAttempt, attempts, nextRetry, id.String())
		return err
	})
}

func (db *DB) DeleteDelivery(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteDelivery, id.String())
		return err
	})
}

func (db *DB) CountPendingDeliveries() (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountPendingDeliveries).Scan(&count)
	return err, count
}

func GetDB() *DB {
	dbOnce.Do(func() {
		// Open database connection
		db, err := sql.Open("sqlite", "database.db")
		if err != nil {
			panic(err)
		}

		// Configure connection pool for concurrent access
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)

		// Try to enable WAL2 mode, fall back to WAL if not supported
		var journalMode string
		err = db.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
		if err != nil || journalMode == "delete" {
			// WAL2 not supported, try regular WAL
			err = db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
			if err != nil {
				log.Printf("Warning: Failed to enable WAL mode: %v", err)
			} else {
				log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
			}
		} else {
			log.Printf("Database journal mode: %s", journalMode)
		}

		// Optimize PRAGMAs for concurrent federation workload
		// These need to be set as connection defaults
		db.Exec("PRAGMA synchronous = NORMAL")      // Reduces fsync calls
		db.Exec("PRAGMA cache_size = -64000")       // 64MB cache per connection
		db.Exec("PRAGMA temp_store = MEMORY")       // Store temp tables in RAM
		db.Exec("PRAGMA busy_timeout = 5000")       // Wait up to 5s for locks
		db.Exec("PRAGMA foreign_keys = ON")         // Enable FK constraints
		db.Exec("PRAGMA auto_vacuum = INCREMENTAL") // Better performance than FULL

		log.Printf("Database initialized with connection pooling (max 25 connections)")

		dbInstance = &DB{db: db}

		// Run initial schema setup
		err2 := dbInstance.CreateDB()
		if err2 != nil {
			panic(err2)
		}
	})

	return dbInstance
}

// CreateDB creates the core tables.
func (db *DB) CreateDB() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlCreateServiceActorsTable)
		return err
	})
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}
