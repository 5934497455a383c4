package cache

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/codelens-dev/codelens/internal/store"
)

const l3Schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key           TEXT PRIMARY KEY,
	blob          BLOB NOT NULL,
	index_version INTEGER NOT NULL,
	size          INTEGER NOT NULL,
	created_at    INTEGER NOT NULL,
	last_access   INTEGER NOT NULL,
	hit_count     INTEGER NOT NULL DEFAULT 0,
	ttl_seconds   INTEGER NOT NULL
);
`

const queriesSchema = `
CREATE TABLE IF NOT EXISTS queries (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	query         TEXT NOT NULL,
	top_k         INTEGER NOT NULL,
	result_ids    TEXT NOT NULL,
	latency_ms    INTEGER NOT NULL,
	executed_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queries_query ON queries(query);
`

// l3Tier is the durable SQLite tier (§4.7's "survives process restarts and
// cache clears of L1/L2"), plus the query log used by Analyze and Warm.
// Grounded on internal/store.OpenSQLiteWriter's single-writer connection
// idiom, the same one internal/store itself uses for fragments.db and
// embeddings.db.
type l3Tier struct {
	db      *sql.DB
	queries *sql.DB
	ttl     time.Duration
}

func newL3Tier(dbPath, queriesPath string, ttl time.Duration) (*l3Tier, error) {
	if ttl <= 0 {
		ttl = DefaultL3TTL
	}

	db, err := store.OpenSQLiteWriter(dbPath, l3Schema)
	if err != nil {
		return nil, err
	}

	queries, err := store.OpenSQLiteWriter(queriesPath, queriesSchema)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &l3Tier{db: db, queries: queries, ttl: ttl}, nil
}

// DefaultL3TTL is §4.7's documented L3 default: a long-lived durable tier.
const DefaultL3TTL = 24 * time.Hour

func (t *l3Tier) Close() error {
	err1 := t.db.Close()
	err2 := t.queries.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (t *l3Tier) get(key string) (entry, bool) {
	row := t.db.QueryRow(`SELECT blob, index_version, created_at, last_access, hit_count, ttl_seconds FROM cache_entries WHERE key = ?`, key)

	var (
		blob                          []byte
		indexVersion, hitCount        int64
		createdAtUnix, lastAccessUnix int64
		ttlSeconds                    int64
	)
	if err := row.Scan(&blob, &indexVersion, &createdAtUnix, &lastAccessUnix, &hitCount, &ttlSeconds); err != nil {
		return entry{}, false
	}

	now := time.Now()
	_, _ = t.db.Exec(`UPDATE cache_entries SET last_access = ?, hit_count = hit_count + 1 WHERE key = ?`, now.Unix(), key)

	return entry{
		Value:        blob,
		IndexVersion: indexVersion,
		CreatedAt:    time.Unix(createdAtUnix, 0),
		LastAccess:   now,
		HitCount:     hitCount + 1,
		TTL:          time.Duration(ttlSeconds) * time.Second,
	}, true
}

func (t *l3Tier) put(key string, e entry) error {
	ttl := e.TTL
	if ttl <= 0 {
		ttl = t.ttl
	}
	now := time.Now()
	_, err := t.db.Exec(`
		INSERT INTO cache_entries (key, blob, index_version, size, created_at, last_access, hit_count, ttl_seconds)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(key) DO UPDATE SET
			blob = excluded.blob,
			index_version = excluded.index_version,
			size = excluded.size,
			created_at = excluded.created_at,
			last_access = excluded.last_access,
			ttl_seconds = excluded.ttl_seconds
	`, key, e.Value, e.IndexVersion, len(e.Value), now.Unix(), now.Unix(), int64(ttl.Seconds()))
	return err
}

func (t *l3Tier) remove(key string) error {
	_, err := t.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

func (t *l3Tier) clear() error {
	_, err := t.db.Exec(`DELETE FROM cache_entries`)
	return err
}

func (t *l3Tier) pruneOlderThan(cutoff time.Time) error {
	_, err := t.db.Exec(`DELETE FROM cache_entries WHERE last_access < ?`, cutoff.Unix())
	return err
}

// logQuery records one retrieval for Warm's top-N-by-frequency replay and
// for Analyze's reporting, mirroring §4.7's "queries.db" log.
func (t *l3Tier) logQuery(ctx context.Context, query string, topK int, resultIDs []string, latencyMs int64) error {
	encoded := encodeResultIDs(resultIDs)
	_, err := t.queries.ExecContext(ctx, `
		INSERT INTO queries (query, top_k, result_ids, latency_ms, executed_at)
		VALUES (?, ?, ?, ?, ?)
	`, query, topK, encoded, latencyMs, time.Now().Unix())
	return err
}

// topQueries returns the n most frequently logged distinct query strings,
// most frequent first, for Cache.Warm to replay.
func (t *l3Tier) topQueries(ctx context.Context, n int) ([]string, error) {
	rows, err := t.queries.QueryContext(ctx, `
		SELECT query, COUNT(*) AS freq FROM queries
		GROUP BY query
		ORDER BY freq DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		var freq int64
		if err := rows.Scan(&q, &freq); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (t *l3Tier) queryStats(ctx context.Context) (count int64, avgLatencyMs float64, err error) {
	row := t.queries.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(AVG(latency_ms), 0) FROM queries`)
	if err := row.Scan(&count, &avgLatencyMs); err != nil {
		return 0, 0, err
	}
	return count, avgLatencyMs, nil
}

func encodeResultIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func decodeResultIDs(encoded string) []string {
	if encoded == "" {
		return nil
	}
	return strings.Split(encoded, ",")
}
