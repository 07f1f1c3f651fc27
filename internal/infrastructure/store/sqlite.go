package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/suppchat/backend/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const entryColumns = `id, tier, cache_key, normalized_question, response_text, products, payload,
	hit_count, created_at, updated_at, expires_at`

const recordInsertColumns = `cache_key, tier, occurrence_count, last_response_text, last_products, created_at, updated_at`

const recordColumns = recordInsertColumns + `, promoted_at`

// SQLiteStore persists cache tiers and frequency records in SQLite
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs pending
// migrations. Pass ":memory:" for an in-memory database (used by tests).
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: avoids "database is locked" and keeps :memory: a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies embedded migrations not yet recorded in schema_version
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Cache entries ---

// FindEntry returns the first entry under (tier, key) expiring after now
func (s *SQLiteStore) FindEntry(ctx context.Context, tier domain.Tier, key string, now time.Time) (*domain.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM cache_entries
		WHERE tier = ? AND cache_key = ? AND expires_at > ?
		LIMIT 1`,
		string(tier), key, now.UnixNano(),
	)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("finding %s entry: %w", tier, err)
	}
	return entry, nil
}

// SaveEntry validates and upserts an entry; a racing promotion of the same
// key simply overwrites the previous one
func (s *SQLiteStore) SaveEntry(ctx context.Context, entry *domain.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	products, err := json.Marshal(nonNilProducts(entry.Products))
	if err != nil {
		return fmt.Errorf("encoding products: %w", err)
	}
	payload, err := encodePayload(entry)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tier, cache_key) DO UPDATE SET
			id = excluded.id,
			normalized_question = excluded.normalized_question,
			response_text = excluded.response_text,
			products = excluded.products,
			payload = excluded.payload,
			hit_count = excluded.hit_count,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		entry.ID, string(entry.Tier), entry.Key, entry.NormalizedQuestion, entry.ResponseText,
		string(products), string(payload), entry.HitCount,
		entry.CreatedAt.UnixNano(), entry.UpdatedAt.UnixNano(), entry.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving %s entry: %w", entry.Tier, err)
	}
	return nil
}

// IncrementHits atomically adds one to the entry hit counter
func (s *SQLiteStore) IncrementHits(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE cache_entries SET hit_count = hit_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("incrementing hits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("incrementing hits: %w", err)
	}
	if n == 0 {
		return domain.ErrCacheMiss
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.CacheEntry, error) {
	var (
		entry                             domain.CacheEntry
		tier, products, payload           string
		createdAt, updatedAt, expiresAtNs int64
	)
	if err := row.Scan(
		&entry.ID, &tier, &entry.Key, &entry.NormalizedQuestion, &entry.ResponseText,
		&products, &payload, &entry.HitCount, &createdAt, &updatedAt, &expiresAtNs,
	); err != nil {
		return nil, err
	}

	entry.Tier = domain.Tier(tier)
	entry.CreatedAt = fromUnixNano(createdAt)
	entry.UpdatedAt = fromUnixNano(updatedAt)
	entry.ExpiresAt = fromUnixNano(expiresAtNs)

	if err := json.Unmarshal([]byte(products), &entry.Products); err != nil {
		return nil, fmt.Errorf("decoding products: %w", err)
	}
	if err := decodePayload(&entry, []byte(payload)); err != nil {
		return nil, err
	}
	return &entry, nil
}

// encodePayload serializes the tier-specific part of the entry
func encodePayload(entry *domain.CacheEntry) ([]byte, error) {
	var v any
	switch entry.Tier {
	case domain.TierComparison:
		v = entry.Comparison
	case domain.TierCluster:
		v = entry.Cluster
	case domain.TierFAQ:
		v = entry.FAQ
	default:
		return nil, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidEntry, entry.Tier)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", entry.Tier, err)
	}
	return data, nil
}

func decodePayload(entry *domain.CacheEntry, data []byte) error {
	var err error
	switch entry.Tier {
	case domain.TierComparison:
		entry.Comparison = &domain.ComparisonDetails{}
		err = json.Unmarshal(data, entry.Comparison)
	case domain.TierCluster:
		entry.Cluster = &domain.ClusterDetails{}
		err = json.Unmarshal(data, entry.Cluster)
	case domain.TierFAQ:
		entry.FAQ = &domain.FAQDetails{}
		err = json.Unmarshal(data, entry.FAQ)
	default:
		return fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidEntry, entry.Tier)
	}
	if err != nil {
		return fmt.Errorf("decoding %s payload: %w", entry.Tier, err)
	}
	return nil
}

// --- Frequency records ---

// RecordFrequency creates the record with count 1 or increments it in a
// single statement and returns the stored row
func (s *SQLiteStore) RecordFrequency(ctx context.Context, occ domain.Occurrence) (*domain.FrequencyRecord, error) {
	return s.upsertFrequency(ctx, occ, "occurrence_count + 1", "promoted_at")
}

// ResetFrequency restarts the counter at 1 with the latest response
func (s *SQLiteStore) ResetFrequency(ctx context.Context, occ domain.Occurrence) (*domain.FrequencyRecord, error) {
	return s.upsertFrequency(ctx, occ, "1", "0")
}

func (s *SQLiteStore) upsertFrequency(ctx context.Context, occ domain.Occurrence, countExpr, promotedExpr string) (*domain.FrequencyRecord, error) {
	products, err := json.Marshal(nonNilProducts(occ.Products))
	if err != nil {
		return nil, fmt.Errorf("encoding products: %w", err)
	}

	at := occ.At.UnixNano()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO frequency_records (`+recordInsertColumns+`)
		VALUES (?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			occurrence_count = `+countExpr+`,
			promoted_at = `+promotedExpr+`,
			last_response_text = excluded.last_response_text,
			last_products = excluded.last_products,
			updated_at = excluded.updated_at
		RETURNING `+recordColumns,
		occ.Key, string(occ.Tier), occ.ResponseText, string(products), at, at,
	)

	record, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("recording frequency: %w", err)
	}
	return record, nil
}

// MarkPromoted records that the key's current cycle produced a tier entry
func (s *SQLiteStore) MarkPromoted(ctx context.Context, key string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, "UPDATE frequency_records SET promoted_at = ? WHERE cache_key = ?", at.UnixNano(), key)
	if err != nil {
		return fmt.Errorf("marking promotion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking promotion: %w", err)
	}
	if n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// GetFrequency returns the record stored under key
func (s *SQLiteStore) GetFrequency(ctx context.Context, key string) (*domain.FrequencyRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM frequency_records WHERE cache_key = ?", key)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting frequency: %w", err)
	}
	return record, nil
}

func scanRecord(row rowScanner) (*domain.FrequencyRecord, error) {
	var (
		record                           domain.FrequencyRecord
		tier, products                   string
		createdAt, updatedAt, promotedAt int64
	)
	if err := row.Scan(
		&record.Key, &tier, &record.OccurrenceCount, &record.LastResponseText,
		&products, &createdAt, &updatedAt, &promotedAt,
	); err != nil {
		return nil, err
	}

	record.Tier = domain.Tier(tier)
	record.CreatedAt = fromUnixNano(createdAt)
	record.UpdatedAt = fromUnixNano(updatedAt)
	if promotedAt != 0 {
		record.PromotedAt = fromUnixNano(promotedAt)
	}
	if err := json.Unmarshal([]byte(products), &record.LastProducts); err != nil {
		return nil, fmt.Errorf("decoding products: %w", err)
	}
	return &record, nil
}

func nonNilProducts(products []domain.ProductRef) []domain.ProductRef {
	if products == nil {
		return []domain.ProductRef{}
	}
	return products
}

func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
