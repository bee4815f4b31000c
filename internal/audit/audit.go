// Package audit persists guard decisions to a local SQLite database,
// optionally encrypted with SQLCipher. Raw tool input is stored
// zstd-compressed; everything the CLI and API query on is a plain column.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mutecomm/go-sqlcipher/v4" // SQLCipher driver for encrypted SQLite

	"github.com/carlrannaberg/claudekit-sub009/internal/fileutil"
	"github.com/carlrannaberg/claudekit-sub009/internal/guard"
	"github.com/carlrannaberg/claudekit-sub009/internal/hook"
	"github.com/carlrannaberg/claudekit-sub009/internal/logger"
)

var log = logger.New("audit")

// MinEncryptionKeyLength is the minimum required length for encryption keys.
const MinEncryptionKeyLength = 16

// MaxRecentMinutes is the maximum time window for recent queries (7 days).
const MaxRecentMinutes = 10080

// MaxRetentionDays caps the purge window.
const MaxRetentionDays = 36500

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Store handles the decisions database.
type Store struct {
	conn      *sql.DB
	encrypted bool
}

// Entry is one recorded decision.
type Entry struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	SessionID  string          `json:"session_id,omitempty"`
	ToolName   string          `json:"tool_name"`
	Decision   string          `json:"decision"`
	ScanMode   string          `json:"scan_mode,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Path       string          `json:"path,omitempty"`
	Pattern    string          `json:"pattern,omitempty"`
	Source     string          `json:"source,omitempty"`
	DurationMS float64         `json:"duration_ms,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
}

// DefaultPath returns ~/.fileguard/audit.db, creating the directory with
// owner-only permissions.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".fileguard")
	if err := fileutil.MkdirPrivate(dir); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, "audit.db"), nil
}

// Open opens (and if needed creates) the decisions database. A non-empty
// encryptionKey turns on SQLCipher; the key travels in the connection
// string, never through a PRAGMA statement.
func Open(dbPath, encryptionKey string) (*Store, error) {
	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "1")

	if encryptionKey != "" {
		if len(encryptionKey) < MinEncryptionKeyLength {
			return nil, fmt.Errorf("encryption key must be at least %d characters", MinEncryptionKeyLength)
		}
		params.Set("_pragma_key", encryptionKey)
	}

	dsn := dbPath + "?" + params.Encode()

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection
	// serializes access at the Go level and avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	encrypted := false
	if encryptionKey != "" {
		var result int
		if err := conn.QueryRowContext(context.Background(), "SELECT 1").Scan(&result); err != nil {
			conn.Close()
			return nil, fmt.Errorf("encryption key verification failed: %w", err)
		}
		encrypted = true
		log.Debug("audit database encryption enabled")
	}

	s := &Store{conn: conn, encrypted: encrypted}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	// The driver creates the file subject to the umask; clamp it so other
	// users cannot read which paths the agent was denied.
	if dbPath != ":memory:" {
		if err := fileutil.Restrict(dbPath); err != nil {
			log.Warn("restricting database permissions: %v", err)
		}
	}
	return s, nil
}

// IsEncrypted reports whether the database is encrypted.
func (s *Store) IsEncrypted() bool {
	return s.encrypted
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.conn
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	if _, err := s.conn.ExecContext(context.Background(), schema); err != nil {
		return err
	}
	s.runMigrations()
	return nil
}

// runMigrations applies incremental schema changes for databases created
// by older builds. Each migration is idempotent.
func (s *Store) runMigrations() {
	ctx := context.Background()
	migrations := []string{
		`ALTER TABLE decisions ADD COLUMN scan_mode TEXT`,
		`ALTER TABLE decisions ADD COLUMN duration_ms REAL`,
	}
	for _, m := range migrations {
		if _, err := s.conn.ExecContext(ctx, m); err != nil {
			// "duplicate column name" means already applied
			if !strings.Contains(err.Error(), "duplicate column") {
				log.Debug("migration skipped: %v", err)
			}
		}
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	session_id TEXT,
	tool_name TEXT NOT NULL,
	decision TEXT NOT NULL,
	scan_mode TEXT,
	reason TEXT,
	matched_path TEXT,
	matched_pattern TEXT,
	pattern_source TEXT,
	duration_ms REAL,
	tool_input BLOB
);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);
CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
CREATE INDEX IF NOT EXISTS idx_decisions_session_id ON decisions(session_id);
CREATE INDEX IF NOT EXISTS idx_decisions_tool_name ON decisions(tool_name);
`

// Record implements hook.Recorder. Storage failures are logged and
// swallowed so they can never turn into a blocked tool call.
func (s *Store) Record(in hook.Input, res guard.Result, elapsed time.Duration) {
	e := Entry{
		SessionID:  in.SessionID,
		ToolName:   in.ToolName,
		Decision:   string(res.Decision),
		ScanMode:   string(res.Mode),
		Reason:     res.Reason,
		Path:       res.Path,
		Pattern:    res.Pattern,
		Source:     res.Source,
		DurationMS: float64(elapsed) / float64(time.Millisecond),
	}
	if raw, err := json.Marshal(in.ToolInput); err == nil && string(raw) != "{}" {
		e.ToolInput = raw
	}
	if err := s.Insert(e); err != nil {
		log.Warn("recording decision: %v", err)
	}
}

// Insert stores one entry, filling in the ID and timestamp when absent.
func (s *Store) Insert(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var blob []byte
	if len(e.ToolInput) > 0 {
		blob = zstdEncoder.EncodeAll(e.ToolInput, nil)
	}

	var dur *float64
	if e.DurationMS > 0 {
		dur = &e.DurationMS
	}

	_, err := s.conn.ExecContext(context.Background(), `
		INSERT INTO decisions (
			id, timestamp, session_id, tool_name, decision, scan_mode,
			reason, matched_path, matched_pattern, pattern_source,
			duration_ms, tool_input
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.Timestamp, strPtr(e.SessionID), e.ToolName, e.Decision,
		strPtr(e.ScanMode), strPtr(e.Reason), strPtr(e.Path),
		strPtr(e.Pattern), strPtr(e.Source), dur, blob,
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}
	return nil
}

// Recent returns decisions from the last given minutes, newest first.
func (s *Store) Recent(minutes, limit int) ([]Entry, error) {
	if minutes <= 0 {
		minutes = 60
	} else if minutes > MaxRecentMinutes {
		minutes = MaxRecentMinutes
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.conn.QueryContext(context.Background(), `
		SELECT id, timestamp, session_id, tool_name, decision, scan_mode,
		       reason, matched_path, matched_pattern, pattern_source,
		       duration_ms, tool_input
		FROM decisions
		WHERE timestamp > datetime('now', ?)
		ORDER BY timestamp DESC
		LIMIT ?
	`, fmt.Sprintf("-%d minutes", minutes), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("querying recent decisions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var ts *time.Time
	var sessionID, scanMode, reason, path, pattern, source *string
	var durationMS *float64
	var blob []byte
	if err := rows.Scan(
		&e.ID, &ts, &sessionID, &e.ToolName, &e.Decision, &scanMode,
		&reason, &path, &pattern, &source, &durationMS, &blob,
	); err != nil {
		return Entry{}, fmt.Errorf("scanning decision row: %w", err)
	}
	e.Timestamp = derefTime(ts)
	e.SessionID = derefStr(sessionID)
	e.ScanMode = derefStr(scanMode)
	e.Reason = derefStr(reason)
	e.Path = derefStr(path)
	e.Pattern = derefStr(pattern)
	e.Source = derefStr(source)
	if durationMS != nil {
		e.DurationMS = *durationMS
	}
	if len(blob) > 0 {
		if raw, err := zstdDecoder.DecodeAll(blob, nil); err == nil {
			e.ToolInput = raw
		} else {
			log.Warn("decompressing tool input for %s: %v", e.ID, err)
		}
	}
	return e, nil
}

// Stats holds aggregate decision counts.
type Stats struct {
	Total   int64            `json:"total"`
	Allowed int64            `json:"allowed"`
	Denied  int64            `json:"denied"`
	ByTool  map[string]int64 `json:"by_tool,omitempty"`
	ByMode  map[string]int64 `json:"by_mode,omitempty"`
}

// GetStats returns aggregate counts over the whole table. Partial
// failures degrade to zero values rather than failing the call.
func (s *Store) GetStats() (*Stats, error) {
	ctx := context.Background()
	stats := &Stats{}

	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decisions`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("counting decisions: %w", err)
	}
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decisions WHERE decision = 'deny'`).Scan(&stats.Denied); err != nil {
		log.Warn("counting denials: %v", err)
	}
	stats.Allowed = stats.Total - stats.Denied

	stats.ByTool = countBy(ctx, s.conn, "tool_name")
	stats.ByMode = countBy(ctx, s.conn, "scan_mode")
	return stats, nil
}

// countBy runs a GROUP BY over one column. The column name comes from a
// fixed call site, never from input.
func countBy(ctx context.Context, conn *sql.DB, column string) map[string]int64 {
	rows, err := conn.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM decisions GROUP BY `+column)
	if err != nil {
		log.Warn("grouping by %s: %v", column, err)
		return nil
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var key *string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			log.Warn("scanning %s group: %v", column, err)
			return out
		}
		if key != nil {
			out[*key] = count
		}
	}
	return out
}

// SessionSummary aggregates decisions for one agent session.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Total     int64     `json:"total"`
	Denied    int64     `json:"denied"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Sessions returns recent sessions, most recently active first.
func (s *Store) Sessions(minutes, limit int) ([]SessionSummary, error) {
	if minutes <= 0 {
		minutes = 60
	} else if minutes > MaxRecentMinutes {
		minutes = MaxRecentMinutes
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.QueryContext(context.Background(), `
		SELECT
			session_id,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN decision = 'deny' THEN 1 ELSE 0 END), 0) AS denied,
			MIN(timestamp) AS first_seen,
			MAX(timestamp) AS last_seen
		FROM decisions
		WHERE session_id IS NOT NULL
		  AND timestamp > datetime('now', ?)
		GROUP BY session_id
		ORDER BY last_seen DESC
		LIMIT ?
	`, fmt.Sprintf("-%d minutes", minutes), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		// MIN/MAX return their operand as text; parse manually.
		var firstSeen, lastSeen string
		if err := rows.Scan(&ss.SessionID, &ss.Total, &ss.Denied, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		ss.FirstSeen = parseSQLiteTime(firstSeen)
		ss.LastSeen = parseSQLiteTime(lastSeen)
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

// Purge deletes decisions older than the given number of days and
// returns how many went away.
func (s *Store) Purge(days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	if days > MaxRetentionDays {
		days = MaxRetentionDays
	}

	result, err := s.conn.ExecContext(context.Background(),
		`DELETE FROM decisions WHERE timestamp < datetime('now', ?)`,
		fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("purging old decisions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading purge count: %w", err)
	}
	if deleted > 0 {
		log.Info("purged %d decisions older than %d days", deleted, days)
	}
	return deleted, nil
}

// sqliteDateFormats lists the datetime formats SQLite uses for
// text-stored timestamps, tried in order.
var sqliteDateFormats = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range sqliteDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

var (
	_ io.Closer     = (*Store)(nil)
	_ hook.Recorder = (*Store)(nil)
)
