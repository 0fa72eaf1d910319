package infra

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	ledgerDBName  = "exceptions.db"
	ledgerKeySize = 32 // 256-bit SQLCipher key
	schemaVersion = "1"
)

// EncryptedLedger implements domain.ExceptionLedger using a SQLCipher
// encrypted SQLite database, so the history cannot be edited by hand to
// hide how often exceptions were taken.
type EncryptedLedger struct {
	db     *sql.DB
	dbPath string
}

// OpenLedger opens the ledger in dataDir, generating its key on first use.
func OpenLedger(dataDir string) (*EncryptedLedger, error) {
	key, err := loadOrCreateLedgerKey(LedgerKeyPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("%w: ledger key: %v", domain.ErrPersistence, err)
	}
	return NewEncryptedLedger(dataDir, key)
}

// LedgerKeyPath is the key file that belongs to the ledger in dataDir:
// the database path with a ".key" suffix.
func LedgerKeyPath(dataDir string) string {
	return filepath.Join(dataDir, ledgerDBName) + ".key"
}

// NewLedgerKey returns a random SQLCipher key.
func NewLedgerKey() ([]byte, error) {
	key := make([]byte, ledgerKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// loadOrCreateLedgerKey reads the hex key at path, creating it when absent.
// A new key is written to a temp file and hard-linked into place, so a
// reader never sees a partial key and two commands opening a fresh ledger
// at the same time agree on one key.
func loadOrCreateLedgerKey(path string) ([]byte, error) {
	key, err := readLedgerKey(path)
	if !errors.Is(err, os.ErrNotExist) {
		return key, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	key, err = NewLedgerKey()
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create key file: %w", err)
	}
	defer os.Remove(tmp.Name())
	_, werr := tmp.WriteString(hex.EncodeToString(key))
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return nil, fmt.Errorf("failed to write key file: %w", werr)
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return readLedgerKey(path)
		}
		return nil, fmt.Errorf("failed to install key file: %w", err)
	}
	return key, nil
}

// readLedgerKey loads a key file, tightening it back to 0600 if others can read it.
func readLedgerKey(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm()&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return nil, fmt.Errorf("key file %s is not private: %w", path, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("corrupt key file %s: %w", path, err)
	}
	if len(key) != ledgerKeySize {
		return nil, fmt.Errorf("key file %s holds %d bytes, want %d", path, len(key), ledgerKeySize)
	}
	return key, nil
}

// NewEncryptedLedger opens (or creates) an encrypted ledger database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedLedger(dataDir string, key []byte) (*EncryptedLedger, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, ledgerDBName)
	keyHex := hex.EncodeToString(key)

	// Open with SQLCipher key as DSN parameter
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only shows up on first access
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	l := &EncryptedLedger{db: db, dbPath: dbPath}
	if err := l.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return l, nil
}

// createTables creates the schema if it doesn't exist.
func (l *EncryptedLedger) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exceptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		granted_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		rules_hit INTEGER NOT NULL,
		used_today INTEGER NOT NULL,
		daily_limit INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exceptions_granted_at ON exceptions (granted_at);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return err
	}
	_, err := l.db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
	return err
}

// Record appends a grant.
func (l *EncryptedLedger) Record(grant domain.ExceptionGrant) error {
	_, err := l.db.Exec(`
		INSERT INTO exceptions (domain, granted_at, expires_at, rules_hit, used_today, daily_limit)
		VALUES (?, ?, ?, ?, ?, ?)`,
		grant.Domain, grant.GrantedAt.Unix(), grant.ExpiresAt.Unix(),
		grant.RulesHit, grant.UsedToday, grant.DailyLimit,
	)
	if err != nil {
		return fmt.Errorf("%w: record exception: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Since returns grants made at or after t, oldest first.
func (l *EncryptedLedger) Since(t time.Time) ([]domain.ExceptionGrant, error) {
	rows, err := l.db.Query(`
		SELECT domain, granted_at, expires_at, rules_hit, used_today, daily_limit
		FROM exceptions WHERE granted_at >= ? ORDER BY granted_at, id`, t.Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: query exceptions: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var grants []domain.ExceptionGrant
	for rows.Next() {
		var g domain.ExceptionGrant
		var granted, expires int64
		if err := rows.Scan(&g.Domain, &granted, &expires, &g.RulesHit, &g.UsedToday, &g.DailyLimit); err != nil {
			return nil, fmt.Errorf("%w: scan exception: %v", domain.ErrPersistence, err)
		}
		g.GrantedAt = time.Unix(granted, 0)
		g.ExpiresAt = time.Unix(expires, 0)
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read exceptions: %v", domain.ErrPersistence, err)
	}
	return grants, nil
}

// Path returns the database file path.
func (l *EncryptedLedger) Path() string {
	return l.dbPath
}

// Close releases the database connection.
func (l *EncryptedLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Ensure EncryptedLedger implements domain.ExceptionLedger.
var _ domain.ExceptionLedger = (*EncryptedLedger)(nil)
