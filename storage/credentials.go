package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// UserCredential is one user's stored identity: the bearer token used for
// remote calls plus the auto-claim opt-in and its durable outcome record.
// The auto-claim fields are written only by the scheduler.
type UserCredential struct {
	UserID          string
	Token           string
	AutoClaim       bool
	LastClaimDate   string // calendar date in the configured zone
	LastClaimAt     string // local datetime of the last attempt
	LastClaimResult string // success marker or failure detail
}

// CredentialPatch carries the fields an Upsert should change. Nil pointers
// leave the stored value untouched.
type CredentialPatch struct {
	Token           *string
	AutoClaim       *bool
	LastClaimDate   *string
	LastClaimAt     *string
	LastClaimResult *string
}

type CredentialStore struct {
	db     *sql.DB
	cipher *TokenCipher // nil means tokens are stored in plain text
}

func NewCredentialStore(dataDir string, cipher *TokenCipher) (*CredentialStore, error) {
	dbPath := filepath.Join(dataDir, "credentials.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &CredentialStore{db: db, cipher: cipher}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (cs *CredentialStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		user_id TEXT PRIMARY KEY,
		token TEXT NOT NULL DEFAULT '',
		auto_claim INTEGER NOT NULL DEFAULT 0,
		last_claim_date TEXT NOT NULL DEFAULT '',
		last_claim_at TEXT NOT NULL DEFAULT '',
		last_claim_result TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := cs.db.Exec(schema)
	return err
}

// Get returns the credential for userID, or nil when none is stored.
func (cs *CredentialStore) Get(userID string) (*UserCredential, error) {
	row := cs.db.QueryRow(`
		SELECT user_id, token, auto_claim, last_claim_date, last_claim_at, last_claim_result
		FROM credentials WHERE user_id = ?`, userID)

	cred, err := cs.scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return cred, nil
}

// Upsert merges the given fields into the stored record, creating it when
// absent. The read-merge-write runs in one transaction so concurrent
// partial updates for the same user cannot interleave.
func (cs *CredentialStore) Upsert(userID string, patch CredentialPatch) error {
	tx, err := cs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		SELECT user_id, token, auto_claim, last_claim_date, last_claim_at, last_claim_result
		FROM credentials WHERE user_id = ?`, userID)

	cred, err := cs.scanCredential(row)
	switch {
	case err == sql.ErrNoRows:
		cred = &UserCredential{UserID: userID}
	case err != nil:
		return fmt.Errorf("failed to load credential: %w", err)
	}

	if patch.Token != nil {
		cred.Token = *patch.Token
	}
	if patch.AutoClaim != nil {
		cred.AutoClaim = *patch.AutoClaim
	}
	if patch.LastClaimDate != nil {
		cred.LastClaimDate = *patch.LastClaimDate
	}
	if patch.LastClaimAt != nil {
		cred.LastClaimAt = *patch.LastClaimAt
	}
	if patch.LastClaimResult != nil {
		cred.LastClaimResult = *patch.LastClaimResult
	}

	storedToken, err := cs.sealToken(cred.Token)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = tx.Exec(`
		INSERT INTO credentials
			(user_id, token, auto_claim, last_claim_date, last_claim_at, last_claim_result, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			token = excluded.token,
			auto_claim = excluded.auto_claim,
			last_claim_date = excluded.last_claim_date,
			last_claim_at = excluded.last_claim_at,
			last_claim_result = excluded.last_claim_result,
			updated_at = excluded.updated_at`,
		cred.UserID, storedToken, boolToInt(cred.AutoClaim),
		cred.LastClaimDate, cred.LastClaimAt, cred.LastClaimResult, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return tx.Commit()
}

// Delete removes the user's record entirely.
func (cs *CredentialStore) Delete(userID string) error {
	_, err := cs.db.Exec(`DELETE FROM credentials WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// All returns every stored credential keyed by user ID. The scheduler reads
// this once per sweep tick.
func (cs *CredentialStore) All() (map[string]*UserCredential, error) {
	rows, err := cs.db.Query(`
		SELECT user_id, token, auto_claim, last_claim_date, last_claim_at, last_claim_result
		FROM credentials`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	creds := make(map[string]*UserCredential)
	for rows.Next() {
		cred, err := cs.scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds[cred.UserID] = cred
	}
	return creds, rows.Err()
}

func (cs *CredentialStore) Close() error {
	return cs.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (cs *CredentialStore) scanCredential(row rowScanner) (*UserCredential, error) {
	var cred UserCredential
	var autoClaim int
	var storedToken string

	err := row.Scan(&cred.UserID, &storedToken, &autoClaim,
		&cred.LastClaimDate, &cred.LastClaimAt, &cred.LastClaimResult)
	if err != nil {
		return nil, err
	}

	cred.AutoClaim = autoClaim != 0
	cred.Token, err = cs.openToken(storedToken)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (cs *CredentialStore) sealToken(token string) (string, error) {
	if cs.cipher == nil || token == "" {
		return token, nil
	}
	sealed, err := cs.cipher.Encrypt(token)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt token: %w", err)
	}
	return sealed, nil
}

func (cs *CredentialStore) openToken(stored string) (string, error) {
	if cs.cipher == nil || !IsSealed(stored) {
		return stored, nil
	}
	token, err := cs.cipher.Decrypt(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	return token, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
