// Package credits implements the usage/credit gate backing the audit
// pipeline: authenticated credit balances with an audit-trail ledger, and
// anonymous per-tool trial allowances.
package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"a11ycheck/internal/audit"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrUnknownUser is returned when a deduction references a user that has
// never been granted credits.
var ErrUnknownUser = errors.New("unknown user")

// DefaultTrialLimit is the anonymous allowance per tool and client.
const DefaultTrialLimit = 3

const trialExhaustedMessage = "Free trial limit reached. Sign in to continue auditing."

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	credits    INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	amount         INTEGER NOT NULL,
	balance_before INTEGER NOT NULL,
	balance_after  INTEGER NOT NULL,
	description    TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON credit_transactions(user_id);

CREATE TABLE IF NOT EXISTS tool_usage (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	tool       TEXT NOT NULL,
	url        TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_usage_user ON tool_usage(user_id, tool);

CREATE TABLE IF NOT EXISTS trial_usage (
	client_id  TEXT NOT NULL,
	tool       TEXT NOT NULL,
	uses       INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (client_id, tool)
);
`

// Config holds store settings.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	TrialLimit   int    `yaml:"trial_limit"`
}

// DefaultConfig returns the store defaults.
func DefaultConfig() Config {
	return Config{
		DatabasePath: filepath.Join(".a11ycheck", "credits.db"),
		TrialLimit:   DefaultTrialLimit,
	}
}

// Store is the SQLite-backed credit gate. It satisfies audit.CreditGate.
type Store struct {
	db         *sql.DB
	mu         sync.Mutex
	trialLimit int
	logger     *zap.Logger
}

var _ audit.CreditGate = (*Store)(nil)

// NewStore opens (creating if needed) the credit database at the configured
// path.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultConfig().DatabasePath
	}
	if cfg.TrialLimit <= 0 {
		cfg.TrialLimit = DefaultTrialLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("create credits directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open credits database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize credits schema: %w", err)
	}

	return &Store{db: db, trialLimit: cfg.TrialLimit, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Grant adds credits to a user, creating the account on first grant, and
// records the grant in the ledger.
func (s *Store) Grant(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.balanceLocked(ctx, userID)
	if err != nil && !errors.Is(err, ErrUnknownUser) {
		return 0, err
	}

	now := time.Now().UTC()
	after := balance + amount
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, credits, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET credits = excluded.credits, updated_at = excluded.updated_at`,
		userID, after, now); err != nil {
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	if err := s.appendLedgerLocked(ctx, userID, amount, balance, after, "Credit grant"); err != nil {
		return 0, err
	}

	s.logger.Info("credits granted",
		zap.String("user", userID),
		zap.Int("amount", amount),
		zap.Int("balance", after))
	return after, nil
}

// Balance returns the user's current credit balance. A user with no account
// yet reads as zero so first-time callers hit the normal insufficient-credits
// path instead of an error.
func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, err := s.balanceLocked(ctx, userID)
	if errors.Is(err, ErrUnknownUser) {
		return 0, nil
	}
	return balance, err
}

func (s *Store) balanceLocked(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT credits FROM users WHERE id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// Deduct removes amount credits and appends the ledger transaction and the
// tool-usage record. The three writes are issued as one batch but not inside
// a database transaction; the source system behaves the same way.
func (s *Store) Deduct(ctx context.Context, userID string, amount int, meta audit.DeductionMeta) error {
	if amount <= 0 {
		return fmt.Errorf("deduction amount must be positive, got %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.balanceLocked(ctx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("deduct %d from %s: balance %d too low", amount, userID, balance)
	}

	now := time.Now().UTC()
	after := balance - amount
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET credits = ?, updated_at = ? WHERE id = ?`,
		after, now, userID); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if err := s.appendLedgerLocked(ctx, userID, -amount, balance, after, meta.Description); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_usage (id, user_id, tool, url, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, meta.Tool, meta.URL, now); err != nil {
		return fmt.Errorf("record tool usage: %w", err)
	}

	s.logger.Info("credits deducted",
		zap.String("user", userID),
		zap.String("tool", meta.Tool),
		zap.Int("amount", amount),
		zap.Int("balance", after))
	return nil
}

func (s *Store) appendLedgerLocked(ctx context.Context, userID string, amount, before, after int, description string) error {
	if description == "" {
		description = "Credit adjustment"
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, balance_before, balance_after, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, amount, before, after, description, time.Now().UTC()); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

// CheckTrial reports whether the anonymous client still has trial uses left
// for the tool.
func (s *Store) CheckTrial(ctx context.Context, clientID, toolKey string) (audit.TrialDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uses, err := s.trialUsesLocked(ctx, clientID, toolKey)
	if err != nil {
		return audit.TrialDecision{}, err
	}
	if uses >= s.trialLimit {
		return audit.TrialDecision{Allowed: false, Message: trialExhaustedMessage}, nil
	}
	return audit.TrialDecision{Allowed: true}, nil
}

// RecordTrial increments the anonymous client's trial counter for the tool.
func (s *Store) RecordTrial(ctx context.Context, clientID, toolKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO trial_usage (client_id, tool, uses, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(client_id, tool) DO UPDATE SET uses = uses + 1, updated_at = excluded.updated_at`,
		clientID, toolKey, time.Now().UTC()); err != nil {
		return fmt.Errorf("record trial usage: %w", err)
	}
	return nil
}

func (s *Store) trialUsesLocked(ctx context.Context, clientID, toolKey string) (int, error) {
	var uses int
	err := s.db.QueryRowContext(ctx,
		`SELECT uses FROM trial_usage WHERE client_id = ? AND tool = ?`,
		clientID, toolKey).Scan(&uses)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read trial usage: %w", err)
	}
	return uses, nil
}

// LedgerEntry is one row of the credit audit trail.
type LedgerEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Amount        int       `json:"amount"`
	BalanceBefore int       `json:"balanceBefore"`
	BalanceAfter  int       `json:"balanceAfter"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Ledger returns the most recent transactions for a user, newest first.
func (s *Store) Ledger(ctx context.Context, userID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, balance_before, balance_after, description, created_at
		FROM credit_transactions WHERE user_id = ?
		ORDER BY created_at DESC, id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.BalanceBefore, &e.BalanceAfter, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
