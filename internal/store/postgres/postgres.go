package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/strandpine/warden/internal/database"
	"github.com/strandpine/warden/internal/models"
	"github.com/strandpine/warden/internal/store"
)

// Store persists the security state in PostgreSQL. Each collection
// maps to one table and each save replaces the table's contents in a
// single transaction, mirroring the snapshot semantics of the file
// backend.
type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Load reads all three collections. Attempts come back oldest first
// so the ledger can restore them in recording order.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	snapshot := &store.Snapshot{}

	attempts, err := s.loadAttempts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	snapshot.Attempts = attempts

	sessions, err := s.loadSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	snapshot.Sessions = sessions

	blocks, err := s.loadBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	snapshot.Blocks = blocks

	return snapshot, nil
}

func (s *Store) loadAttempts(ctx context.Context) ([]models.LoginAttempt, error) {
	query := `
		SELECT id, identity, address, client_signature, device_signature,
		       attempt_time, success, failure_reason, risk_factors, blocked
		FROM login_attempts
		ORDER BY attempt_time ASC, id ASC
	`

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.LoginAttempt
	for rows.Next() {
		var attempt models.LoginAttempt
		var failureReason *string
		if err := rows.Scan(
			&attempt.ID,
			&attempt.Identity,
			&attempt.Address,
			&attempt.ClientSignature,
			&attempt.DeviceSignature,
			&attempt.Timestamp,
			&attempt.Success,
			&failureReason,
			&attempt.RiskFactors,
			&attempt.Blocked,
		); err != nil {
			return nil, err
		}
		if failureReason != nil {
			reason := models.FailureReason(*failureReason)
			attempt.FailureReason = &reason
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func (s *Store) loadSessions(ctx context.Context) ([]models.SecuritySession, error) {
	query := `
		SELECT id, identity, device_signature, address, client_signature, location,
		       login_time, last_activity, active, risk_score,
		       mfa_pending, mfa_verified_at, termination_reason, terminated_at
		FROM security_sessions
		ORDER BY login_time ASC, id ASC
	`

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.SecuritySession
	for rows.Next() {
		var sess models.SecuritySession
		var terminationReason *string
		if err := rows.Scan(
			&sess.ID,
			&sess.Identity,
			&sess.DeviceSignature,
			&sess.Address,
			&sess.ClientSignature,
			&sess.Location,
			&sess.LoginTime,
			&sess.LastActivity,
			&sess.Active,
			&sess.RiskScore,
			&sess.MFAPending,
			&sess.MFAVerifiedAt,
			&terminationReason,
			&sess.TerminatedAt,
		); err != nil {
			return nil, err
		}
		if terminationReason != nil {
			reason := models.TerminationReason(*terminationReason)
			sess.TerminationReason = &reason
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) loadBlocks(ctx context.Context) ([]models.BlockedAddress, error) {
	query := `
		SELECT address, created_at, expires_at
		FROM blocked_addresses
		ORDER BY created_at ASC
	`

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []models.BlockedAddress
	for rows.Next() {
		var block models.BlockedAddress
		if err := rows.Scan(&block.Address, &block.CreatedAt, &block.ExpiresAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// SaveAttempts replaces the login_attempts table with the given
// collection.
func (s *Store) SaveAttempts(ctx context.Context, attempts []models.LoginAttempt) error {
	columns := []string{
		"id", "identity", "address", "client_signature", "device_signature",
		"attempt_time", "success", "failure_reason", "risk_factors", "blocked",
	}

	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM login_attempts`); err != nil {
			return err
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"login_attempts"}, columns,
			pgx.CopyFromSlice(len(attempts), func(i int) ([]any, error) {
				attempt := &attempts[i]
				var failureReason *string
				if attempt.FailureReason != nil {
					reason := string(*attempt.FailureReason)
					failureReason = &reason
				}
				return []any{
					attempt.ID,
					attempt.Identity,
					attempt.Address,
					attempt.ClientSignature,
					attempt.DeviceSignature,
					attempt.Timestamp,
					attempt.Success,
					failureReason,
					attempt.RiskFactors,
					attempt.Blocked,
				}, nil
			}))
		return err
	})
}

// SaveSessions replaces the security_sessions table with the given
// collection.
func (s *Store) SaveSessions(ctx context.Context, sessions []models.SecuritySession) error {
	columns := []string{
		"id", "identity", "device_signature", "address", "client_signature", "location",
		"login_time", "last_activity", "active", "risk_score",
		"mfa_pending", "mfa_verified_at", "termination_reason", "terminated_at",
	}

	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM security_sessions`); err != nil {
			return err
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"security_sessions"}, columns,
			pgx.CopyFromSlice(len(sessions), func(i int) ([]any, error) {
				sess := &sessions[i]
				var terminationReason *string
				if sess.TerminationReason != nil {
					reason := string(*sess.TerminationReason)
					terminationReason = &reason
				}
				return []any{
					sess.ID,
					sess.Identity,
					sess.DeviceSignature,
					sess.Address,
					sess.ClientSignature,
					sess.Location,
					sess.LoginTime,
					sess.LastActivity,
					sess.Active,
					sess.RiskScore,
					sess.MFAPending,
					sess.MFAVerifiedAt,
					terminationReason,
					sess.TerminatedAt,
				}, nil
			}))
		return err
	})
}

// SaveBlocks replaces the blocked_addresses table with the given
// collection.
func (s *Store) SaveBlocks(ctx context.Context, blocks []models.BlockedAddress) error {
	columns := []string{"address", "created_at", "expires_at"}

	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM blocked_addresses`); err != nil {
			return err
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"blocked_addresses"}, columns,
			pgx.CopyFromSlice(len(blocks), func(i int) ([]any, error) {
				block := &blocks[i]
				return []any{block.Address, block.CreatedAt, block.ExpiresAt}, nil
			}))
		return err
	})
}
