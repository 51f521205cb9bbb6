package sqlite

import (
	"context"
	"time"
)

type revocationsRepo struct {
	db dbtx
}

// Revoke is idempotent: revoking the same token twice keeps the first
// record.
func (r *revocationsRepo) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (token_id, expires_at, revoked_at)
		VALUES (?, ?, ?)
		ON CONFLICT (token_id) DO NOTHING`,
		tokenID, expiresAt, time.Now().UTC(),
	)
	return err
}

func (r *revocationsRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM revoked_tokens WHERE token_id = ?`, tokenID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *revocationsRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
