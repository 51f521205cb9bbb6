package sqlite

import (
	"context"
	"time"

	"github.com/tramita/portal/internal/portal/domain"
)

type verificationsRepo struct {
	db dbtx
}

func (r *verificationsRepo) Create(ctx context.Context, v domain.EmailVerification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_verifications (id, user_id, token_hash, consumed, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.TokenHash, v.Consumed, v.CreatedAt, v.ExpiresAt,
	)
	return mapConflict(err)
}

func (r *verificationsRepo) GetByTokenHash(ctx context.Context, hash string) (domain.EmailVerification, error) {
	var v domain.EmailVerification
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, consumed, created_at, expires_at
		FROM email_verifications WHERE token_hash = ?`, hash).
		Scan(&v.ID, &v.UserID, &v.TokenHash, &v.Consumed, &v.CreatedAt, &v.ExpiresAt)
	if err != nil {
		return domain.EmailVerification{}, mapNotFound(err)
	}
	return v, nil
}

func (r *verificationsRepo) Consume(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_verifications SET consumed = 1 WHERE id = ? AND consumed = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *verificationsRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM email_verifications WHERE user_id = ?`, userID)
	return err
}

func (r *verificationsRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM email_verifications WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
