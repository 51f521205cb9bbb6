package sqlite

import (
	"context"
	"time"

	"github.com/tramita/portal/internal/portal/domain"
)

type resetsRepo struct {
	db dbtx
}

func (r *resetsRepo) Create(ctx context.Context, p domain.PasswordReset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, consumed, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.TokenHash, p.Consumed, p.CreatedAt, p.ExpiresAt,
	)
	return mapConflict(err)
}

func (r *resetsRepo) GetByTokenHash(ctx context.Context, hash string) (domain.PasswordReset, error) {
	var p domain.PasswordReset
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, consumed, created_at, expires_at
		FROM password_resets WHERE token_hash = ?`, hash).
		Scan(&p.ID, &p.UserID, &p.TokenHash, &p.Consumed, &p.CreatedAt, &p.ExpiresAt)
	if err != nil {
		return domain.PasswordReset{}, mapNotFound(err)
	}
	return p, nil
}

func (r *resetsRepo) Consume(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE password_resets SET consumed = 1 WHERE id = ? AND consumed = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *resetsRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM password_resets WHERE user_id = ?`, userID)
	return err
}

func (r *resetsRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM password_resets WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
