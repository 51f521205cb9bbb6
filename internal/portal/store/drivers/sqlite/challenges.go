package sqlite

import (
	"context"
	"time"

	"github.com/tramita/portal/internal/portal/domain"
)

type challengesRepo struct {
	db dbtx
}

func (r *challengesRepo) Create(ctx context.Context, c domain.TwoFactorChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO two_factor_challenges (id, user_id, attempts, consumed, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Attempts, c.Consumed, c.CreatedAt, c.ExpiresAt,
	)
	return mapConflict(err)
}

func (r *challengesRepo) Get(ctx context.Context, id string) (domain.TwoFactorChallenge, error) {
	var c domain.TwoFactorChallenge
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, attempts, consumed, created_at, expires_at
		FROM two_factor_challenges WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.Attempts, &c.Consumed, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		return domain.TwoFactorChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) BumpAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_challenges SET attempts = attempts + 1 WHERE id = ?`, id)
	return err
}

// Consume flips the consumed flag. The WHERE clause makes the first
// writer win; everyone else sees ok=false.
func (r *challengesRepo) Consume(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_challenges SET consumed = 1 WHERE id = ? AND consumed = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *challengesRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM two_factor_challenges WHERE user_id = ?`, userID)
	return err
}

func (r *challengesRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM two_factor_challenges WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
