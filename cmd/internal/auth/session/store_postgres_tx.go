package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

func consumeChallengeTx(ctx context.Context, tx pgx.Tx, username, tokenHash string, now time.Time) (Challenge, bool, error) {
	var c Challenge

	err := tx.QueryRow(ctx, `
		DELETE FROM swapi.challenges c
		USING swapi.users u
		WHERE c.user_id = u.id
		  AND c.token_hash = $1
		  AND u.username = $2
		  AND c.expire > $3
		RETURNING c.id, c.user_id, c.otp_hash, c.token_hash, c.expire
	`, tokenHash, username, now).Scan(
		&c.ID,
		&c.UserID,
		&c.OTPHash,
		&c.TokenHash,
		&c.Expire,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Challenge{}, false, nil
	}
	if err != nil {
		return Challenge{}, false, err
	}
	return c, true, nil
}

func sweepExpiredTx(ctx context.Context, tx pgx.Tx, now time.Time) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM swapi.challenges WHERE expire <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
