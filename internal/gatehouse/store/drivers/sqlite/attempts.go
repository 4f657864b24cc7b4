package sqlite

import (
	"context"
	"database/sql"

	"github.com/mveljko/gatehouse/internal/gatehouse/domain"
)

type attemptsRepo struct {
	db *sql.DB
}

func (r *attemptsRepo) Log(ctx context.Context, a domain.Attempt) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_attempts (id, user_id, ip_address, success)
		 VALUES (?, ?, ?, ?)`,
		a.ID, mapOptionalString(a.UserID), a.IP, a.Success)
	return err
}
