package repository

import (
	"errors"
	"fmt"

	repo "storefront/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgresのエラーをstoreの言葉に直す。
// メッセージはPgErrorの本文だけ残す（SQLSTATEは呼び出し側に出さない）。
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 23 = integrity constraint violation
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return fmt.Errorf("%w: %s", repo.ErrConstraint, pgErr.Message)
		}
		return errors.New(pgErr.Message)
	}
	return err
}
