package postgres

import (
	"errors"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// mapErr turns driver errors into coded ones. what names the entity for
// NOT_FOUND messages.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if apperr.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.CodeNotFound, what+" not found", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Wrap(apperr.CodeConflict, what+" already exists", err)
		case pgCheckViolation:
			return apperr.Wrap(apperr.CodeConstraintViolation, pgErr.ConstraintName, err)
		}
	}
	return apperr.Wrap(apperr.CodeStoreUnavailable, "postgres", err)
}
