package errx

import (
	"database/sql"
	"errors"
	"net/http"
)

// WrapPostgres maps relational store errors to AppError with appropriate status codes.
func WrapPostgres(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return New(err, http.StatusNotFound, PostgresErrorMessage)
	}

	return New(err, http.StatusBadGateway, PostgresErrorMessage)
}
