package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/mattn/go-sqlite3"
)

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers provide human-readable ordering for entities (e.g., session #42, track #15).
// They are used for sorting list output and debugging.
func NextSequence(db *sql.DB, table string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	_, err = tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, storeErr("failed to increment sequence", err)
	}

	var sequence int
	err = tx.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, storeErr("failed to get sequence value", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("failed to commit sequence transaction", err)
	}

	return sequence, nil
}

// storeErr wraps a driver error with a message and, when the failure is classifiable, one of the shared sentinels:
// busy or locked databases become [shared.ErrStoreUnavailable], constraint violations [shared.ErrValidation].
func storeErr(msg string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %s: %v", shared.ErrStoreUnavailable, msg, err)
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %s: %v", shared.ErrValidation, msg, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// expectRows converts a zero-row write into [shared.ErrNotFound].
func expectRows(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s not found or already deleted: %s", shared.ErrNotFound, entity, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
