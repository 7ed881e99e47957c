package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/resicare/resicare-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict("duplicate record: " + pqErr.Constraint)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "must not be negative",
		})

	case strings.Contains(constraint, "current_within_initial"):
		return errors.Validation(map[string]string{
			"current_quantity": "must not exceed the initial quantity",
		})

	case strings.Contains(constraint, "kind_valid"):
		return errors.Validation(map[string]string{
			"kind": "must be one of: medication, supply",
		})

	case strings.Contains(constraint, "ownership_valid"):
		return errors.Validation(map[string]string{
			"ownership": "must be one of: facility, patient",
		})

	case strings.Contains(constraint, "movement_kind_valid"):
		return errors.Validation(map[string]string{
			"kind": "must be one of: entry, exit, adjustment",
		})

	case strings.Contains(constraint, "payment_origin_valid"):
		return errors.Validation(map[string]string{
			"payment_origin": "must be one of: insurance, facility, patient",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}
