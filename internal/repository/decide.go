package repository

import (
	"context"
	"errors"
)

// ErrNotDecidable is returned when a decision targets a validation request
// that is no longer pending, or whose link had expired at ValidatedAt.
var ErrNotDecidable = errors.New("validation request is not pending or has expired")

// DecideOnce records a supervisor decision. The update is conditional on the
// request still being pending and unexpired, so among concurrent callers
// exactly one wins; the others get ErrNotDecidable.
func DecideOnce(ctx context.Context, q Querier, arg DecideValidationParams) error {
	n, err := q.DecideValidation(ctx, arg)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotDecidable
	}
	return nil
}
